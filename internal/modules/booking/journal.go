// README: Reservation transition journal; in memory by default, PostgreSQL when configured.
package booking

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"parkmatch/internal/types"
)

// Journal records lifecycle transitions for audit. It is never read back into
// the reservation table.
type Journal interface {
	Append(ctx context.Context, e Event) error
	History(ctx context.Context, bookingID types.ID) ([]Event, error)
}

// MemoryJournal keeps the transitions in process.
type MemoryJournal struct {
	mu     sync.Mutex
	events map[types.ID][]Event
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{events: make(map[types.ID][]Event)}
}

func (j *MemoryJournal) Append(_ context.Context, e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events[e.BookingID] = append(j.events[e.BookingID], e)
	return nil
}

func (j *MemoryJournal) History(_ context.Context, bookingID types.ID) ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Event(nil), j.events[bookingID]...), nil
}

type PGJournal struct {
	db *pgxpool.Pool
}

func NewPGJournal(db *pgxpool.Pool) *PGJournal {
	return &PGJournal{db: db}
}

func (j *PGJournal) Append(ctx context.Context, e Event) error {
	_, err := j.db.Exec(ctx, `
		INSERT INTO booking_events (booking_id, slot_id, from_status, to_status, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.BookingID),
		string(e.SlotID),
		string(e.From),
		string(e.To),
		e.Actor,
		e.At,
	)
	return err
}

// History returns the journaled transitions of one reservation, oldest first.
func (j *PGJournal) History(ctx context.Context, bookingID types.ID) ([]Event, error) {
	rows, err := j.db.Query(ctx, `
		SELECT booking_id, slot_id, from_status, to_status, actor, created_at
		FROM booking_events
		WHERE booking_id = $1
		ORDER BY id`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.BookingID, &e.SlotID, &e.From, &e.To, &e.Actor, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
