// README: In-memory reservation table guarded by a single RWMutex.
package booking

import (
	"sort"
	"sync"

	"parkmatch/internal/types"
)

// Store keeps every reservation ever created. Methods ending in Locked
// assume the caller holds mu.
type Store struct {
	mu      sync.RWMutex
	byID    map[types.ID]*Reservation
	holding map[types.ID]types.ID // slot id -> reservation id, holding statuses only
	byUser  map[types.ID][]types.ID
}

func NewStore() *Store {
	return &Store{
		byID:    make(map[types.ID]*Reservation),
		holding: make(map[types.ID]types.ID),
		byUser:  make(map[types.ID][]types.ID),
	}
}

func (s *Store) insertLocked(r *Reservation) {
	s.byID[r.ID] = r
	s.byUser[r.UserID] = append(s.byUser[r.UserID], r.ID)
	if r.Status.Holding() {
		s.holding[r.SlotID] = r.ID
	}
}

func (s *Store) getLocked(id types.ID) *Reservation {
	return s.byID[id]
}

// setStatusLocked keeps the holding index in step with r.Status.
func (s *Store) setStatusLocked(r *Reservation, to Status) {
	r.Status = to
	if to.Holding() {
		s.holding[r.SlotID] = r.ID
		return
	}
	if s.holding[r.SlotID] == r.ID {
		delete(s.holding, r.SlotID)
	}
}

func (s *Store) holderLocked(slotID types.ID) (types.ID, bool) {
	id, ok := s.holding[slotID]
	return id, ok
}

func (s *Store) Get(id types.ID) (Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.getLocked(id)
	if r == nil {
		return Reservation{}, false
	}
	return *r, true
}

// ListByUser returns the user's reservations ordered by booking time.
func (s *Store) ListByUser(userID types.ID) []Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	out := make([]Reservation, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BookingTime.Before(out[j].BookingTime)
	})
	return out
}

// Holding returns a copy of every reservation that still holds its slot.
func (s *Store) Holding() []Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Reservation, 0, len(s.holding))
	for _, id := range s.holding {
		out = append(out, *s.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
