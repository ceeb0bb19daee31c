// README: Slot pool owns the authoritative slot set, its spatial index and the lock discipline.
package slot

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"parkmatch/internal/config"
	"parkmatch/internal/modules/spatial"
	"parkmatch/internal/types"
)

var (
	ErrNotFound          = errors.New("parking slot not found")
	ErrInvalidStatus     = errors.New("unknown slot status")
	ErrInvalidTransition = errors.New("invalid slot status transition")
	ErrStatusMismatch    = errors.New("slot status does not match expected")
	ErrReadOnly          = errors.New("status change inside a read transaction")
)

// Observer is notified of status changes after the pool lock is released.
type Observer interface {
	SlotChanged(StatusChange)
}

type ObserverFunc func(StatusChange)

func (f ObserverFunc) SlotChanged(c StatusChange) { f(c) }

// Pool is the single shared slot collection. Every exported method takes the
// pool lock itself; the *Locked helpers assume the caller already holds it and
// are the only ones used on mutation paths. sync.RWMutex is not reentrant.
type Pool struct {
	mu        sync.RWMutex
	slots     []Slot
	byID      map[types.ID]int
	index     *spatial.Index
	observers []Observer

	log logrus.FieldLogger
	now func() time.Time
}

func NewPool(cfg config.PoolConfig, log logrus.FieldLogger) (*Pool, error) {
	ix, err := spatial.NewIndex(cfg.Resolution, cfg.MaxRings)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pool{
		byID:  make(map[types.ID]int),
		index: ix,
		log:   log.WithField("component", "slot_pool"),
		now:   time.Now,
	}, nil
}

// AddObserver registers o. Register observers before serving traffic.
func (p *Pool) AddObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Load admits the available slots of doc into the pool and the index.
// Regions are visited in name order so positions are reproducible.
func (p *Pool) Load(doc Document) LoadReport {
	regions := make([]string, 0, len(doc))
	for name := range doc {
		regions = append(regions, name)
	}
	sort.Strings(regions)

	p.mu.Lock()
	defer p.mu.Unlock()

	report := LoadReport{Regions: len(regions)}
	for _, region := range regions {
		for _, s := range doc[region] {
			if s.Status != StatusAvailable {
				report.Skipped++
				continue
			}
			if s.ID == "" || !s.Position().Valid() {
				report.Skipped++
				p.log.WithFields(logrus.Fields{"region": region, "slot_id": s.ID}).Warn("skipping malformed slot")
				continue
			}
			if _, dup := p.byID[s.ID]; dup {
				report.Skipped++
				p.log.WithFields(logrus.Fields{"region": region, "slot_id": s.ID}).Warn("skipping duplicate slot id")
				continue
			}
			p.addLocked(s)
			report.Admitted++
		}
	}
	p.log.WithFields(logrus.Fields{
		"regions":  report.Regions,
		"admitted": report.Admitted,
		"skipped":  report.Skipped,
		"cells":    p.index.Cells(),
	}).Info("slot pool loaded")
	return report
}

func (p *Pool) addLocked(s Slot) {
	pos := len(p.slots)
	cell := p.index.Add(pos, s.Position())
	s.H3Index = cell.String()
	p.slots = append(p.slots, s)
	p.byID[s.ID] = pos
}

// Get returns a copy of the slot with the given id.
func (p *Pool) Get(id types.ID) (Slot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.getLocked(id)
	if s == nil {
		return Slot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *s, nil
}

func (p *Pool) getLocked(id types.ID) *Slot {
	pos, ok := p.byID[id]
	if !ok {
		return nil
	}
	return &p.slots[pos]
}

// SetStatus moves a slot to status to. Setting the current status is a no-op.
func (p *Pool) SetStatus(id types.ID, to Status) error {
	return p.Write(func(tx *Tx) error {
		return tx.SetStatus(id, to)
	})
}

// CompareAndSetStatus moves a slot from status from to status to, failing with
// ErrStatusMismatch when it is not currently in from.
func (p *Pool) CompareAndSetStatus(id types.ID, from, to Status) error {
	return p.Write(func(tx *Tx) error {
		return tx.CompareAndSetStatus(id, from, to)
	})
}

func (p *Pool) setStatusLocked(id types.ID, expect *Status, to Status) (StatusChange, bool, error) {
	if !ValidStatus(to) {
		return StatusChange{}, false, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	s := p.getLocked(id)
	if s == nil {
		return StatusChange{}, false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if expect != nil && s.Status != *expect {
		return StatusChange{}, false, fmt.Errorf("%w: slot %s is %s", ErrStatusMismatch, id, s.Status)
	}
	if s.Status == to {
		return StatusChange{}, false, nil
	}
	if !CanTransition(s.Status, to) {
		return StatusChange{}, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	from := s.Status
	s.Status = to
	return StatusChange{Slot: *s, From: from, To: to, At: p.now()}, true, nil
}

// Stats counts slots per status.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := Stats{Total: len(p.slots)}
	for i := range p.slots {
		switch p.slots[i].Status {
		case StatusAvailable:
			st.Available++
		case StatusOccupied:
			st.Occupied++
		case StatusReserved:
			st.Reserved++
		}
	}
	return st
}

// Snapshot returns a copy of every slot.
func (p *Pool) Snapshot() []Slot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Slot, len(p.slots))
	copy(out, p.slots)
	return out
}

// Nearby returns copies of the slots of any status within radiusKm of pt,
// nearest first. Coverage is bounded by the index ring cap.
func (p *Pool) Nearby(pt types.Point, radiusKm float64) []Slot {
	var candidates []Slot
	p.Read(func(tx *Tx) {
		candidates = tx.Candidates(pt, radiusKm)
	})

	dist := make(map[types.ID]float64, len(candidates))
	out := candidates[:0]
	for _, s := range candidates {
		d := spatial.HaversineKm(pt, s.Position())
		if d > radiusKm {
			continue
		}
		dist[s.ID] = d
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if dist[out[i].ID] != dist[out[j].ID] {
			return dist[out[i].ID] < dist[out[j].ID]
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Read runs fn under the shared lock.
func (p *Pool) Read(fn func(tx *Tx)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn(&Tx{pool: p})
}

// Write runs fn under the exclusive lock. Status changes made through tx are
// kept even if fn returns an error after making them; observers are notified
// once the lock is released.
func (p *Pool) Write(fn func(tx *Tx) error) error {
	p.mu.Lock()
	tx := &Tx{pool: p, writable: true}
	err := fn(tx)
	observers := p.observers
	p.mu.Unlock()

	for _, c := range tx.changes {
		for _, o := range observers {
			o.SlotChanged(c)
		}
	}
	return err
}

// Tx is a lock-held view of the pool handed to Read and Write callbacks. It
// must not escape the callback.
type Tx struct {
	pool     *Pool
	writable bool
	changes  []StatusChange
}

func (tx *Tx) Get(id types.ID) (Slot, error) {
	s := tx.pool.getLocked(id)
	if s == nil {
		return Slot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *s, nil
}

// Candidates returns copies of the slots the spatial index reports near pt.
func (tx *Tx) Candidates(pt types.Point, radiusKm float64) []Slot {
	positions := tx.pool.index.Candidates(pt, radiusKm)
	out := make([]Slot, len(positions))
	for i, pos := range positions {
		out[i] = tx.pool.slots[pos]
	}
	return out
}

func (tx *Tx) SetStatus(id types.ID, to Status) error {
	return tx.set(id, nil, to)
}

func (tx *Tx) CompareAndSetStatus(id types.ID, from, to Status) error {
	return tx.set(id, &from, to)
}

func (tx *Tx) set(id types.ID, expect *Status, to Status) error {
	if !tx.writable {
		return ErrReadOnly
	}
	change, changed, err := tx.pool.setStatusLocked(id, expect, to)
	if err != nil {
		return err
	}
	if changed {
		tx.changes = append(tx.changes, change)
	}
	return nil
}
