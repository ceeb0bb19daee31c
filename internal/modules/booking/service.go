// README: Booking service implements the reservation lifecycle and keeps slot status in step.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"parkmatch/internal/modules/pricing"
	"parkmatch/internal/modules/slot"
	"parkmatch/internal/types"
)

var (
	ErrValidation        = errors.New("invalid booking request")
	ErrNotFound          = errors.New("booking not found")
	ErrConflict          = errors.New("parking slot not available")
	ErrInvalidTransition = errors.New("invalid booking state transition")
)

// Slots is the part of the slot pool the lifecycle drives.
type Slots interface {
	Get(id types.ID) (slot.Slot, error)
	SetStatus(id types.ID, to slot.Status) error
	CompareAndSetStatus(id types.ID, from, to slot.Status) error
	Stats() slot.Stats
}

type Options struct {
	Oracle        pricing.Oracle
	OracleTimeout time.Duration
	Journal       Journal
	Log           logrus.FieldLogger
}

// Service owns the reservation table. Lock order is store.mu before the
// slot pool lock; the oracle and the journal are only called with neither held.
type Service struct {
	store   *Store
	slots   Slots
	oracle  pricing.Oracle
	timeout time.Duration
	journal Journal
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(store *Store, slots Slots, opts Options) *Service {
	if opts.Oracle == nil {
		opts.Oracle = pricing.Static{}
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = 800 * time.Millisecond
	}
	if opts.Journal == nil {
		opts.Journal = NewMemoryJournal()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Service{
		store:   store,
		slots:   slots,
		oracle:  opts.Oracle,
		timeout: opts.OracleTimeout,
		journal: opts.Journal,
		log:     opts.Log.WithField("component", "booking"),
		now:     time.Now,
	}
}

type CreateCommand struct {
	UserID          types.ID  `json:"userId"`
	SlotID          types.ID  `json:"slotId"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	VehicleNumber   *string   `json:"vehicleNumber"`
	VehicleModel    *string   `json:"vehicleModel"`
	SpecialRequests *string   `json:"specialRequests"`
}

func (cmd CreateCommand) validate(now time.Time) error {
	switch {
	case strings.TrimSpace(string(cmd.UserID)) == "":
		return fmt.Errorf("%w: userId is required", ErrValidation)
	case strings.TrimSpace(string(cmd.SlotID)) == "":
		return fmt.Errorf("%w: slotId is required", ErrValidation)
	case cmd.StartTime.IsZero() || cmd.EndTime.IsZero():
		return fmt.Errorf("%w: startTime and endTime are required", ErrValidation)
	case !cmd.EndTime.After(cmd.StartTime):
		return fmt.Errorf("%w: end time must be after start time", ErrValidation)
	case !cmd.StartTime.After(now):
		return fmt.Errorf("%w: start time must be in the future", ErrValidation)
	}
	return nil
}

// Create books a slot. The reservation is stored pending and advanced to
// confirmed in the same critical section that flips the slot to occupied;
// either both happen or neither does.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (Reservation, error) {
	now := s.now()
	if err := cmd.validate(now); err != nil {
		return Reservation{}, err
	}
	sl, err := s.slots.Get(cmd.SlotID)
	if err != nil {
		return Reservation{}, s.slotError(err)
	}
	if sl.Status != slot.StatusAvailable {
		return Reservation{}, fmt.Errorf("%w: slot %s is %s", ErrConflict, sl.ID, sl.Status)
	}

	adj := s.adjust(ctx, sl, cmd.StartTime)
	price := types.RoundCents(sl.PricePerHr * adj.Multiplier)
	hours := cmd.EndTime.Sub(cmd.StartTime).Hours()

	r := &Reservation{
		ID:                      types.ID(uuid.NewString()),
		UserID:                  cmd.UserID,
		SlotID:                  sl.ID,
		City:                    sl.City,
		Area:                    sl.Area,
		Latitude:                sl.Latitude,
		Longitude:               sl.Longitude,
		ParkingType:             sl.Type,
		BookingTime:             now,
		StartTime:               cmd.StartTime,
		EndTime:                 cmd.EndTime,
		BasePricePerHour:        sl.PricePerHr,
		PricePerHour:            price,
		TotalPrice:              types.RoundCents(hours * price),
		IsEVCharging:            sl.IsEVCharging,
		IsHandicap:              sl.IsHandicap,
		AvailabilityProbability: adj.AvailabilityProbability,
		AvailabilityConfidence:  adj.AvailabilityConfidence,
		VehicleNumber:           cmd.VehicleNumber,
		VehicleModel:            cmd.VehicleModel,
		SpecialRequests:         cmd.SpecialRequests,
	}
	if adj.Multiplier != 1 {
		m := adj.Multiplier
		r.PriceMultiplier = &m
	}

	s.store.mu.Lock()
	if err := s.slots.CompareAndSetStatus(sl.ID, slot.StatusAvailable, slot.StatusOccupied); err != nil {
		s.store.mu.Unlock()
		if errors.Is(err, slot.ErrStatusMismatch) {
			return Reservation{}, fmt.Errorf("%w: slot %s was taken", ErrConflict, sl.ID)
		}
		return Reservation{}, s.slotError(err)
	}
	r.Status = StatusPending
	s.store.insertLocked(r)
	s.store.setStatusLocked(r, StatusConfirmed)
	out := *r
	s.store.mu.Unlock()

	s.record(ctx, Event{BookingID: r.ID, SlotID: r.SlotID, From: StatusNone, To: StatusPending, Actor: ActorUser, At: now})
	s.record(ctx, Event{BookingID: r.ID, SlotID: r.SlotID, From: StatusPending, To: StatusConfirmed, Actor: ActorSystem, At: now})
	s.log.WithFields(logrus.Fields{
		"booking_id": r.ID,
		"slot_id":    r.SlotID,
		"user_id":    r.UserID,
		"total":      r.TotalPrice,
	}).Info("booking created")
	return out, nil
}

// adjust consults the oracle with a bounded context. Any failure falls back
// to the static price with no annotation.
func (s *Service) adjust(ctx context.Context, sl slot.Slot, start time.Time) pricing.Adjustment {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	adj, err := s.oracle.Adjust(ctx, pricing.ContextFor(sl, start, s.slots.Stats()))
	if err != nil {
		s.log.WithError(err).WithField("slot_id", sl.ID).Warn("pricing oracle unavailable, using static price")
		return pricing.Adjustment{Multiplier: 1}
	}
	if adj.Multiplier <= 0 || adj.Multiplier > pricing.MaxMultiplier {
		s.log.WithField("slot_id", sl.ID).WithField("multiplier", adj.Multiplier).Warn("pricing oracle returned an unusable multiplier, using static price")
		return pricing.Adjustment{Multiplier: 1}
	}
	return adj
}

func (s *Service) Get(id types.ID) (Reservation, error) {
	r, ok := s.store.Get(id)
	if !ok {
		return Reservation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// History returns the journaled transitions of a reservation, oldest first.
func (s *Service) History(ctx context.Context, id types.ID) ([]Event, error) {
	if _, ok := s.store.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	events, err := s.journal.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("booking history %s: %w", id, err)
	}
	return events, nil
}

func (s *Service) ListByUser(userID types.ID) []Reservation {
	return s.store.ListByUser(userID)
}

func (s *Service) Confirm(ctx context.Context, id types.ID) (Reservation, error) {
	return s.transition(ctx, id, StatusConfirmed, ActorUser, nil)
}

func (s *Service) CheckIn(ctx context.Context, id types.ID) (Reservation, error) {
	return s.transition(ctx, id, StatusActive, ActorUser, func(r *Reservation, now time.Time) {
		r.CheckinTime = &now
	})
}

func (s *Service) CheckOut(ctx context.Context, id types.ID) (Reservation, error) {
	return s.checkOut(ctx, id, ActorUser)
}

func (s *Service) checkOut(ctx context.Context, id types.ID, actor string) (Reservation, error) {
	return s.transition(ctx, id, StatusCompleted, actor, func(r *Reservation, now time.Time) {
		r.CheckoutTime = &now
	})
}

func (s *Service) Cancel(ctx context.Context, id types.ID) (Reservation, error) {
	return s.transition(ctx, id, StatusCancelled, ActorUser, nil)
}

// transition checks the precondition and applies one lifecycle step. Leaving
// a holding status frees the slot inside the same critical section.
func (s *Service) transition(ctx context.Context, id types.ID, to Status, actor string, stamp func(*Reservation, time.Time)) (Reservation, error) {
	now := s.now()

	s.store.mu.Lock()
	r := s.store.getLocked(id)
	if r == nil {
		s.store.mu.Unlock()
		return Reservation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	from := r.Status
	if !CanTransition(from, to) {
		s.store.mu.Unlock()
		return Reservation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if from.Holding() && !to.Holding() {
		if err := s.slots.CompareAndSetStatus(r.SlotID, slot.StatusOccupied, slot.StatusAvailable); err != nil {
			s.store.mu.Unlock()
			return Reservation{}, fmt.Errorf("release slot %s: %w", r.SlotID, err)
		}
	}
	s.store.setStatusLocked(r, to)
	if stamp != nil {
		stamp(r, now)
	}
	out := *r
	s.store.mu.Unlock()

	s.record(ctx, Event{BookingID: id, SlotID: out.SlotID, From: from, To: to, Actor: actor, At: now})
	s.log.WithFields(logrus.Fields{
		"booking_id": id,
		"from":       from,
		"to":         to,
		"actor":      actor,
	}).Info("booking transitioned")
	return out, nil
}

// Release is the guarded mark-available override: it refuses while a
// reservation still holds the slot.
func (s *Service) Release(slotID types.ID) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if holder, ok := s.store.holderLocked(slotID); ok {
		return fmt.Errorf("%w: slot %s is held by booking %s", ErrConflict, slotID, holder)
	}
	if err := s.slots.SetStatus(slotID, slot.StatusAvailable); err != nil {
		return s.slotError(err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, e Event) {
	if err := s.journal.Append(ctx, e); err != nil {
		s.log.WithError(err).WithField("booking_id", e.BookingID).Warn("journal append failed")
	}
}

func (s *Service) slotError(err error) error {
	switch {
	case errors.Is(err, slot.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, slot.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return err
}
