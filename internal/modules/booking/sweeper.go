// README: Cron-driven sweeper that cancels no-shows and checks out overstayed bookings.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"parkmatch/internal/config"
)

type SweepReport struct {
	Cancelled int
	Completed int
}

type Sweeper struct {
	svc   *Service
	grace time.Duration
	cron  *cron.Cron
	log   logrus.FieldLogger
}

func NewSweeper(svc *Service, cfg config.BookingConfig, log logrus.FieldLogger) (*Sweeper, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Sweeper{
		svc:   svc,
		grace: cfg.NoShowGrace,
		cron:  cron.New(),
		log:   log.WithField("component", "booking_sweeper"),
	}
	if _, err := s.cron.AddFunc(cfg.SweepSpec, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *Sweeper) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// Sweep cancels reservations not checked in within grace of their start, and
// checks out active ones still open grace after their end.
func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	var rep SweepReport
	cutoff := s.svc.now().Add(-s.grace)
	for _, r := range s.svc.store.Holding() {
		var err error
		switch {
		case r.Status != StatusActive && r.StartTime.Before(cutoff):
			if _, err = s.svc.transition(ctx, r.ID, StatusCancelled, ActorSystem, nil); err == nil {
				rep.Cancelled++
			}
		case r.Status == StatusActive && r.EndTime.Before(cutoff):
			if _, err = s.svc.checkOut(ctx, r.ID, ActorSystem); err == nil {
				rep.Completed++
			}
		}
		// A user transition may have won the race since the snapshot.
		if err != nil && !errors.Is(err, ErrInvalidTransition) {
			s.log.WithError(err).WithField("booking_id", r.ID).Warn("sweep transition failed")
		}
	}
	if rep.Cancelled+rep.Completed > 0 {
		s.log.WithFields(logrus.Fields{"cancelled": rep.Cancelled, "completed": rep.Completed}).Info("booking sweep done")
	}
	return rep
}
