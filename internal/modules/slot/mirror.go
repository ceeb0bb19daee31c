// README: Mirrors slot availability into Redis GEO and publishes status changes.
package slot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	availableGeoKey = "parking:available"
	statusChannel   = "parking:status"
	mirrorBuffer    = 1024
	mirrorTimeout   = 2 * time.Second
)

type statusMessage struct {
	SlotID string    `json:"slotId"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	City   string    `json:"city"`
	Area   string    `json:"area"`
	At     time.Time `json:"at"`
}

// RedisMirror is a pool Observer. SlotChanged never blocks: changes are queued
// and written by Run, and dropped when the queue is full.
type RedisMirror struct {
	redis   *redis.Client
	changes chan StatusChange
	log     logrus.FieldLogger
}

func NewRedisMirror(client *redis.Client, log logrus.FieldLogger) *RedisMirror {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisMirror{
		redis:   client,
		changes: make(chan StatusChange, mirrorBuffer),
		log:     log.WithField("component", "redis_mirror"),
	}
}

func (m *RedisMirror) SlotChanged(c StatusChange) {
	select {
	case m.changes <- c:
	default:
		m.log.WithField("slot_id", c.Slot.ID).Warn("mirror queue full, dropping status change")
	}
}

// Sync replaces the GEO set with the currently available slots.
func (m *RedisMirror) Sync(ctx context.Context, slots []Slot) error {
	pipe := m.redis.TxPipeline()
	pipe.Del(ctx, availableGeoKey)
	count := 0
	for _, s := range slots {
		if s.Status != StatusAvailable {
			continue
		}
		pipe.GeoAdd(ctx, availableGeoKey, &redis.GeoLocation{
			Name:      string(s.ID),
			Longitude: s.Longitude,
			Latitude:  s.Latitude,
		})
		count++
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	m.log.WithField("available", count).Info("redis mirror synced")
	return nil
}

// Run drains queued changes until ctx is cancelled.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.changes:
			if err := m.apply(ctx, c); err != nil {
				m.log.WithError(err).WithField("slot_id", c.Slot.ID).Warn("mirroring status change failed")
			}
		}
	}
}

func (m *RedisMirror) apply(ctx context.Context, c StatusChange) error {
	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()

	payload, err := json.Marshal(statusMessage{
		SlotID: string(c.Slot.ID),
		From:   c.From,
		To:     c.To,
		City:   c.Slot.City,
		Area:   c.Slot.Area,
		At:     c.At.UTC(),
	})
	if err != nil {
		return err
	}

	pipe := m.redis.Pipeline()
	if c.To == StatusAvailable {
		pipe.GeoAdd(ctx, availableGeoKey, &redis.GeoLocation{
			Name:      string(c.Slot.ID),
			Longitude: c.Slot.Longitude,
			Latitude:  c.Slot.Latitude,
		})
	} else {
		pipe.ZRem(ctx, availableGeoKey, string(c.Slot.ID))
	}
	pipe.Publish(ctx, statusChannel, payload)
	_, err = pipe.Exec(ctx)
	return err
}
