// README: Entry point; loads config, wires the slot pool, matching, booking and starts HTTP plus background jobs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"parkmatch/internal/config"
	httptransport "parkmatch/internal/http"
	"parkmatch/internal/infra"
	"parkmatch/internal/modules/booking"
	"parkmatch/internal/modules/matching"
	"parkmatch/internal/modules/pricing"
	"parkmatch/internal/modules/scoring"
	"parkmatch/internal/modules/slot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := slot.NewPool(cfg.Pool, log)
	if err != nil {
		log.WithError(err).Fatal("slot pool init")
	}
	if _, err := pool.LoadFile(cfg.Pool.DataFile); err != nil {
		log.WithError(err).WithField("file", cfg.Pool.DataFile).Fatal("load parking slots")
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.WithError(err).Fatal("redis init")
		}
		defer rdb.Close()
		mirror := slot.NewRedisMirror(rdb, log)
		if err := mirror.Sync(ctx, pool.Snapshot()); err != nil {
			log.WithError(err).Warn("redis mirror initial sync failed")
		}
		pool.AddObserver(mirror)
		g.Go(func() error {
			mirror.Run(ctx)
			return nil
		})
	}

	var journal booking.Journal = booking.NewMemoryJournal()
	if cfg.DB.DSN != "" {
		db, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.WithError(err).Fatal("postgres init")
		}
		defer db.Close()
		journal = booking.NewPGJournal(db)
	}

	var (
		oracle        pricing.Oracle = pricing.Static{}
		pricingHealth httptransport.PricingHealth
	)
	if cfg.Pricing.BaseURL != "" {
		client := pricing.NewClient(cfg.Pricing, log)
		if ok, err := client.HealthCheck(ctx); err != nil || !ok {
			log.WithError(err).WithField("url", cfg.Pricing.BaseURL).Warn("pricing API not healthy, bookings may use static prices")
		}
		oracle, pricingHealth = client, client
	}

	engine := matching.NewEngine(pool, scoring.FromConfig(cfg.Scoring), cfg.Matching, log)
	bookings := booking.NewService(booking.NewStore(), pool, booking.Options{
		Oracle:        oracle,
		OracleTimeout: cfg.Pricing.Timeout,
		Journal:       journal,
		Log:           log,
	})
	sweeper, err := booking.NewSweeper(bookings, cfg.Booking, log)
	if err != nil {
		log.WithError(err).Fatal("booking sweeper init")
	}

	server := httptransport.NewServer(cfg.HTTP.Addr, httptransport.ServerDeps{
		Pool:       pool,
		Matching:   engine,
		Booking:    bookings,
		Pricing:    pricingHealth,
		Resolution: cfg.Pool.Resolution,
		Log:        log,
	})

	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("shutdown complete")
}
