// README: smoke command; runs HTTP, Postgres and Redis checks against a live parkmatch API and prints results.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

var smokeCmd = &cli.Command{
	Name:  "smoke",
	Usage: "Run smoke and load checks against a running API",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "base-url", Value: "http://localhost:8080", EnvVars: []string{"PARKBENCH_BASE_URL"}, Usage: "API base URL"},
		&cli.StringFlag{Name: "dsn", EnvVars: []string{"PARKMATCH_DB_DSN"}, Usage: "Postgres DSN of the booking journal"},
		&cli.StringFlag{Name: "redis", EnvVars: []string{"PARKMATCH_REDIS_ADDR"}, Usage: "Redis address of the availability mirror"},
		&cli.Float64Flag{Name: "lat", Value: 18.52, Usage: "search latitude"},
		&cli.Float64Flag{Name: "lng", Value: 73.85, Usage: "search longitude"},
		&cli.BoolFlag{Name: "strict", Usage: "fail on skipped checks"},
		&cli.DurationFlag{Name: "timeout", Value: 60 * time.Second, Usage: "total timeout"},
		&cli.IntFlag{Name: "concurrency", Value: 20, Usage: "concurrency for load checks"},
		&cli.DurationFlag{Name: "duration", Value: 10 * time.Second, Usage: "duration for load checks"},
	},
	Action: func(ctx *cli.Context) error {
		cfg := smokeConfig{
			BaseURL:     strings.TrimRight(ctx.String("base-url"), "/"),
			DSN:         ctx.String("dsn"),
			RedisAddr:   ctx.String("redis"),
			Lat:         ctx.Float64("lat"),
			Lng:         ctx.Float64("lng"),
			Concurrency: ctx.Int("concurrency"),
			Duration:    ctx.Duration("duration"),
		}

		runCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration("timeout"))
		defer cancel()

		results := newRunner(cfg).runAll(runCtx)

		fmt.Println("\n== Summary ==")
		pass, fail, skipped := 0, 0, 0
		for _, r := range results {
			switch r.Status {
			case statusPass:
				pass++
			case statusFail:
				fail++
			case statusSkip:
				skipped++
			}
		}
		fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

		if fail > 0 || (ctx.Bool("strict") && skipped > 0) {
			return fmt.Errorf("%d checks failed, %d skipped", fail, skipped)
		}
		return nil
	},
}

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type smokeConfig struct {
	BaseURL     string
	DSN         string
	RedisAddr   string
	Lat, Lng    float64
	Concurrency int
	Duration    time.Duration
}

type runner struct {
	cfg   smokeConfig
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// slotID is the slot found by the search check, reused by booking checks.
	slotID string
}

type result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type check struct {
	Name string
	Run  func(ctx context.Context, r *runner) result
}

func newRunner(cfg smokeConfig) *runner {
	return &runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *runner) runAll(ctx context.Context) []result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	checks := r.checks()
	results := make([]result, 0, len(checks))
	for _, c := range checks {
		res := c.Run(ctx, r)
		res.Name = c.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, c.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *runner) checks() []check {
	search := map[string]any{
		"userLat":     r.cfg.Lat,
		"userLng":     r.cfg.Lng,
		"maxDistance": 5,
		"maxPrice":    100,
	}
	return []check{
		{
			Name: "Env: Postgres journal",
			Run: func(ctx context.Context, r *runner) result {
				if r.db == nil {
					return result{Status: statusSkip, Note: "dsn not configured"}
				}
				var exists bool
				err := r.db.QueryRow(ctx,
					"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
					"booking_events",
				).Scan(&exists)
				if err != nil {
					return result{Status: statusFail, Note: err.Error()}
				}
				if !exists {
					return result{Status: statusFail, Note: "missing table: booking_events"}
				}
				return result{Status: statusPass}
			},
		},
		{
			Name: "Env: Redis availability mirror",
			Run: func(ctx context.Context, r *runner) result {
				if r.redis == nil {
					return result{Status: statusSkip, Note: "redis not configured"}
				}
				n, err := r.redis.ZCard(ctx, "parking:available").Result()
				if err != nil {
					return result{Status: statusFail, Note: err.Error()}
				}
				return result{Status: statusPass, Note: fmt.Sprintf("available=%d", n)}
			},
		},
		{
			Name: "API: health",
			Run: func(ctx context.Context, r *runner) result {
				code, _, latency, err := r.call(ctx, http.MethodGet, "/health", nil)
				return expect(code, latency, err, http.StatusOK)
			},
		},
		{
			Name: "Parking: search finds a slot",
			Run: func(ctx context.Context, r *runner) result {
				code, body, latency, err := r.call(ctx, http.MethodPost, "/api/parking/search", search)
				if res := expect(code, latency, err, http.StatusOK); res.Status != statusPass {
					return res
				}
				var out struct {
					Success bool `json:"success"`
					Match   struct {
						ParkingSlot struct {
							ID string `json:"id"`
						} `json:"parkingSlot"`
						Distance float64 `json:"distance"`
					} `json:"match"`
				}
				if err := json.Unmarshal(body, &out); err != nil {
					return result{Status: statusFail, Note: err.Error()}
				}
				if !out.Success {
					return result{Status: statusFail, Latency: latency, Note: "no slot near origin"}
				}
				r.slotID = out.Match.ParkingSlot.ID
				return result{Status: statusPass, Latency: latency,
					Note: fmt.Sprintf("slot=%s dist=%.2fkm", r.slotID, out.Match.Distance)}
			},
		},
		{
			Name: "Parking: search with bad origin -> 400",
			Run: func(ctx context.Context, r *runner) result {
				code, _, latency, err := r.call(ctx, http.MethodPost, "/api/parking/search",
					map[string]any{"userLat": 123.0, "userLng": 0})
				return expect(code, latency, err, http.StatusBadRequest)
			},
		},
		{
			Name: "Parking: batch search",
			Run: func(ctx context.Context, r *runner) result {
				code, _, latency, err := r.call(ctx, http.MethodPost, "/api/parking/batch-search",
					[]map[string]any{search, search})
				return expect(code, latency, err, http.StatusOK)
			},
		},
		{
			Name: "Parking: stats",
			Run: func(ctx context.Context, r *runner) result {
				code, _, latency, err := r.call(ctx, http.MethodGet, "/api/parking/stats", nil)
				return expect(code, latency, err, http.StatusOK)
			},
		},
		{
			Name: "Booking: end before start -> 400",
			Run: func(ctx context.Context, r *runner) result {
				if r.slotID == "" {
					return result{Status: statusSkip, Note: "no slot from search"}
				}
				start := time.Now().Add(time.Hour)
				code, _, latency, err := r.call(ctx, http.MethodPost, "/api/booking/create",
					r.bookingBody("smoke-user", start, start.Add(-time.Minute)))
				return expect(code, latency, err, http.StatusBadRequest)
			},
		},
		{
			Name: "Booking: concurrent create on one slot",
			Run: func(ctx context.Context, r *runner) result {
				if r.slotID == "" {
					return result{Status: statusSkip, Note: "no slot from search"}
				}
				return concurrentCreate(ctx, r)
			},
		},
		{
			Name: "Perf: search load",
			Run: func(ctx context.Context, r *runner) result {
				return searchLoad(ctx, r, search)
			},
		},
	}
}

func (r *runner) bookingBody(user string, start, end time.Time) map[string]any {
	return map[string]any{
		"userId":        user,
		"slotId":        r.slotID,
		"startTime":     start.UTC().Format(time.RFC3339),
		"endTime":       end.UTC().Format(time.RFC3339),
		"vehicleNumber": "MH12AB1234",
	}
}

func (r *runner) call(ctx context.Context, method, path string, body any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	return resp.StatusCode, out, time.Since(start), err
}

func expect(code int, latency time.Duration, err error, want int) result {
	if err != nil {
		return result{Status: statusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("status=%d", code)
	if code != want {
		return result{Status: statusFail, Latency: latency, Note: note}
	}
	return result{Status: statusPass, Latency: latency, Note: note}
}

// concurrentCreate books the same slot from many users at once. Exactly one
// must win; the winner is cancelled afterwards so the slot is released.
func concurrentCreate(ctx context.Context, r *runner) result {
	start := time.Now().Add(time.Hour)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   []string
		conflicts int
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := r.bookingBody(fmt.Sprintf("smoke-user-%d", i), start, start.Add(time.Hour))
			code, out, _, err := r.call(ctx, http.MethodPost, "/api/booking/create", body)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch code {
			case http.StatusCreated:
				var res struct {
					ID string `json:"id"`
				}
				if json.Unmarshal(out, &res) == nil {
					created = append(created, res.ID)
				}
			case http.StatusConflict:
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	for _, id := range created {
		_, _, _, _ = r.call(ctx, http.MethodPost, "/api/booking/cancel/"+id, nil)
	}
	note := fmt.Sprintf("created=%d conflicts=%d", len(created), conflicts)
	if len(created) != 1 {
		return result{Status: statusFail, Note: note}
	}
	return result{Status: statusPass, Note: note}
}

func searchLoad(ctx context.Context, r *runner, payload any) result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		count    int64
		errCount int64
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				code, _, _, err := r.call(ctx, http.MethodPost, "/api/parking/search", payload)
				mu.Lock()
				if err != nil || code != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}
