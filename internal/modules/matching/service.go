// README: Matching engine: single best match and priority-ordered batch assignment over the slot pool.
package matching

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"parkmatch/internal/config"
	"parkmatch/internal/modules/scoring"
	"parkmatch/internal/modules/slot"
	"parkmatch/internal/modules/spatial"
	"parkmatch/internal/types"
)

type Engine struct {
	pool     *slot.Pool
	weights  scoring.Weights
	defaults Defaults
	speedKmh float64

	log logrus.FieldLogger
	now func() time.Time
}

func NewEngine(pool *slot.Pool, weights scoring.Weights, cfg config.MatchingConfig, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	speed := cfg.AvgSpeedKmh
	if speed <= 0 {
		speed = config.Defaults().Matching.AvgSpeedKmh
	}
	return &Engine{
		pool:    pool,
		weights: weights,
		defaults: Defaults{
			MaxDistance: cfg.DefaultRadiusKm,
			MaxPrice:    cfg.DefaultMaxPrice,
			Priority:    1,
		},
		speedKmh: speed,
		log:      log.WithField("component", "matching"),
		now:      time.Now,
	}
}

type candidate struct {
	slot     slot.Slot
	distance float64
	score    float64
}

// better orders candidates by score, then distance, then slot id.
func (c candidate) better(o candidate) bool {
	if c.score != o.score {
		return c.score > o.score
	}
	if c.distance != o.distance {
		return c.distance < o.distance
	}
	return c.slot.ID < o.slot.ID
}

// FindBest returns the best available slot for req, or nil when nothing
// qualifies. No slot is mutated.
func (e *Engine) FindBest(req Request) (*Match, error) {
	if err := req.normalize(e.defaults, e.now(), -1); err != nil {
		return nil, err
	}
	var (
		best  candidate
		found bool
	)
	e.pool.Read(func(tx *slot.Tx) {
		best, found = e.best(tx, req, nil)
	})
	if !found {
		return nil, nil
	}
	m := e.match(req, best)
	return &m, nil
}

// BatchMatch serves reqs in descending priority, input order breaking ties,
// and never grants a slot twice within the call. With opts.Reserve the whole
// batch runs under the pool's exclusive lock and winners become occupied,
// so concurrent reserving batches never share a slot.
func (e *Engine) BatchMatch(reqs []Request, opts BatchOptions) (BatchResult, error) {
	start := time.Now()
	now := e.now()

	ordered := make([]Request, len(reqs))
	copy(ordered, reqs)
	for i := range ordered {
		if err := ordered[i].normalize(e.defaults, now, i); err != nil {
			return BatchResult{}, err
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	res := BatchResult{
		Matches:       make([]Match, 0, len(ordered)),
		UnmatchedReqs: make([]string, 0),
		TotalRequests: len(ordered),
	}
	granted := make(map[types.ID]struct{}, len(ordered))

	assign := func(tx *slot.Tx) error {
		for _, req := range ordered {
			c, ok := e.best(tx, req, granted)
			if !ok {
				res.UnmatchedReqs = append(res.UnmatchedReqs, req.ID)
				continue
			}
			if opts.Reserve {
				if err := tx.CompareAndSetStatus(c.slot.ID, slot.StatusAvailable, slot.StatusOccupied); err != nil {
					return err
				}
				c.slot.Status = slot.StatusOccupied
			}
			granted[c.slot.ID] = struct{}{}
			res.Matches = append(res.Matches, e.match(req, c))
		}
		return nil
	}

	if opts.Reserve {
		if err := e.pool.Write(assign); err != nil {
			return BatchResult{}, err
		}
	} else {
		e.pool.Read(func(tx *slot.Tx) { _ = assign(tx) })
	}

	res.MatchedCount = len(res.Matches)
	res.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000
	e.log.WithFields(logrus.Fields{
		"requests": res.TotalRequests,
		"matched":  res.MatchedCount,
		"reserve":  opts.Reserve,
		"ms":       res.ProcessingTimeMs,
	}).Debug("batch matched")
	return res, nil
}

// best must run inside a pool transaction.
func (e *Engine) best(tx *slot.Tx, req Request, skip map[types.ID]struct{}) (candidate, bool) {
	origin := req.Origin()
	constraints := req.constraints()

	var (
		best  candidate
		found bool
	)
	for _, s := range tx.Candidates(origin, req.MaxDistance) {
		if s.Status != slot.StatusAvailable {
			continue
		}
		if _, taken := skip[s.ID]; taken {
			continue
		}
		d := spatial.HaversineKm(origin, s.Position())
		if d > req.MaxDistance {
			continue
		}
		score, ok := e.weights.Score(constraints, s, d)
		if !ok {
			continue
		}
		c := candidate{slot: s, distance: d, score: score}
		if !found || c.better(best) {
			best, found = c, true
		}
	}
	return best, found
}

func (e *Engine) match(req Request, c candidate) Match {
	return Match{
		RequestID:   req.ID,
		ParkingSlot: c.slot,
		Distance:    c.distance,
		Score:       c.score,
		TravelTime:  c.distance / e.speedKmh * 60,
		MatchedAt:   e.now(),
	}
}
