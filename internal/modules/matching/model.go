// README: Search requests, matches and batch results exchanged with the matching engine.
package matching

import (
	"errors"
	"fmt"
	"math"
	"time"

	"parkmatch/internal/modules/scoring"
	"parkmatch/internal/modules/slot"
	"parkmatch/internal/types"
)

var ErrInvalidRequest = errors.New("invalid search request")

// Request is one search. Zero MaxDistance, MaxPrice and Priority take the
// engine defaults.
type Request struct {
	ID               string      `json:"id"`
	UserLat          float64     `json:"userLat"`
	UserLng          float64     `json:"userLng"`
	MaxDistance      float64     `json:"maxDistance"`
	MaxPrice         float64     `json:"maxPrice"`
	RequiresEV       bool        `json:"requiresEV"`
	RequiresHandicap bool        `json:"requiresHandicap"`
	PreferredTypes   []slot.Type `json:"preferredTypes"`
	Timestamp        time.Time   `json:"timestamp"`
	Priority         float64     `json:"priority"`
}

func (r Request) Origin() types.Point {
	return types.Point{Lat: r.UserLat, Lng: r.UserLng}
}

func (r Request) constraints() scoring.Constraints {
	return scoring.Constraints{
		MaxDistance:      r.MaxDistance,
		MaxPrice:         r.MaxPrice,
		RequiresEV:       r.RequiresEV,
		RequiresHandicap: r.RequiresHandicap,
		PreferredTypes:   r.PreferredTypes,
		Priority:         r.Priority,
	}
}

type Match struct {
	RequestID   string    `json:"requestId"`
	ParkingSlot slot.Slot `json:"parkingSlot"`
	Distance    float64   `json:"distance"`
	Score       float64   `json:"score"`
	TravelTime  float64   `json:"travelTime"`
	MatchedAt   time.Time `json:"matchedAt"`
}

type BatchResult struct {
	Matches          []Match  `json:"matches"`
	UnmatchedReqs    []string `json:"unmatchedRequestIds"`
	ProcessingTimeMs float64  `json:"processingTimeMs"`
	TotalRequests    int      `json:"totalRequests"`
	MatchedCount     int      `json:"matchedCount"`
}

type BatchOptions struct {
	// Reserve flips every winning slot to occupied before the batch releases
	// the pool lock.
	Reserve bool
}

// Defaults fill the zero fields of a Request.
type Defaults struct {
	MaxDistance float64
	MaxPrice    float64
	Priority    float64
}

// normalize fills defaults, stamps the request and rejects values that can
// not be scored. seq >= 0 marks the position of the request inside a batch.
func (r *Request) normalize(d Defaults, now time.Time, seq int) error {
	if r.ID == "" {
		if seq >= 0 {
			r.ID = fmt.Sprintf("REQ-%d-%d", now.UnixNano(), seq)
		} else {
			r.ID = fmt.Sprintf("REQ-%d", now.UnixNano())
		}
	}
	if !r.Origin().Valid() {
		return fmt.Errorf("%w: %s: origin out of range", ErrInvalidRequest, r.ID)
	}
	for _, f := range []struct {
		name string
		v    *float64
		def  float64
	}{
		{"maxDistance", &r.MaxDistance, d.MaxDistance},
		{"maxPrice", &r.MaxPrice, d.MaxPrice},
		{"priority", &r.Priority, d.Priority},
	} {
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) || *f.v < 0 {
			return fmt.Errorf("%w: %s: %s must be a non-negative number", ErrInvalidRequest, r.ID, f.name)
		}
		if *f.v == 0 {
			*f.v = f.def
		}
	}
	r.Timestamp = now
	return nil
}
