// README: Price adjustment request/response types exchanged with the pricing oracle.
package pricing

import (
	"time"

	"parkmatch/internal/modules/slot"
)

// Context describes the slot and the moment a price is requested for.
type Context struct {
	SlotID        string
	City          string
	Area          string
	Type          slot.Type
	BasePrice     float64
	IsEVCharging  bool
	IsHandicap    bool
	Start         time.Time
	DemandScore   float64
	OccupancyRate float64
	NearbySlots   int

	AvailableSlots int
	TotalSlots     int
}

// ContextFor builds a pricing context from a slot.
func ContextFor(s slot.Slot, start time.Time, stats slot.Stats) Context {
	return Context{
		SlotID:        string(s.ID),
		City:          s.City,
		Area:          s.Area,
		Type:          s.Type,
		BasePrice:     s.PricePerHr,
		IsEVCharging:  s.IsEVCharging,
		IsHandicap:    s.IsHandicap,
		Start:         start,
		OccupancyRate: stats.OccupancyRate(),
		NearbySlots:   defaultNearbySlots,

		AvailableSlots: stats.Available,
		TotalSlots:     stats.Total,
	}
}

const defaultNearbySlots = 10

// Adjustment is what the oracle returns for a Context. Availability fields are
// nil when no prediction was made.
type Adjustment struct {
	Multiplier              float64
	AvailabilityProbability *float64
	AvailabilityConfidence  *string
}

// ConfidenceLevel buckets a model confidence in [0,1] into a label.
func ConfidenceLevel(c float64) string {
	switch {
	case c >= 0.9:
		return "Very High"
	case c >= 0.8:
		return "High"
	case c >= 0.7:
		return "Medium"
	case c >= 0.6:
		return "Low"
	default:
		return "Very Low"
	}
}

type predictPriceRequest struct {
	City          string  `json:"city"`
	Area          string  `json:"area,omitempty"`
	ParkingType   string  `json:"parking_type"`
	BasePrice     float64 `json:"base_price"`
	IsEVCharging  bool    `json:"is_ev_charging"`
	IsHandicap    bool    `json:"is_handicap"`
	DemandScore   float64 `json:"demand_score,omitempty"`
	OccupancyRate float64 `json:"occupancy_rate,omitempty"`
	Hour          int     `json:"hour"`
	DayOfWeek     int     `json:"day_of_week"`
	Month         int     `json:"month"`
}

type predictPriceResponse struct {
	PredictedPrice  float64 `json:"predicted_price"`
	BasePrice       float64 `json:"base_price"`
	PriceMultiplier float64 `json:"price_multiplier"`
	Confidence      string  `json:"confidence"`
}

type availabilityRequest struct {
	City             string  `json:"city"`
	Area             string  `json:"area"`
	ParkingType      string  `json:"parking_type"`
	Timestamp        string  `json:"timestamp"`
	IsEVCharging     bool    `json:"is_ev_charging"`
	IsHandicap       bool    `json:"is_handicap"`
	PricePerHour     float64 `json:"price_per_hour"`
	NearbySlotsCount int     `json:"nearby_slots_count"`
}

type availabilityResponse struct {
	Success                 bool    `json:"success"`
	IsAvailable             bool    `json:"is_available"`
	AvailabilityProbability float64 `json:"availability_probability"`
	Confidence              float64 `json:"confidence"`
}

type DemandRequest struct {
	City           string `json:"city"`
	ParkingType    string `json:"parking_type"`
	AvailableSlots int    `json:"available_slots"`
	TotalSlots     int    `json:"total_slots"`
	RecentRequests int    `json:"recent_requests"`
	Hour           int    `json:"hour,omitempty"`
	DayOfWeek      int    `json:"day_of_week,omitempty"`
}

type DemandResponse struct {
	DemandScore   float64 `json:"demand_score"`
	OccupancyRate float64 `json:"occupancy_rate"`
	DemandLevel   string  `json:"demand_level"`
}
