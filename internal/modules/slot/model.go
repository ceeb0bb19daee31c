// README: Parking slot aggregate, status and type definitions.
package slot

import (
	"time"

	"parkmatch/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusReserved  Status = "reserved"
)

type Type string

const (
	TypeStreet      Type = "street"
	TypeMall        Type = "mall"
	TypeResidential Type = "residential"
	TypeCommercial  Type = "commercial"
	TypeAirport     Type = "airport"
)

// Slot is a parking slot. Identity, location and classification never change
// once loaded; only Status is mutated, and only by the Pool.
type Slot struct {
	ID           types.ID `json:"id"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	H3Index      string   `json:"h3Index,omitempty"`
	City         string   `json:"city"`
	Area         string   `json:"area"`
	Type         Type     `json:"type"`
	Status       Status   `json:"status"`
	PricePerHr   float64  `json:"pricePerHour"`
	IsEVCharging bool     `json:"isEVCharging"`
	IsHandicap   bool     `json:"isHandicap"`
}

func (s Slot) Position() types.Point {
	return types.Point{Lat: s.Latitude, Lng: s.Longitude}
}

// AllowedTransitions represents the slot status flow as code. Setting a slot
// to the status it already has is always accepted as a no-op.
var AllowedTransitions = map[Status][]Status{
	StatusAvailable: {StatusOccupied, StatusReserved},
	StatusOccupied:  {StatusAvailable},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusReserved:
		return true
	}
	return false
}

// StatusChange is emitted to observers after every effective status flip.
type StatusChange struct {
	Slot Slot
	From Status
	To   Status
	At   time.Time
}

type Stats struct {
	Available int `json:"availableCount"`
	Occupied  int `json:"occupiedCount"`
	Reserved  int `json:"reservedCount"`
	Total     int `json:"totalCount"`
}

// OccupancyRate is the share of slots not currently available.
func (s Stats) OccupancyRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Total-s.Available) / float64(s.Total)
}

// Document is the persisted pool format: region name to slot records.
type Document map[string][]Slot

type LoadReport struct {
	Regions  int
	Admitted int
	Skipped  int
}
