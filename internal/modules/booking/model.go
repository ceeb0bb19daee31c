// README: Reservation aggregate and lifecycle status definitions.
package booking

import (
	"time"

	"parkmatch/internal/modules/slot"
	"parkmatch/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Holding reports whether a reservation in this status keeps its slot occupied.
func (s Status) Holding() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusActive:
		return true
	}
	return false
}

// AllowedTransitions represents the reservation lifecycle as code.
var AllowedTransitions = map[Status][]Status{
	StatusNone:      {StatusPending},
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Reservation struct {
	ID          types.ID  `json:"id"`
	UserID      types.ID  `json:"userId"`
	SlotID      types.ID  `json:"slotId"`
	City        string    `json:"city"`
	Area        string    `json:"area"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	ParkingType slot.Type `json:"parkingType"`
	BookingTime time.Time `json:"bookingTime"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`

	BasePricePerHour float64  `json:"basePricePerHour"`
	PricePerHour     float64  `json:"pricePerHour"`
	TotalPrice       float64  `json:"totalPrice"`
	PriceMultiplier  *float64 `json:"priceMultiplier,omitempty"`

	Status       Status `json:"status"`
	IsEVCharging bool   `json:"isEVCharging"`
	IsHandicap   bool   `json:"isHandicap"`

	AvailabilityProbability *float64 `json:"availabilityProbability,omitempty"`
	AvailabilityConfidence  *string  `json:"availabilityConfidence,omitempty"`

	VehicleNumber   *string `json:"vehicleNumber,omitempty"`
	VehicleModel    *string `json:"vehicleModel,omitempty"`
	SpecialRequests *string `json:"specialRequests,omitempty"`

	CheckinTime  *time.Time `json:"checkinTime,omitempty"`
	CheckoutTime *time.Time `json:"checkoutTime,omitempty"`
}

// Event is one journaled lifecycle transition.
type Event struct {
	BookingID types.ID  `json:"bookingId"`
	SlotID    types.ID  `json:"slotId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Actor     string    `json:"actor"`
	At        time.Time `json:"at"`
}

const (
	ActorUser   = "user"
	ActorSystem = "system"
)
