// README: Pricing oracle contract and the static fallback.
package pricing

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("pricing oracle unavailable")

// Oracle proposes a price adjustment for a booking. Implementations must honor
// ctx cancellation; callers fall back to the static price on any error.
type Oracle interface {
	Adjust(ctx context.Context, pc Context) (Adjustment, error)
}

// Static keeps the slot's own price and makes no availability prediction.
type Static struct{}

func (Static) Adjust(context.Context, Context) (Adjustment, error) {
	return Adjustment{Multiplier: 1}, nil
}

// MaxMultiplier bounds the accepted oracle multiplier; larger values are
// treated as a failed prediction.
const MaxMultiplier = 10.0

func validMultiplier(m float64) bool {
	return m > 0 && m <= MaxMultiplier
}
