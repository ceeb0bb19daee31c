// README: Candidate scoring: request constraints + slot + distance -> desirability.
package scoring

import (
	"parkmatch/internal/config"
	"parkmatch/internal/modules/slot"
)

// Weights are the score terms. Distance and Price are the maximum bonuses,
// reached at zero distance and zero price respectively.
type Weights struct {
	Base           float64
	Distance       float64
	Price          float64
	PricePenalty   float64
	AmenityBonus   float64
	AmenityPenalty float64
	TypeBonus      float64

	// StrictAmenities drops candidates missing a required amenity instead of
	// applying AmenityPenalty.
	StrictAmenities bool
}

func DefaultWeights() Weights {
	return FromConfig(config.Defaults().Scoring)
}

func FromConfig(c config.ScoringConfig) Weights {
	return Weights{
		Base:            c.Base,
		Distance:        c.Distance,
		Price:           c.Price,
		PricePenalty:    c.PricePenalty,
		AmenityBonus:    c.AmenityBonus,
		AmenityPenalty:  c.AmenityPenalty,
		TypeBonus:       c.TypeBonus,
		StrictAmenities: c.StrictAmenities,
	}
}

// Constraints is the part of a search request the score depends on.
type Constraints struct {
	MaxDistance      float64
	MaxPrice         float64
	RequiresEV       bool
	RequiresHandicap bool
	PreferredTypes   []slot.Type
	Priority         float64
}

// Disqualified is returned as the score of a candidate that must not be selected.
const Disqualified = -1.0

// Score rates s for c at the given great-circle distance in km. ok is false
// when the candidate is disqualified: out of range, a missing amenity under
// StrictAmenities, or a negative total.
func (w Weights) Score(c Constraints, s slot.Slot, distanceKm float64) (score float64, ok bool) {
	if c.MaxDistance <= 0 || distanceKm > c.MaxDistance {
		return Disqualified, false
	}

	score = w.Base
	score += w.Distance * (1 - distanceKm/c.MaxDistance)

	if c.MaxPrice > 0 && s.PricePerHr <= c.MaxPrice {
		score += w.Price * (1 - s.PricePerHr/c.MaxPrice)
	} else {
		score -= w.PricePenalty
	}

	for _, a := range []struct{ required, present bool }{
		{c.RequiresEV, s.IsEVCharging},
		{c.RequiresHandicap, s.IsHandicap},
	} {
		switch {
		case !a.required:
		case a.present:
			score += w.AmenityBonus
		case w.StrictAmenities:
			return Disqualified, false
		default:
			score -= w.AmenityPenalty
		}
	}

	for _, t := range c.PreferredTypes {
		if s.Type == t {
			score += w.TypeBonus
			break
		}
	}

	score *= c.Priority
	if score < 0 {
		return Disqualified, false
	}
	return score, true
}
