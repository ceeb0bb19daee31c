package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parkmatch/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 10.805, Lng: 78.690},
			b:         types.Point{Lat: 10.805, Lng: 78.690},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "one degree of latitude at the equator",
			a:         types.Point{Lat: 0, Lng: 0},
			b:         types.Point{Lat: 1, Lng: 0},
			wantKm:    111.19,
			tolerance: 0.05,
		},
		{
			name:      "Connaught Place to IGI Airport (~13km)",
			a:         types.Point{Lat: 28.6315, Lng: 77.2167},
			b:         types.Point{Lat: 28.5562, Lng: 77.1000},
			wantKm:    14.5,
			tolerance: 1.5,
		},
		{
			name:      "Mumbai to Delhi (~1150km)",
			a:         types.Point{Lat: 19.0760, Lng: 72.8777},
			b:         types.Point{Lat: 28.7041, Lng: 77.1025},
			wantKm:    1150,
			tolerance: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantKm, HaversineKm(tt.a, tt.b), tt.tolerance)
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	a := types.Point{Lat: 12.97, Lng: 77.63}
	b := types.Point{Lat: 13.02, Lng: 77.55}
	assert.InDelta(t, HaversineKm(a, b), HaversineKm(b, a), 0.0001)
}
