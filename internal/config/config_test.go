package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 9, cfg.Pool.Resolution)
	assert.Equal(t, 10, cfg.Pool.MaxRings)
	assert.Equal(t, 30.0, cfg.Matching.AvgSpeedKmh)
	assert.Equal(t, Defaults().Scoring, cfg.Scoring)
	assert.Empty(t, cfg.Pricing.BaseURL)
	assert.Empty(t, cfg.DB.DSN)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PARKMATCH_HTTP_ADDR", ":9090")
	t.Setenv("PARKMATCH_H3_RESOLUTION", "8")
	t.Setenv("PARKMATCH_SCORE_AMENITY_PENALTY", "80")
	t.Setenv("PARKMATCH_STRICT_AMENITIES", "false")
	t.Setenv("PARKMATCH_PRICING_URL", "http://pricing:5000/")
	t.Setenv("PARKMATCH_PRICING_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 8, cfg.Pool.Resolution)
	assert.Equal(t, 10, cfg.Pool.MaxRings)
	assert.Equal(t, 80.0, cfg.Scoring.AmenityPenalty)
	assert.False(t, cfg.Scoring.StrictAmenities)
	assert.Equal(t, "http://pricing:5000", cfg.Pricing.BaseURL)
	assert.Equal(t, "http://pricing:5000", cfg.Pricing.AvailabilityURL)
	assert.Equal(t, 2*time.Second, cfg.Pricing.Timeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("PARKMATCH_H3_RESOLUTION", "abc")
	t.Setenv("PARKMATCH_STRICT_AMENITIES", "maybe")
	t.Setenv("PARKMATCH_PRICING_TIMEOUT", "800")
	t.Setenv("PARKMATCH_SCORE_BASE", "1e2")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Contains(t, err.Error(), "PARKMATCH_H3_RESOLUTION")
	assert.Contains(t, err.Error(), "PARKMATCH_STRICT_AMENITIES")
	assert.Contains(t, err.Error(), "PARKMATCH_PRICING_TIMEOUT")
	assert.NotContains(t, err.Error(), "PARKMATCH_SCORE_BASE")
}
