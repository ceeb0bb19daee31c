// README: Config loader with env defaults for HTTP, pool, matching, scoring, pricing and booking settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidValue marks an environment variable that is set but unparsable.
var ErrInvalidValue = errors.New("invalid config value")

type PoolConfig struct {
	DataFile   string
	Resolution int
	MaxRings   int
}

type MatchingConfig struct {
	AvgSpeedKmh     float64
	DefaultRadiusKm float64
	DefaultMaxPrice float64
}

// ScoringConfig holds the score weights; see scoring.Weights.
type ScoringConfig struct {
	Base            float64
	Distance        float64
	Price           float64
	PricePenalty    float64
	AmenityBonus    float64
	AmenityPenalty  float64
	TypeBonus       float64
	StrictAmenities bool
}

type PricingConfig struct {
	BaseURL         string
	AvailabilityURL string
	Timeout         time.Duration
}

type BookingConfig struct {
	SweepSpec   string
	NoShowGrace time.Duration
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Log struct {
		Level  string
		Format string
	}
	Pool     PoolConfig
	Matching MatchingConfig
	Scoring  ScoringConfig
	Pricing  PricingConfig
	Booking  BookingConfig
}

// Defaults returns the configuration used when no environment is set.
func Defaults() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Pool = PoolConfig{DataFile: "parking_slots_all.json", Resolution: 9, MaxRings: 10}
	cfg.Matching = MatchingConfig{AvgSpeedKmh: 30, DefaultRadiusKm: 5, DefaultMaxPrice: 100}
	cfg.Scoring = ScoringConfig{
		Base:            100,
		Distance:        40,
		Price:           25,
		PricePenalty:    20,
		AmenityBonus:    15,
		AmenityPenalty:  50,
		TypeBonus:       10,
		StrictAmenities: true,
	}
	cfg.Pricing.Timeout = 800 * time.Millisecond
	cfg.Booking = BookingConfig{SweepSpec: "@every 1m", NoShowGrace: 15 * time.Minute}
	return cfg
}

// Load reads an optional .env file and then the process environment. Every
// variable that is set but cannot be parsed is reported in the error.
func Load() (Config, error) {
	_ = godotenv.Load()

	d := Defaults()
	var (
		cfg Config
		env envParser
	)
	cfg.HTTP.Addr = envOrDefault("PARKMATCH_HTTP_ADDR", d.HTTP.Addr)
	cfg.DB.DSN = envOrDefault("PARKMATCH_DB_DSN", "")
	cfg.Redis.Addr = envOrDefault("PARKMATCH_REDIS_ADDR", "")
	cfg.Log.Level = envOrDefault("PARKMATCH_LOG_LEVEL", d.Log.Level)
	cfg.Log.Format = envOrDefault("PARKMATCH_LOG_FORMAT", d.Log.Format)

	cfg.Pool.DataFile = envOrDefault("PARKMATCH_DATA_FILE", d.Pool.DataFile)
	cfg.Pool.Resolution = env.intVal("PARKMATCH_H3_RESOLUTION", d.Pool.Resolution)
	cfg.Pool.MaxRings = env.intVal("PARKMATCH_MAX_RINGS", d.Pool.MaxRings)

	cfg.Matching.AvgSpeedKmh = env.floatVal("PARKMATCH_AVG_SPEED_KMH", d.Matching.AvgSpeedKmh)
	cfg.Matching.DefaultRadiusKm = env.floatVal("PARKMATCH_DEFAULT_RADIUS_KM", d.Matching.DefaultRadiusKm)
	cfg.Matching.DefaultMaxPrice = env.floatVal("PARKMATCH_DEFAULT_MAX_PRICE", d.Matching.DefaultMaxPrice)

	cfg.Scoring.Base = env.floatVal("PARKMATCH_SCORE_BASE", d.Scoring.Base)
	cfg.Scoring.Distance = env.floatVal("PARKMATCH_SCORE_DISTANCE", d.Scoring.Distance)
	cfg.Scoring.Price = env.floatVal("PARKMATCH_SCORE_PRICE", d.Scoring.Price)
	cfg.Scoring.PricePenalty = env.floatVal("PARKMATCH_SCORE_PRICE_PENALTY", d.Scoring.PricePenalty)
	cfg.Scoring.AmenityBonus = env.floatVal("PARKMATCH_SCORE_AMENITY_BONUS", d.Scoring.AmenityBonus)
	cfg.Scoring.AmenityPenalty = env.floatVal("PARKMATCH_SCORE_AMENITY_PENALTY", d.Scoring.AmenityPenalty)
	cfg.Scoring.TypeBonus = env.floatVal("PARKMATCH_SCORE_TYPE_BONUS", d.Scoring.TypeBonus)
	cfg.Scoring.StrictAmenities = env.boolVal("PARKMATCH_STRICT_AMENITIES", d.Scoring.StrictAmenities)

	cfg.Pricing.BaseURL = strings.TrimRight(envOrDefault("PARKMATCH_PRICING_URL", ""), "/")
	cfg.Pricing.AvailabilityURL = strings.TrimRight(envOrDefault("PARKMATCH_AVAILABILITY_URL", cfg.Pricing.BaseURL), "/")
	cfg.Pricing.Timeout = env.durationVal("PARKMATCH_PRICING_TIMEOUT", d.Pricing.Timeout)

	cfg.Booking.SweepSpec = envOrDefault("PARKMATCH_SWEEP_SPEC", d.Booking.SweepSpec)
	cfg.Booking.NoShowGrace = env.durationVal("PARKMATCH_NOSHOW_GRACE", d.Booking.NoShowGrace)
	if err := env.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envParser reads typed values and collects the ones that are set but
// cannot be parsed.
type envParser struct {
	errs []error
}

func (e *envParser) invalid(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, key, v, err))
}

func (e *envParser) err() error {
	return errors.Join(e.errs...)
}

func (e *envParser) intVal(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.invalid(key, v, err)
		return def
	}
	return n
}

func (e *envParser) floatVal(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.invalid(key, v, err)
		return def
	}
	return n
}

func (e *envParser) boolVal(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid(key, v, err)
		return def
	}
	return b
}

func (e *envParser) durationVal(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid(key, v, err)
		return def
	}
	return d
}
