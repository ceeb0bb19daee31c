// README: HTTP client for the external price and availability prediction services.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"parkmatch/internal/config"
)

// Client talks to the pricing API (predict-price, calculate-demand, health)
// and optionally to a separate availability API.
type Client struct {
	baseURL         string
	availabilityURL string
	timeout         time.Duration
	http            *http.Client
	log             logrus.FieldLogger
}

func NewClient(cfg config.PricingConfig, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.Defaults().Pricing.Timeout
	}
	avail := cfg.AvailabilityURL
	if avail == "" {
		avail = cfg.BaseURL
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		availabilityURL: strings.TrimRight(avail, "/"),
		timeout:         timeout,
		http:            &http.Client{},
		log:             log.WithField("component", "pricing_client"),
	}
}

// Adjust scores demand, asks for a price multiplier and, best effort, an
// availability prediction. Only the price call decides success; without a
// demand score the price is predicted from occupancy alone.
func (c *Client) Adjust(ctx context.Context, pc Context) (Adjustment, error) {
	demand, err := c.CalculateDemand(ctx, DemandRequest{
		City:           pc.City,
		ParkingType:    string(pc.Type),
		AvailableSlots: pc.AvailableSlots,
		TotalSlots:     pc.TotalSlots,
		Hour:           pc.Start.Hour(),
		DayOfWeek:      int(pc.Start.Weekday()),
	})
	if err != nil {
		c.log.WithError(err).WithField("slot_id", pc.SlotID).Warn("demand calculation failed")
	} else {
		pc.DemandScore = demand.DemandScore
	}

	price, err := c.predictPrice(ctx, pc)
	if err != nil {
		return Adjustment{}, err
	}
	m := price.PriceMultiplier
	if m == 0 && price.BasePrice > 0 {
		m = price.PredictedPrice / price.BasePrice
	}
	if !validMultiplier(m) {
		return Adjustment{}, fmt.Errorf("%w: multiplier %v out of range", ErrUnavailable, m)
	}

	adj := Adjustment{Multiplier: m}
	avail, err := c.predictAvailability(ctx, pc)
	if err != nil {
		c.log.WithError(err).WithField("slot_id", pc.SlotID).Warn("availability prediction failed")
		return adj, nil
	}
	prob := avail.AvailabilityProbability
	level := ConfidenceLevel(avail.Confidence)
	adj.AvailabilityProbability = &prob
	adj.AvailabilityConfidence = &level
	return adj, nil
}

func (c *Client) predictPrice(ctx context.Context, pc Context) (predictPriceResponse, error) {
	var out predictPriceResponse
	err := c.post(ctx, c.baseURL+"/api/predict-price", predictPriceRequest{
		City:          pc.City,
		Area:          pc.Area,
		ParkingType:   string(pc.Type),
		BasePrice:     pc.BasePrice,
		IsEVCharging:  pc.IsEVCharging,
		IsHandicap:    pc.IsHandicap,
		DemandScore:   pc.DemandScore,
		OccupancyRate: pc.OccupancyRate,
		Hour:          pc.Start.Hour(),
		DayOfWeek:     int(pc.Start.Weekday()),
		Month:         int(pc.Start.Month()),
	}, &out)
	return out, err
}

func (c *Client) predictAvailability(ctx context.Context, pc Context) (availabilityResponse, error) {
	var out availabilityResponse
	err := c.post(ctx, c.availabilityURL+"/api/predict-availability", availabilityRequest{
		City:             pc.City,
		Area:             pc.Area,
		ParkingType:      string(pc.Type),
		Timestamp:        pc.Start.Format(time.RFC3339),
		IsEVCharging:     pc.IsEVCharging,
		IsHandicap:       pc.IsHandicap,
		PricePerHour:     pc.BasePrice,
		NearbySlotsCount: pc.NearbySlots,
	}, &out)
	if err == nil && !out.Success {
		err = fmt.Errorf("%w: availability prediction unsuccessful", ErrUnavailable)
	}
	return out, err
}

func (c *Client) CalculateDemand(ctx context.Context, req DemandRequest) (DemandResponse, error) {
	var out DemandResponse
	err := c.post(ctx, c.baseURL+"/api/calculate-demand", req, &out)
	return out, err
}

// HealthCheck reports whether the pricing API answers {"status":"healthy"}.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.Status == "healthy", nil
}

func (c *Client) post(ctx context.Context, url string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes req and decodes a 200 JSON body into out. Every failure is
// wrapped in ErrUnavailable.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
