package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmatch/internal/config"
	httptransport "parkmatch/internal/http"
	"parkmatch/internal/modules/booking"
	"parkmatch/internal/modules/matching"
	"parkmatch/internal/modules/scoring"
	"parkmatch/internal/modules/slot"
)

func buildTestRouter(t *testing.T) (*gin.Engine, *slot.Pool) {
	t.Helper()
	return buildTestRouterWith(t, nil)
}

func buildTestRouterWith(t *testing.T, pricing httptransport.PricingHealth) (*gin.Engine, *slot.Pool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := config.Defaults()
	pool, err := slot.NewPool(cfg.Pool, log)
	require.NoError(t, err)
	pool.Load(slot.Document{"Pune": {
		{ID: "R1", Latitude: 18.52, Longitude: 73.85, City: "Pune", Area: "Shivajinagar",
			Type: slot.TypeStreet, Status: slot.StatusAvailable, PricePerHr: 25},
		{ID: "R2", Latitude: 18.60, Longitude: 73.95, City: "Pune", Area: "Wagholi",
			Type: slot.TypeMall, Status: slot.StatusAvailable, PricePerHr: 40, IsEVCharging: true},
	}})

	engine := matching.NewEngine(pool, scoring.FromConfig(cfg.Scoring), cfg.Matching, log)
	bookings := booking.NewService(booking.NewStore(), pool, booking.Options{Log: log})
	r := httptransport.NewRouter(httptransport.ServerDeps{
		Pool:       pool,
		Matching:   engine,
		Booking:    bookings,
		Pricing:    pricing,
		Resolution: cfg.Pool.Resolution,
		Log:        log,
	})
	return r, pool
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	r, _ := buildTestRouter(t)
	w := doRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["availableSlots"])
}

type pricingHealthFunc func(ctx context.Context) (bool, error)

func (f pricingHealthFunc) HealthCheck(ctx context.Context) (bool, error) { return f(ctx) }

func TestHealth_ReportsPricing(t *testing.T) {
	r, _ := buildTestRouter(t)
	assert.NotContains(t, decode(t, doRequest(r, http.MethodGet, "/health", nil)), "pricing")

	up, _ := buildTestRouterWith(t, pricingHealthFunc(func(context.Context) (bool, error) { return true, nil }))
	assert.Equal(t, "healthy", decode(t, doRequest(up, http.MethodGet, "/health", nil))["pricing"])

	down, _ := buildTestRouterWith(t, pricingHealthFunc(func(context.Context) (bool, error) {
		return false, errors.New("connection refused")
	}))
	w := doRequest(down, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "unhealthy", body["pricing"])
}

func TestNearbySlots(t *testing.T) {
	r, _ := buildTestRouter(t)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/parking/mark-occupied/R1", nil).Code)

	w := doRequest(r, http.MethodGet, "/api/parking/nearby?lat=18.52&lng=73.85", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"], "R2 is ~14 km away")
	s := body["slots"].([]any)[0].(map[string]any)
	assert.Equal(t, "R1", s["id"])
	assert.Equal(t, "occupied", s["status"])

	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/api/parking/nearby?lat=18.52", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/api/parking/nearby?lat=91&lng=73.85", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/api/parking/nearby?lat=18.52&lng=73.85&radiusKm=50", nil).Code)
}

func TestSearch(t *testing.T) {
	r, _ := buildTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/parking/search", map[string]any{
		"userLat": 18.52, "userLng": 73.85, "maxDistance": 2, "maxPrice": 30,
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	m := body["match"].(map[string]any)
	assert.Equal(t, "R1", m["parkingSlot"].(map[string]any)["id"])

	w = doRequest(r, http.MethodPost, "/api/parking/search", map[string]any{
		"userLat": 18.52, "userLng": 73.85, "requiresEV": true, "maxDistance": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["success"], "no match is not an error")

	w = doRequest(r, http.MethodPost, "/api/parking/search", `{"userLat": "north"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/parking/search", map[string]any{"maxPrice": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchSearch_Reserve(t *testing.T) {
	r, pool := buildTestRouter(t)
	reqs := []map[string]any{
		{"id": "low", "userLat": 18.52, "userLng": 73.85, "maxDistance": 1, "priority": 1},
		{"id": "high", "userLat": 18.52, "userLng": 73.85, "maxDistance": 1, "priority": 2},
	}

	w := doRequest(r, http.MethodPost, "/api/parking/batch-search?reserve=true", reqs)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode(t, w)["result"].(map[string]any)
	assert.Equal(t, float64(2), res["totalRequests"])
	assert.Equal(t, float64(1), res["matchedCount"])
	assert.Equal(t, []any{"low"}, res["unmatchedRequestIds"])
	match := res["matches"].([]any)[0].(map[string]any)
	assert.Equal(t, "high", match["requestId"])

	s, err := pool.Get("R1")
	require.NoError(t, err)
	assert.Equal(t, slot.StatusOccupied, s.Status)
}

func TestStatusOverrides(t *testing.T) {
	r, _ := buildTestRouter(t)

	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodPost, "/api/parking/mark-occupied/nope", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/parking/mark-occupied/R2", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/parking/mark-occupied/R2", nil).Code, "idempotent")

	w := doRequest(r, http.MethodGet, "/api/parking/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, float64(1), stats["availableCount"])
	assert.Equal(t, float64(1), stats["occupiedCount"])
	assert.Equal(t, float64(2), stats["totalCount"])
	assert.Equal(t, 0.5, stats["occupancyRate"])

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/parking/mark-available/R2", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/parking/mark-available/R2", nil).Code, "idempotent")
}

func TestBookingFlow(t *testing.T) {
	r, pool := buildTestRouter(t)
	start := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	w := doRequest(r, http.MethodPost, "/api/booking/create", map[string]any{
		"userId":        "u-42",
		"slotId":        "R1",
		"startTime":     start,
		"endTime":       start.Add(2 * time.Hour),
		"vehicleNumber": "MH12AB1234",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id := created["id"].(string)
	assert.Equal(t, "confirmed", created["status"])
	assert.Equal(t, float64(50), created["totalPrice"])
	assert.Equal(t, "MH12AB1234", created["vehicleNumber"])

	assert.Equal(t, http.StatusConflict, doRequest(r, http.MethodPost, "/api/parking/mark-available/R1", nil).Code)
	assert.Equal(t, http.StatusConflict, doRequest(r, http.MethodPost, "/api/booking/create", map[string]any{
		"userId": "u-7", "slotId": "R1", "startTime": start, "endTime": start.Add(time.Hour),
	}).Code)

	w = doRequest(r, http.MethodGet, "/api/booking/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["id"])

	w = doRequest(r, http.MethodGet, "/api/booking/user/u-42", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	assert.Equal(t, http.StatusConflict, doRequest(r, http.MethodPost, "/api/booking/checkout/"+id, nil).Code)
	assert.Equal(t, http.StatusConflict, doRequest(r, http.MethodPost, "/api/booking/confirm/"+id, nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/booking/checkin/"+id, nil).Code)

	w = doRequest(r, http.MethodPost, "/api/booking/checkout/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	done := decode(t, w)
	assert.Equal(t, "completed", done["status"])
	assert.NotEmpty(t, done["checkoutTime"])

	s, _ := pool.Get("R1")
	assert.Equal(t, slot.StatusAvailable, s.Status)

	w = doRequest(r, http.MethodGet, "/api/booking/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)
	assert.Equal(t, float64(4), history["count"])
	last := history["events"].([]any)[3].(map[string]any)
	assert.Equal(t, "active", last["from"])
	assert.Equal(t, "completed", last["to"])
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/api/booking/missing/history", nil).Code)

	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/api/booking/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodPost, "/api/booking/cancel/missing", nil).Code)
}

func TestBookingCreate_EndBeforeStart(t *testing.T) {
	r, pool := buildTestRouter(t)
	start := time.Now().Add(time.Hour)
	w := doRequest(r, http.MethodPost, "/api/booking/create", map[string]any{
		"userId": "u-1", "slotId": "R1", "startTime": start, "endTime": start.Add(-time.Minute),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	s, _ := pool.Get("R1")
	assert.Equal(t, slot.StatusAvailable, s.Status)
}

func TestLocationEndpoints(t *testing.T) {
	r, _ := buildTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/location/h3", map[string]any{"latitude": 18.52, "longitude": 73.85})
	require.Equal(t, http.StatusOK, w.Code)
	cell := decode(t, w)
	assert.Equal(t, float64(9), cell["resolution"])
	index := cell["h3Index"].(string)
	assert.NotEmpty(t, index)
	assert.GreaterOrEqual(t, len(cell["boundary"].([]any)), 5)

	w = doRequest(r, http.MethodGet, "/api/h3/boundary/"+index, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(9), decode(t, w)["resolution"])

	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/api/h3/boundary/zzz", nil).Code)

	w = doRequest(r, http.MethodPost, "/api/location/nearby", map[string]any{"latitude": 18.52, "longitude": 73.85})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(19), decode(t, w)["totalCells"])

	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodPost, "/api/location/h3", map[string]any{"latitude": 18.52}).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodPost, "/api/location/h3", map[string]any{
		"latitude": 18.52, "longitude": 73.85, "resolution": 16,
	}).Code)
}

func TestCORSPreflight(t *testing.T) {
	r, _ := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/parking/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
