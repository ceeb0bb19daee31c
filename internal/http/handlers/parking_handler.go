// README: Parking handlers for search, batch search, status overrides and stats.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parkmatch/internal/modules/booking"
	"parkmatch/internal/modules/matching"
	"parkmatch/internal/modules/slot"
	"parkmatch/internal/types"
)

type ParkingHandler struct {
	matching *matching.Engine
	pool     *slot.Pool
	booking  *booking.Service
}

func NewParkingHandler(engine *matching.Engine, pool *slot.Pool, bookings *booking.Service) *ParkingHandler {
	return &ParkingHandler{matching: engine, pool: pool, booking: bookings}
}

func (h *ParkingHandler) Search(c *gin.Context) {
	var req matching.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.matching.FindBest(req)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if m == nil {
		writeJSON(c, http.StatusOK, gin.H{
			"success": false,
			"message": "No available parking slots found matching your criteria",
		})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "match": m})
}

// BatchSearch takes a JSON array of requests. ?reserve=true occupies the
// winning slots atomically with the assignment.
func (h *ParkingHandler) BatchSearch(c *gin.Context) {
	var reqs []matching.Request
	if err := c.ShouldBindJSON(&reqs); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.matching.BatchMatch(reqs, matching.BatchOptions{Reserve: c.Query("reserve") == "true"})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "result": res})
}

func (h *ParkingHandler) MarkOccupied(c *gin.Context) {
	id := c.Param("slotId")
	if err := h.pool.SetStatus(types.ID(id), slot.StatusOccupied); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Parking slot %s marked as occupied", id),
	})
}

// MarkAvailable refuses while a booking holds the slot.
func (h *ParkingHandler) MarkAvailable(c *gin.Context) {
	id := c.Param("slotId")
	if err := h.booking.Release(types.ID(id)); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Parking slot %s marked as available", id),
	})
}

const (
	defaultNearbyRadiusKm = 1.0
	maxNearbyRadiusKm     = 10.0
)

type nearbyQuery struct {
	Lat      *float64 `form:"lat" binding:"required"`
	Lng      *float64 `form:"lng" binding:"required"`
	RadiusKm float64  `form:"radiusKm"`
}

// Nearby lists slots of any status around a point, nearest first.
func (h *ParkingHandler) Nearby(c *gin.Context) {
	var q nearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	p := types.Point{Lat: *q.Lat, Lng: *q.Lng}
	if !p.Valid() {
		writeError(c, http.StatusBadRequest, "lat/lng out of range")
		return
	}
	radius := q.RadiusKm
	if radius == 0 {
		radius = defaultNearbyRadiusKm
	}
	if !(radius > 0 && radius <= maxNearbyRadiusKm) {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("radiusKm must be in (0, %g]", maxNearbyRadiusKm))
		return
	}
	slots := h.pool.Nearby(p, radius)
	writeJSON(c, http.StatusOK, gin.H{
		"success":  true,
		"radiusKm": radius,
		"slots":    slots,
		"count":    len(slots),
	})
}

type statsResponse struct {
	Success bool `json:"success"`
	slot.Stats
	OccupancyRate float64   `json:"occupancyRate"`
	Timestamp     time.Time `json:"timestamp"`
}

func (h *ParkingHandler) Stats(c *gin.Context) {
	st := h.pool.Stats()
	writeJSON(c, http.StatusOK, statsResponse{
		Success:       true,
		Stats:         st,
		OccupancyRate: st.OccupancyRate(),
		Timestamp:     time.Now(),
	})
}
