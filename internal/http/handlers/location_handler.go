// README: H3 location helper handlers (cell lookup, disk, boundary).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkmatch/internal/modules/spatial"
	"parkmatch/internal/types"
)

const defaultDiskRadius = 2

type LocationHandler struct {
	resolution int
}

func NewLocationHandler(defaultResolution int) *LocationHandler {
	return &LocationHandler{resolution: defaultResolution}
}

type cellRequest struct {
	Latitude   *float64 `json:"latitude" binding:"required"`
	Longitude  *float64 `json:"longitude" binding:"required"`
	Resolution int      `json:"resolution"`
	Radius     int      `json:"radius"`
}

func (r cellRequest) point() types.Point {
	return types.Point{Lat: *r.Latitude, Lng: *r.Longitude}
}

type cellResponse struct {
	Latitude   float64     `json:"latitude"`
	Longitude  float64     `json:"longitude"`
	H3Index    string      `json:"h3Index"`
	H3IndexInt uint64      `json:"h3IndexInt"`
	Resolution int         `json:"resolution"`
	CenterLat  float64     `json:"centerLat"`
	CenterLng  float64     `json:"centerLng"`
	Boundary   [][]float64 `json:"boundary"`
}

func (h *LocationHandler) bind(c *gin.Context) (cellRequest, bool) {
	var req cellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return req, false
	}
	if !req.point().Valid() {
		writeError(c, http.StatusBadRequest, "latitude or longitude out of range")
		return req, false
	}
	if req.Resolution == 0 {
		req.Resolution = h.resolution
	}
	return req, true
}

func (h *LocationHandler) Cell(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	info, err := spatial.Describe(req.point(), req.Resolution)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cellResponse{
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		H3Index:    info.Index,
		H3IndexInt: info.IndexInt,
		Resolution: info.Resolution,
		CenterLat:  info.Center.Lat,
		CenterLng:  info.Center.Lng,
		Boundary:   pairs(info.Boundary),
	})
}

func (h *LocationHandler) Nearby(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	if req.Radius == 0 {
		req.Radius = defaultDiskRadius
	}
	if req.Radius < 0 || req.Radius > spatial.DefaultMaxRings {
		writeError(c, http.StatusBadRequest, "radius must be between 0 and 10 rings")
		return
	}
	center, cells, err := spatial.Disk(req.point(), req.Resolution, req.Radius)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"currentCell": center,
		"nearbyCells": cells,
		"totalCells":  len(cells),
	})
}

func (h *LocationHandler) Boundary(c *gin.Context) {
	raw := c.Param("h3Index")
	info, err := spatial.DescribeIndex(raw)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"h3Index":    raw,
		"resolution": info.Resolution,
		"center":     []float64{info.Center.Lat, info.Center.Lng},
		"boundary":   pairs(info.Boundary),
	})
}

func pairs(pts []types.Point) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		out[i] = []float64{p.Lat, p.Lng}
	}
	return out
}
