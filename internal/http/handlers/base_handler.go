// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parkmatch/internal/modules/booking"
	"parkmatch/internal/modules/matching"
	"parkmatch/internal/modules/slot"
	"parkmatch/internal/modules/spatial"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// statusFor maps module errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrValidation),
		errors.Is(err, matching.ErrInvalidRequest),
		errors.Is(err, slot.ErrInvalidStatus),
		errors.Is(err, spatial.ErrResolution),
		errors.Is(err, spatial.ErrInvalidCell):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, slot.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrConflict),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, slot.ErrInvalidTransition),
		errors.Is(err, slot.ErrStatusMismatch):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeDomainError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		writeError(c, status, "internal error")
		return
	}
	writeError(c, status, err.Error())
}
