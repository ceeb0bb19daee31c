// README: Booking handlers for create, lookup and lifecycle transitions.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"parkmatch/internal/modules/booking"
	"parkmatch/internal/types"
)

type BookingHandler struct {
	booking *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{booking: svc}
}

func (h *BookingHandler) Create(c *gin.Context) {
	var cmd booking.CreateCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	r, err := h.booking.Create(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *BookingHandler) Get(c *gin.Context) {
	r, err := h.booking.Get(types.ID(c.Param("bookingId")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *BookingHandler) History(c *gin.Context) {
	id := c.Param("bookingId")
	events, err := h.booking.History(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"bookingId": id,
		"events":    events,
		"count":     len(events),
	})
}

func (h *BookingHandler) ListByUser(c *gin.Context) {
	userID := c.Param("userId")
	list := h.booking.ListByUser(types.ID(userID))
	writeJSON(c, http.StatusOK, gin.H{
		"userId":   userID,
		"bookings": list,
		"count":    len(list),
	})
}

func (h *BookingHandler) Cancel(c *gin.Context)   { h.transition(c, h.booking.Cancel) }
func (h *BookingHandler) Confirm(c *gin.Context)  { h.transition(c, h.booking.Confirm) }
func (h *BookingHandler) CheckIn(c *gin.Context)  { h.transition(c, h.booking.CheckIn) }
func (h *BookingHandler) CheckOut(c *gin.Context) { h.transition(c, h.booking.CheckOut) }

func (h *BookingHandler) transition(c *gin.Context, step func(context.Context, types.ID) (booking.Reservation, error)) {
	r, err := step(c.Request.Context(), types.ID(c.Param("bookingId")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}
