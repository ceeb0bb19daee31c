// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"parkmatch/internal/http/handlers"
	"parkmatch/internal/http/middleware"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log), cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":         "healthy",
			"service":        "parkmatch",
			"availableSlots": deps.Pool.Stats().Available,
		}
		if deps.Pricing != nil {
			// Pricing is optional: bookings fall back to static prices.
			body["pricing"] = "unhealthy"
			if ok, err := deps.Pricing.HealthCheck(c.Request.Context()); err == nil && ok {
				body["pricing"] = "healthy"
			}
		}
		c.JSON(http.StatusOK, body)
	})

	location := handlers.NewLocationHandler(deps.Resolution)
	r.POST("/api/location/h3", location.Cell)
	r.POST("/api/location/nearby", location.Nearby)
	r.GET("/api/h3/boundary/:h3Index", location.Boundary)

	parking := handlers.NewParkingHandler(deps.Matching, deps.Pool, deps.Booking)
	api := r.Group("/api/parking")
	api.POST("/search", parking.Search)
	api.POST("/batch-search", parking.BatchSearch)
	api.POST("/mark-occupied/:slotId", parking.MarkOccupied)
	api.POST("/mark-available/:slotId", parking.MarkAvailable)
	api.GET("/stats", parking.Stats)
	api.GET("/nearby", parking.Nearby)

	bookings := handlers.NewBookingHandler(deps.Booking)
	b := r.Group("/api/booking")
	b.POST("/create", bookings.Create)
	b.GET("/:bookingId", bookings.Get)
	b.GET("/:bookingId/history", bookings.History)
	b.GET("/user/:userId", bookings.ListByUser)
	b.POST("/cancel/:bookingId", bookings.Cancel)
	b.POST("/confirm/:bookingId", bookings.Confirm)
	b.POST("/checkin/:bookingId", bookings.CheckIn)
	b.POST("/checkout/:bookingId", bookings.CheckOut)

	return r
}
