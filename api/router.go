package api

import (
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/service/airports"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Airports airports.AirportUseCase
	Flights  flights.FlightUseCase
	Bookings booking.BookingUseCase
}

// NewRouter builds the REST API served under /api/v1. An empty origins list allows any origin.
func NewRouter(services Services, origins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.GinMiddleware())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.ExposeHeaders = []string{"Retry-After"}
	if len(origins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	router.Use(cors.New(corsCfg))

	v1 := router.Group("/api/v1")
	{
		NewAirportHandler(services.Airports).Register(v1.Group("/airports"))
		NewFlightHandler(services.Flights, services.Bookings).Register(v1.Group("/flights"))
		NewBookingHandler(services.Bookings).Register(v1.Group("/bookings"))
	}

	return router
}
