package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/gin-gonic/gin"
)

// FlightBookings lists the bookings of one flight.
type FlightBookings interface {
	ListByFlight(ctx context.Context, flightID int64) ([]domain.Booking, error)
}

type FlightHandler struct {
	service  flights.FlightUseCase
	bookings FlightBookings
}

type updateFlightStatusRequest struct {
	Status domain.FlightStatus `json:"status"`
}

func NewFlightHandler(service flights.FlightUseCase, bookings FlightBookings) *FlightHandler {
	return &FlightHandler{service: service, bookings: bookings}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.GET("/number/:number", h.getByNumber)
	router.GET("/:id", h.get)
	router.PATCH("/:id/status", h.updateStatus)
	router.DELETE("/:id", h.delete)
	router.GET("/:id/bookings", h.listBookings)
	router.POST("/:id/reconcile", h.reconcile)
}

func (h *FlightHandler) create(c *gin.Context) {
	var req flights.CreateFlightInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	flight, err := h.service.CreateFlight(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flight)
}

func (h *FlightHandler) list(c *gin.Context) {
	filter := flights.ListFilter{
		From:   c.Query("from"),
		To:     c.Query("to"),
		Status: domain.FlightStatus(strings.ToUpper(c.Query("status"))),
	}
	if raw := c.Query("min_seats"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid min_seats")
			return
		}
		filter.MinSeats = n
	}
	if filter.Status != "" && !filter.Status.Valid() {
		badRequest(c, "invalid status")
		return
	}

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) getByNumber(c *gin.Context) {
	flight, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) updateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateFlightStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	status := domain.FlightStatus(strings.ToUpper(string(req.Status)))
	flight, err := h.service.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FlightHandler) listBookings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.bookings.ListByFlight(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// reconcile reports seat drift; ?repair=true writes the recomputed counter back.
func (h *FlightHandler) reconcile(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	repair, err := strconv.ParseBool(c.DefaultQuery("repair", "false"))
	if err != nil {
		badRequest(c, "invalid repair")
		return
	}

	rec, err := h.service.Reconcile(c.Request.Context(), id, repair)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
