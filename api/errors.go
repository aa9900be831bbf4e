package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/gin-gonic/gin"
)

// retryAfterSeconds is sent with 503 responses caused by seat contention.
const retryAfterSeconds = 1

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrFlightNotFound),
		errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrAirportNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidSeatCount),
		errors.Is(err, domain.ErrInvalidAirport),
		errors.Is(err, domain.ErrInvalidFlightStatus):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientSeats),
		errors.Is(err, domain.ErrDuplicateFlightNumber),
		errors.Is(err, domain.ErrDuplicateAirportCode),
		errors.Is(err, domain.ErrFlightNotBookable),
		errors.Is(err, domain.ErrFlightHasActiveBookings),
		errors.Is(err, domain.ErrBookingNotActive),
		errors.Is(err, domain.ErrBookingNotPending):
		return http.StatusConflict
	case errors.Is(err, domain.ErrContention):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	switch status {
	case http.StatusServiceUnavailable:
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	case http.StatusInternalServerError:
		log.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
		resp.Error = "internal error"
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
