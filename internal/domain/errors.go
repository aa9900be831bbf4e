package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFlightNotFound  = errors.New("flight not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrAirportNotFound = errors.New("airport not found")

	ErrValidation            = errors.New("validation failed")
	ErrInvalidSeatCount      = errors.New("seat count must be positive")
	ErrInvalidAirport        = errors.New("airport does not exist")
	ErrDuplicateFlightNumber = errors.New("flight number already exists")
	ErrDuplicateAirportCode  = errors.New("airport code already exists")

	ErrInsufficientSeats = errors.New("not enough seats available")
	ErrContention        = errors.New("seat inventory contention, retry the operation")

	ErrInvariantViolation = errors.New("seat inventory invariant violated")
	ErrOverRelease        = fmt.Errorf("%w: release exceeds total seats", ErrInvariantViolation)

	ErrFlightNotBookable       = errors.New("flight is not open for booking")
	ErrFlightHasActiveBookings = errors.New("flight has active bookings")
	ErrInvalidFlightStatus     = errors.New("invalid flight status")
	ErrBookingNotActive        = errors.New("booking is not active")
	ErrBookingNotPending       = errors.New("booking is not pending")
)

// ContentionError is returned when the CAS retry budget runs out.
type ContentionError struct {
	FlightID int64
	Attempts int
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("flight %d: %d compare-and-set attempts exhausted: %v", e.FlightID, e.Attempts, ErrContention)
}

func (e *ContentionError) Unwrap() error { return ErrContention }

// InvariantError describes stored seat counters outside 0 <= available <= total.
type InvariantError struct {
	FlightID  int64
	Available int
	Total     int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("flight %d: available=%d total=%d: %v", e.FlightID, e.Available, e.Total, ErrInvariantViolation)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// ValidationError carries a field-level message and unwraps to ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
