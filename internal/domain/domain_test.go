package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlightStatus(t *testing.T) {
	assert.True(t, FlightStatusScheduled.Valid())
	assert.True(t, FlightStatusArrived.Valid())
	assert.False(t, FlightStatus("LANDED").Valid())

	assert.True(t, FlightStatusScheduled.Bookable())
	for _, s := range []FlightStatus{FlightStatusDelayed, FlightStatusCancelled, FlightStatusBoarding, FlightStatusDeparted, FlightStatusArrived} {
		assert.False(t, s.Bookable(), s)
	}
}

func TestFlight_CheckSeats(t *testing.T) {
	f := &Flight{ID: 1, TotalSeats: 10, AvailableSeats: 7}
	assert.NoError(t, f.CheckSeats())
	assert.Equal(t, 3, f.HeldSeats())

	f.AvailableSeats = 11
	err := f.CheckSeats()
	assert.ErrorIs(t, err, ErrInvariantViolation)
	var inv *InvariantError
	assert.True(t, errors.As(err, &inv))
	assert.Equal(t, 11, inv.Available)

	f.AvailableSeats = -1
	assert.ErrorIs(t, f.CheckSeats(), ErrInvariantViolation)
}

func TestBookingStatus(t *testing.T) {
	assert.True(t, BookingStatusPending.HoldsSeats())
	assert.True(t, BookingStatusConfirmed.HoldsSeats())
	assert.False(t, BookingStatusCancelled.HoldsSeats())
	assert.False(t, BookingStatusCompleted.HoldsSeats())

	assert.True(t, BookingStatusCompleted.Terminal())
	assert.False(t, BookingStatusPending.Terminal())
	assert.False(t, BookingStatus("LOST").Valid())
}

func TestBooking_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	deadline := now.Add(time.Minute)
	b := &Booking{Status: BookingStatusPending, ExpiresAt: &deadline}

	assert.False(t, b.Expired(now))
	assert.True(t, b.Expired(deadline))

	b.Status = BookingStatusConfirmed
	assert.False(t, b.Expired(deadline.Add(time.Hour)))

	b.Status, b.ExpiresAt = BookingStatusPending, nil
	assert.False(t, b.Expired(deadline))
}

func TestPassengerDetails(t *testing.T) {
	assert.True(t, PassengerDetails{}.Empty())

	email := "new@example.com"
	b := &Booking{PassengerName: "Anna", Email: "old@example.com"}
	PassengerDetails{Email: &email}.Apply(b)
	assert.Equal(t, "Anna", b.PassengerName)
	assert.Equal(t, email, b.Email)
}

func TestErrors(t *testing.T) {
	assert.ErrorIs(t, ErrOverRelease, ErrInvariantViolation)

	err := &ContentionError{FlightID: 3, Attempts: 8}
	assert.ErrorIs(t, err, ErrContention)
	assert.Contains(t, err.Error(), "8 compare-and-set attempts")

	verr := &ValidationError{Field: "email", Message: "is required"}
	assert.ErrorIs(t, verr, ErrValidation)
	assert.Equal(t, "email: is required", verr.Error())
	assert.Equal(t, "bad input", (&ValidationError{Message: "bad input"}).Error())
}
