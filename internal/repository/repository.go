package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	// ErrStale is returned by conditional updates whose precondition no longer holds.
	ErrStale = errors.New("record changed concurrently")
)

// CASResult is the outcome of a compare-and-set on a flight's available seats.
type CASResult int

const (
	CASApplied CASResult = iota
	CASConflict
)

func (r CASResult) String() string {
	if r == CASApplied {
		return "applied"
	}
	return "conflict"
}

// InventoryStore is the only write path for a flight's available seat count.
type InventoryStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	CompareAndSetAvailable(ctx context.Context, id int64, expected, next int) (CASResult, error)
}

type FlightRepository interface {
	InventoryStore
	Create(ctx context.Context, flight *domain.Flight) error
	List(ctx context.Context) ([]domain.Flight, error)
	GetByNumber(ctx context.Context, number string) (*domain.Flight, error)
	UpdateStatus(ctx context.Context, id int64, status domain.FlightStatus) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
}

// BookingFilter narrows List; zero fields match every booking.
type BookingFilter struct {
	FlightID int64
	Status   domain.BookingStatus
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	ListByFlight(ctx context.Context, flightID int64) ([]domain.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	// TransitionStatus moves a booking to status `to` only if its current status is one of `from`.
	// Confirming clears expires_at.
	TransitionStatus(ctx context.Context, id int64, from []domain.BookingStatus, to domain.BookingStatus) (*domain.Booking, error)
	// UpdateSeats rewrites seats and amount only if the booking is active and still holds expectedSeats.
	UpdateSeats(ctx context.Context, id int64, expectedSeats, seats int, totalCents int64) (*domain.Booking, error)
	UpdateDetails(ctx context.Context, id int64, details domain.PassengerDetails) (*domain.Booking, error)
	Delete(ctx context.Context, id int64) error
	SumActiveSeats(ctx context.Context, flightID int64) (int, error)
	ListExpiredPending(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
	ListActiveByFlightStatus(ctx context.Context, status domain.FlightStatus) ([]domain.Booking, error)
}

type AirportRepository interface {
	Create(ctx context.Context, airport *domain.Airport) error
	List(ctx context.Context) ([]domain.Airport, error)
	GetByCode(ctx context.Context, code string) (*domain.Airport, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

func statusStrings(statuses []domain.BookingStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
