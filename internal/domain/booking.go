package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// ActiveStatuses are the statuses whose bookings hold seats on their flight.
var ActiveStatuses = []BookingStatus{BookingStatusConfirmed, BookingStatusPending}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// HoldsSeats reports whether a booking in this status counts against flight capacity.
func (s BookingStatus) HoldsSeats() bool {
	return s == BookingStatusConfirmed || s == BookingStatusPending
}

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

type Booking struct {
	ID            int64         `json:"id"`
	Reference     string        `json:"reference"`
	FlightID      int64         `json:"flight_id"`
	PassengerName string        `json:"passenger_name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Seats         int           `json:"seats"`
	TotalCents    int64         `json:"total_cents"`
	Status        BookingStatus `json:"status"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Expired reports whether a pending hold has passed its deadline.
func (b *Booking) Expired(now time.Time) bool {
	return b.Status == BookingStatusPending && b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// PassengerDetails is a partial update of a booking's contact fields; nil fields are left as is.
type PassengerDetails struct {
	PassengerName *string
	Email         *string
	Phone         *string
}

func (d PassengerDetails) Empty() bool {
	return d.PassengerName == nil && d.Email == nil && d.Phone == nil
}

func (d PassengerDetails) Apply(b *Booking) {
	if d.PassengerName != nil {
		b.PassengerName = *d.PassengerName
	}
	if d.Email != nil {
		b.Email = *d.Email
	}
	if d.Phone != nil {
		b.Phone = *d.Phone
	}
}
