package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingUpdated   = "booking_updated"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingExpired   = "booking_expired"
	EventBookingCompleted = "booking_completed"
	EventBookingDeleted   = "booking_deleted"
)

type BookingEvent struct {
	Type          string     `json:"type"`
	BookingID     int64      `json:"booking_id"`
	Reference     string     `json:"reference"`
	FlightID      int64      `json:"flight_id"`
	PassengerName string     `json:"passenger_name"`
	Email         string     `json:"email"`
	Seats         int        `json:"seats"`
	TotalCents    int64      `json:"total_cents"`
	Status        string     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b *domain.Booking) BookingEvent {
	return BookingEvent{
		Type:          eventType,
		BookingID:     b.ID,
		Reference:     b.Reference,
		FlightID:      b.FlightID,
		PassengerName: b.PassengerName,
		Email:         b.Email,
		Seats:         b.Seats,
		TotalCents:    b.TotalCents,
		Status:        string(b.Status),
		ExpiresAt:     b.ExpiresAt,
		OccurredAt:    time.Now().UTC(),
	}
}

func DecodeBookingEvent(data []byte) (BookingEvent, error) {
	var event BookingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return BookingEvent{}, fmt.Errorf("decode booking event: %w", err)
	}
	if event.Type == "" || event.Reference == "" {
		return BookingEvent{}, fmt.Errorf("decode booking event: type and reference are required")
	}
	return event, nil
}
