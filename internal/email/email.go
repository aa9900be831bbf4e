package email

import (
	"context"
	"fmt"
	"log"

	"github.com/Domenick1991/flightbooking/internal/kafka"
)

// Sender turns booking events into passenger notifications. Delivery is a log
// line; there is no mail transport wired in.
type Sender struct {
	logger *log.Logger
}

func NewSender(logger *log.Logger) *Sender {
	if logger == nil {
		logger = log.Default()
	}
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Email == "" {
		s.logger.Printf("email: booking %s has no address, skipping %s", event.Reference, event.Type)
		return nil
	}
	s.logger.Printf("email: to=%s subject=%q", event.Email, Subject(event))
	return nil
}

func Subject(event kafka.BookingEvent) string {
	switch event.Type {
	case kafka.EventBookingCreated:
		if event.Status == "PENDING" {
			return fmt.Sprintf("Booking %s is on hold, please confirm", event.Reference)
		}
		return fmt.Sprintf("Booking %s confirmed (%d seats)", event.Reference, event.Seats)
	case kafka.EventBookingConfirmed:
		return fmt.Sprintf("Booking %s confirmed (%d seats)", event.Reference, event.Seats)
	case kafka.EventBookingUpdated:
		return fmt.Sprintf("Booking %s updated (%d seats)", event.Reference, event.Seats)
	case kafka.EventBookingCancelled:
		return fmt.Sprintf("Booking %s cancelled", event.Reference)
	case kafka.EventBookingExpired:
		return fmt.Sprintf("Booking %s expired before confirmation", event.Reference)
	case kafka.EventBookingCompleted:
		return fmt.Sprintf("Thank you for flying with us, booking %s", event.Reference)
	default:
		return fmt.Sprintf("Booking %s: %s", event.Reference, event.Type)
	}
}
