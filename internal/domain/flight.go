package domain

import "time"

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "SCHEDULED"
	FlightStatusDelayed   FlightStatus = "DELAYED"
	FlightStatusCancelled FlightStatus = "CANCELLED"
	FlightStatusBoarding  FlightStatus = "BOARDING"
	FlightStatusDeparted  FlightStatus = "DEPARTED"
	FlightStatusArrived   FlightStatus = "ARRIVED"
)

func (s FlightStatus) Valid() bool {
	switch s {
	case FlightStatusScheduled, FlightStatusDelayed, FlightStatusCancelled,
		FlightStatusBoarding, FlightStatusDeparted, FlightStatusArrived:
		return true
	}
	return false
}

// Bookable reports whether new bookings may be taken for a flight in this status.
func (s FlightStatus) Bookable() bool {
	return s == FlightStatusScheduled
}

type Flight struct {
	ID             int64        `json:"id"`
	FlightNumber   string       `json:"flight_number"`
	FromAirport    string       `json:"from_airport"`
	ToAirport      string       `json:"to_airport"`
	DepartureTime  time.Time    `json:"departure_time"`
	ArrivalTime    time.Time    `json:"arrival_time"`
	AircraftType   string       `json:"aircraft_type"`
	TotalSeats     int          `json:"total_seats"`
	AvailableSeats int          `json:"available_seats"`
	PriceCents     int64        `json:"price_cents"`
	Status         FlightStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// HeldSeats is the number of seats currently held by active bookings.
func (f *Flight) HeldSeats() int {
	return f.TotalSeats - f.AvailableSeats
}

// CheckSeats validates the stored seat counters against 0 <= available <= total.
func (f *Flight) CheckSeats() error {
	if f.AvailableSeats < 0 || f.AvailableSeats > f.TotalSeats {
		return &InvariantError{FlightID: f.ID, Available: f.AvailableSeats, Total: f.TotalSeats}
	}
	return nil
}
