package flights

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/airports"
	"github.com/Domenick1991/flightbooking/internal/service/reservation"
	"github.com/Domenick1991/flightbooking/internal/validation"
)

type FlightUseCase interface {
	CreateFlight(ctx context.Context, input CreateFlightInput) (*domain.Flight, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetByNumber(ctx context.Context, number string) (*domain.Flight, error)
	UpdateStatus(ctx context.Context, id int64, status domain.FlightStatus) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
	Reconcile(ctx context.Context, id int64, repair bool) (reservation.Reconciliation, error)
}

type FlightCache interface {
	// GetFlights returns nil flights on a miss and the generation a refill must carry.
	GetFlights(ctx context.Context) ([]domain.Flight, int64, error)
	SetFlights(ctx context.Context, generation int64, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type AirportChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, flightID int64, repair bool) (reservation.Reconciliation, error)
}

type CreateFlightInput struct {
	FlightNumber  string    `json:"flight_number" validate:"required,max=16"`
	FromAirport   string    `json:"from_airport" validate:"required,len=3"`
	ToAirport     string    `json:"to_airport" validate:"required,len=3,nefield=FromAirport"`
	DepartureTime time.Time `json:"departure_time" validate:"required"`
	ArrivalTime   time.Time `json:"arrival_time" validate:"required,gtfield=DepartureTime"`
	AircraftType  string    `json:"aircraft_type" validate:"max=64"`
	TotalSeats    int       `json:"total_seats" validate:"gt=0"`
	PriceCents    int64     `json:"price_cents" validate:"gt=0"`
}

// ListFilter narrows the flight listing; zero fields match everything.
type ListFilter struct {
	From     string
	To       string
	Status   domain.FlightStatus
	MinSeats int
}

func (f ListFilter) match(flight domain.Flight) bool {
	if f.From != "" && flight.FromAirport != f.From {
		return false
	}
	if f.To != "" && flight.ToAirport != f.To {
		return false
	}
	if f.Status != "" && flight.Status != f.Status {
		return false
	}
	return flight.AvailableSeats >= f.MinSeats
}

type FlightService struct {
	repo       repository.FlightRepository
	bookings   reservation.SeatCounter
	airports   AirportChecker
	reconciler Reconciler
	cache      FlightCache
	logger     *log.Logger
}

type FlightServiceOption func(*FlightService)

func WithCache(cache FlightCache) FlightServiceOption {
	return func(s *FlightService) { s.cache = cache }
}

func WithLogger(logger *log.Logger) FlightServiceOption {
	return func(s *FlightService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewFlightService(
	repo repository.FlightRepository,
	bookings reservation.SeatCounter,
	airportChecker AirportChecker,
	reconciler Reconciler,
	opts ...FlightServiceOption,
) *FlightService {
	s := &FlightService{
		repo:       repo,
		bookings:   bookings,
		airports:   airportChecker,
		reconciler: reconciler,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FlightService) CreateFlight(ctx context.Context, input CreateFlightInput) (*domain.Flight, error) {
	input.FlightNumber = strings.ToUpper(strings.TrimSpace(input.FlightNumber))
	input.FromAirport = airports.NormalizeCode(input.FromAirport)
	input.ToAirport = airports.NormalizeCode(input.ToAirport)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	for _, code := range []string{input.FromAirport, input.ToAirport} {
		ok, err := s.airports.Exists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check airport %s: %w", code, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", code, domain.ErrInvalidAirport)
		}
	}

	flight := &domain.Flight{
		FlightNumber:   input.FlightNumber,
		FromAirport:    input.FromAirport,
		ToAirport:      input.ToAirport,
		DepartureTime:  input.DepartureTime.UTC(),
		ArrivalTime:    input.ArrivalTime.UTC(),
		AircraftType:   strings.TrimSpace(input.AircraftType),
		TotalSeats:     input.TotalSeats,
		AvailableSeats: input.TotalSeats,
		PriceCents:     input.PriceCents,
		Status:         domain.FlightStatusScheduled,
	}
	if err := s.repo.Create(ctx, flight); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("flight %s: %w", input.FlightNumber, domain.ErrDuplicateFlightNumber)
		}
		return nil, fmt.Errorf("create flight: %w", err)
	}

	s.invalidate(ctx)
	return flight, nil
}

// List serves from the cache when it holds a listing and falls back to storage otherwise.
func (s *FlightService) List(ctx context.Context, filter ListFilter) ([]domain.Flight, error) {
	all, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}

	filter.From = airports.NormalizeCode(filter.From)
	filter.To = airports.NormalizeCode(filter.To)
	out := make([]domain.Flight, 0, len(all))
	for _, f := range all {
		if filter.match(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *FlightService) listAll(ctx context.Context) ([]domain.Flight, error) {
	var (
		generation int64
		cacheable  bool
	)
	if s.cache != nil {
		cached, gen, err := s.cache.GetFlights(ctx)
		switch {
		case err != nil:
			s.logger.Printf("flights: read cache: %v", err)
		case cached != nil:
			return cached, nil
		default:
			generation, cacheable = gen, true
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	if cacheable {
		if err := s.cache.SetFlights(ctx, generation, flights); err != nil {
			s.logger.Printf("flights: write cache: %v", err)
		}
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	flight, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("flight %d", id))
	}
	return flight, nil
}

func (s *FlightService) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	flight, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, notFound(err, "flight "+number)
	}
	return flight, nil
}

func (s *FlightService) UpdateStatus(ctx context.Context, id int64, status domain.FlightStatus) (*domain.Flight, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%q: %w", status, domain.ErrInvalidFlightStatus)
	}

	flight, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("flight %d", id))
	}
	s.invalidate(ctx)
	return flight, nil
}

// Delete removes a flight that no active booking holds seats on. Cancelled and
// completed bookings of the flight go with it.
func (s *FlightService) Delete(ctx context.Context, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	held, err := s.bookings.SumActiveSeats(ctx, id)
	if err != nil {
		return fmt.Errorf("flight %d: sum active seats: %w", id, err)
	}
	if held > 0 {
		return fmt.Errorf("flight %d holds %d seats: %w", id, held, domain.ErrFlightHasActiveBookings)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, fmt.Sprintf("flight %d", id))
	}
	s.invalidate(ctx)
	return nil
}

func (s *FlightService) Reconcile(ctx context.Context, id int64, repair bool) (reservation.Reconciliation, error) {
	return s.reconciler.Reconcile(ctx, id, repair)
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.logger.Printf("flights: invalidate cache: %v", err)
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrFlightNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

var _ FlightUseCase = (*FlightService)(nil)
