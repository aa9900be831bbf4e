package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

// MemoryStore keeps flights, bookings and airports in process memory. A single
// mutex guards all three tables so compare-and-set is linearizable.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	flights  map[int64]domain.Flight
	bookings map[int64]domain.Booking
	airports map[string]domain.Airport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		flights:  make(map[int64]domain.Flight),
		bookings: make(map[int64]domain.Booking),
		airports: make(map[string]domain.Airport),
	}
}

func (m *MemoryStore) Flights() FlightRepository   { return memoryFlights{m} }
func (m *MemoryStore) Bookings() BookingRepository { return memoryBookings{m} }
func (m *MemoryStore) Airports() AirportRepository { return memoryAirports{m} }

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

type memoryFlights struct{ m *MemoryStore }

func (r memoryFlights) Create(_ context.Context, f *domain.Flight) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, existing := range r.m.flights {
		if existing.FlightNumber == f.FlightNumber {
			return ErrDuplicate
		}
	}
	now := r.m.now()
	f.ID = r.m.id()
	f.CreatedAt, f.UpdatedAt = now, now
	r.m.flights[f.ID] = *f
	return nil
}

func (r memoryFlights) List(_ context.Context) ([]domain.Flight, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	flights := make([]domain.Flight, 0, len(r.m.flights))
	for _, f := range r.m.flights {
		flights = append(flights, f)
	}
	sort.Slice(flights, func(i, j int) bool {
		if flights[i].DepartureTime.Equal(flights[j].DepartureTime) {
			return flights[i].ID < flights[j].ID
		}
		return flights[i].DepartureTime.Before(flights[j].DepartureTime)
	})
	return flights, nil
}

func (r memoryFlights) GetByID(_ context.Context, id int64) (*domain.Flight, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.flights[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (r memoryFlights) GetByNumber(_ context.Context, number string) (*domain.Flight, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, f := range r.m.flights {
		if f.FlightNumber == number {
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryFlights) UpdateStatus(_ context.Context, id int64, status domain.FlightStatus) (*domain.Flight, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.flights[id]
	if !ok {
		return nil, ErrNotFound
	}
	f.Status = status
	f.UpdatedAt = r.m.now()
	r.m.flights[id] = f
	return &f, nil
}

func (r memoryFlights) Delete(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.flights[id]; !ok {
		return ErrNotFound
	}
	for bid, b := range r.m.bookings {
		if b.FlightID == id {
			delete(r.m.bookings, bid)
		}
	}
	delete(r.m.flights, id)
	return nil
}

func (r memoryFlights) CompareAndSetAvailable(_ context.Context, id int64, expected, next int) (CASResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.flights[id]
	if !ok {
		return CASConflict, ErrNotFound
	}
	if f.AvailableSeats != expected || next < 0 || next > f.TotalSeats {
		return CASConflict, nil
	}
	f.AvailableSeats = next
	f.UpdatedAt = r.m.now()
	r.m.flights[id] = f
	return CASApplied, nil
}

type memoryBookings struct{ m *MemoryStore }

func (r memoryBookings) Create(_ context.Context, b *domain.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.flights[b.FlightID]; !ok {
		return ErrNotFound
	}
	for _, existing := range r.m.bookings {
		if existing.Reference == b.Reference {
			return ErrDuplicate
		}
	}
	now := r.m.now()
	b.ID = r.m.id()
	b.CreatedAt, b.UpdatedAt = now, now
	r.m.bookings[b.ID] = *b
	return nil
}

func (r memoryBookings) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	b, ok := r.m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r memoryBookings) GetByReference(_ context.Context, reference string) (*domain.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, b := range r.m.bookings {
		if b.Reference == reference {
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryBookings) ListByFlight(_ context.Context, flightID int64) ([]domain.Booking, error) {
	return r.filter(func(b domain.Booking) bool { return b.FlightID == flightID }), nil
}

func (r memoryBookings) List(_ context.Context, filter BookingFilter) ([]domain.Booking, error) {
	return r.filter(func(b domain.Booking) bool {
		if filter.FlightID != 0 && b.FlightID != filter.FlightID {
			return false
		}
		return filter.Status == "" || b.Status == filter.Status
	}), nil
}

func (r memoryBookings) TransitionStatus(_ context.Context, id int64, from []domain.BookingStatus, to domain.BookingStatus) (*domain.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	b, ok := r.m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !containsStatus(from, b.Status) {
		return nil, ErrStale
	}
	b.Status = to
	if to == domain.BookingStatusConfirmed {
		b.ExpiresAt = nil
	}
	b.UpdatedAt = r.m.now()
	r.m.bookings[id] = b
	return &b, nil
}

func (r memoryBookings) UpdateSeats(_ context.Context, id int64, expectedSeats, seats int, totalCents int64) (*domain.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	b, ok := r.m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Seats != expectedSeats || !b.Status.HoldsSeats() {
		return nil, ErrStale
	}
	b.Seats = seats
	b.TotalCents = totalCents
	b.UpdatedAt = r.m.now()
	r.m.bookings[id] = b
	return &b, nil
}

func (r memoryBookings) UpdateDetails(_ context.Context, id int64, details domain.PassengerDetails) (*domain.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	b, ok := r.m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	details.Apply(&b)
	b.UpdatedAt = r.m.now()
	r.m.bookings[id] = b
	return &b, nil
}

func (r memoryBookings) Delete(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.bookings[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.bookings, id)
	return nil
}

func (r memoryBookings) SumActiveSeats(_ context.Context, flightID int64) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	sum := 0
	for _, b := range r.m.bookings {
		if b.FlightID == flightID && b.Status.HoldsSeats() {
			sum += b.Seats
		}
	}
	return sum, nil
}

func (r memoryBookings) ListExpiredPending(_ context.Context, deadline time.Time) ([]domain.Booking, error) {
	return r.filter(func(b domain.Booking) bool { return b.Expired(deadline) }), nil
}

func (r memoryBookings) ListActiveByFlightStatus(_ context.Context, status domain.FlightStatus) ([]domain.Booking, error) {
	r.m.mu.Lock()
	matching := make(map[int64]bool)
	for id, f := range r.m.flights {
		if f.Status == status {
			matching[id] = true
		}
	}
	r.m.mu.Unlock()

	return r.filter(func(b domain.Booking) bool {
		return matching[b.FlightID] && b.Status.HoldsSeats()
	}), nil
}

func (r memoryBookings) filter(keep func(domain.Booking) bool) []domain.Booking {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := make([]domain.Booking, 0)
	for _, b := range r.m.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memoryAirports struct{ m *MemoryStore }

func (r memoryAirports) Create(_ context.Context, a *domain.Airport) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.airports[a.Code]; ok {
		return ErrDuplicate
	}
	a.ID = r.m.id()
	a.CreatedAt = r.m.now()
	r.m.airports[a.Code] = *a
	return nil
}

func (r memoryAirports) List(_ context.Context) ([]domain.Airport, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	airports := make([]domain.Airport, 0, len(r.m.airports))
	for _, a := range r.m.airports {
		airports = append(airports, a)
	}
	sort.Slice(airports, func(i, j int) bool { return airports[i].Code < airports[j].Code })
	return airports, nil
}

func (r memoryAirports) GetByCode(_ context.Context, code string) (*domain.Airport, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	a, ok := r.m.airports[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r memoryAirports) ExistsByCode(_ context.Context, code string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	_, ok := r.m.airports[code]
	return ok, nil
}

func containsStatus(statuses []domain.BookingStatus, s domain.BookingStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

var (
	_ FlightRepository  = memoryFlights{}
	_ BookingRepository = memoryBookings{}
	_ AirportRepository = memoryAirports{}
)
