package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/reservation"
	"github.com/Domenick1991/flightbooking/internal/validation"
	"github.com/google/uuid"
)

const (
	maxReferenceAttempts = 5
	maxTransitionRetries = 3
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	ListByFlight(ctx context.Context, flightID int64) ([]domain.Booking, error)
	ListBookings(ctx context.Context, filter ListFilter) ([]domain.Booking, error)
	UpdateBookingSeats(ctx context.Context, id int64, seats int) (*domain.Booking, error)
	UpdateBookingDetails(ctx context.Context, id int64, input UpdateDetailsInput) (*domain.Booking, error)
	ConfirmBooking(ctx context.Context, id int64) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id int64) (*domain.Booking, error)
	CompleteBooking(ctx context.Context, id int64) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
	ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error)
	CompleteArrivedFlights(ctx context.Context) ([]domain.Booking, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type FlightReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
}

type CreateBookingInput struct {
	FlightID      int64  `json:"flight_id" validate:"gt=0"`
	PassengerName string `json:"passenger_name" validate:"required,max=128"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"required,max=32"`
	Seats         int    `json:"seats"`
	// Hold creates a PENDING booking that must be confirmed before it expires.
	Hold bool `json:"hold"`
}

type UpdateDetailsInput struct {
	PassengerName *string `json:"passenger_name" validate:"omitempty,min=1,max=128"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone" validate:"omitempty,min=1,max=32"`
}

type BookingService struct {
	bookings           repository.BookingRepository
	flights            FlightReader
	seats              reservation.Reserver
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	holdTTL            time.Duration
	newReference       func() string
	now                func() time.Time
	logger             *log.Logger
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithLogger(logger *log.Logger) BookingServiceOption {
	return func(s *BookingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithReferenceGenerator(gen func() string) BookingServiceOption {
	return func(s *BookingService) {
		if gen != nil {
			s.newReference = gen
		}
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewBookingService wires the lifecycle manager. producer may be nil, in which
// case no events are published.
func NewBookingService(
	bookings repository.BookingRepository,
	flights FlightReader,
	seats reservation.Reserver,
	producer Producer,
	bookingTopic string,
	holdTTL time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		flights:      flights,
		seats:        seats,
		producer:     producer,
		bookingTopic: bookingTopic,
		holdTTL:      holdTTL,
		newReference: NewReference,
		now:          time.Now,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// NewReference returns "BK" followed by eight upper-case hex digits of a random UUID.
func NewReference() string {
	return "BK" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.Seats <= 0 {
		return nil, fmt.Errorf("seats=%d: %w", input.Seats, domain.ErrInvalidSeatCount)
	}
	input.PassengerName = strings.TrimSpace(input.PassengerName)
	input.Email = strings.TrimSpace(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	flight, err := s.flight(ctx, input.FlightID)
	if err != nil {
		return nil, err
	}
	if !flight.Status.Bookable() {
		return nil, fmt.Errorf("flight %d is %s: %w", flight.ID, flight.Status, domain.ErrFlightNotBookable)
	}

	res, err := s.seats.Reserve(ctx, flight.ID, input.Seats)
	if err != nil {
		return nil, err
	}
	if res.Outcome == reservation.OutcomeInsufficientSeats {
		return nil, fmt.Errorf("flight %d: %d seats requested, %d available: %w",
			flight.ID, input.Seats, res.Before, domain.ErrInsufficientSeats)
	}

	booking := &domain.Booking{
		FlightID:      flight.ID,
		PassengerName: input.PassengerName,
		Email:         input.Email,
		Phone:         input.Phone,
		Seats:         input.Seats,
		TotalCents:    flight.PriceCents * int64(input.Seats),
		Status:        domain.BookingStatusConfirmed,
	}
	if input.Hold {
		expires := s.now().Add(s.holdTTL).UTC()
		booking.Status = domain.BookingStatusPending
		booking.ExpiresAt = &expires
	}

	if err := s.persist(ctx, booking); err != nil {
		if _, rerr := s.seats.Release(context.WithoutCancel(ctx), flight.ID, input.Seats); rerr != nil {
			s.logger.Printf("booking: compensating release of %d seats on flight %d failed: %v", input.Seats, flight.ID, rerr)
			return nil, errors.Join(err, fmt.Errorf("compensating release: %w", rerr))
		}
		return nil, err
	}

	metrics.IncBookingTransition("create")
	s.publish(ctx, kafka.EventBookingCreated, booking)
	return booking, nil
}

// persist stores a new booking, drawing a fresh reference whenever the last one collided.
func (s *BookingService) persist(ctx context.Context, booking *domain.Booking) error {
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		booking.Reference = s.newReference()
		err := s.bookings.Create(ctx, booking)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrDuplicate):
			continue
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("flight %d: %w", booking.FlightID, domain.ErrFlightNotFound)
		default:
			return fmt.Errorf("create booking: %w", err)
		}
	}
	return fmt.Errorf("create booking: no unique reference after %d attempts", maxReferenceAttempts)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, bookingNotFound(err, fmt.Sprintf("booking %d", id))
	}
	return b, nil
}

func (s *BookingService) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	b, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, bookingNotFound(err, "booking "+reference)
	}
	return b, nil
}

func (s *BookingService) ListByFlight(ctx context.Context, flightID int64) ([]domain.Booking, error) {
	if _, err := s.flight(ctx, flightID); err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListByFlight(ctx, flightID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of flight %d: %w", flightID, err)
	}
	return bookings, nil
}

// ListFilter narrows ListBookings; zero fields match every booking.
type ListFilter struct {
	FlightID int64
	Status   domain.BookingStatus
}

func (s *BookingService) ListBookings(ctx context.Context, filter ListFilter) ([]domain.Booking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown booking status %q", filter.Status)}
	}
	if filter.FlightID < 0 {
		return nil, &domain.ValidationError{Field: "flight_id", Message: "must be positive"}
	}

	bookings, err := s.bookings.List(ctx, repository.BookingFilter{FlightID: filter.FlightID, Status: filter.Status})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// UpdateBookingSeats changes the seat count of an active booking. On any failure
// the booking and the flight's counter are left as they were.
func (s *BookingService) UpdateBookingSeats(ctx context.Context, id int64, seats int) (*domain.Booking, error) {
	if seats <= 0 {
		return nil, fmt.Errorf("seats=%d: %w", seats, domain.ErrInvalidSeatCount)
	}

	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.HoldsSeats() {
		return nil, fmt.Errorf("booking %d is %s: %w", id, current.Status, domain.ErrBookingNotActive)
	}
	if current.Seats == seats {
		return current, nil
	}

	flight, err := s.flight(ctx, current.FlightID)
	if err != nil {
		return nil, err
	}
	if seats > current.Seats && !flight.Status.Bookable() {
		return nil, fmt.Errorf("flight %d is %s: %w", flight.ID, flight.Status, domain.ErrFlightNotBookable)
	}

	var updated *domain.Booking
	if seats > current.Seats {
		updated, err = s.growSeats(ctx, current, flight, seats)
	} else {
		updated, err = s.shrinkSeats(ctx, current, flight, seats)
	}
	if err != nil {
		return nil, err
	}

	metrics.IncBookingTransition("update_seats")
	s.publish(ctx, kafka.EventBookingUpdated, updated)
	return updated, nil
}

// growSeats takes the extra seats from the counter before the booking row claims them.
func (s *BookingService) growSeats(ctx context.Context, current *domain.Booking, flight *domain.Flight, seats int) (*domain.Booking, error) {
	res, err := s.seats.Adjust(ctx, flight.ID, current.Seats, seats)
	if err != nil {
		return nil, err
	}
	if res.Outcome == reservation.OutcomeInsufficientSeats {
		return nil, fmt.Errorf("flight %d: %d more seats requested, %d available: %w",
			flight.ID, seats-current.Seats, res.Before, domain.ErrInsufficientSeats)
	}

	updated, err := s.bookings.UpdateSeats(ctx, current.ID, current.Seats, seats, flight.PriceCents*int64(seats))
	if err != nil {
		err = seatUpdateError(current.ID, err)
		if _, rerr := s.seats.Adjust(context.WithoutCancel(ctx), flight.ID, seats, current.Seats); rerr != nil {
			s.logger.Printf("booking: reverting seat adjustment %d -> %d on flight %d failed: %v", seats, current.Seats, flight.ID, rerr)
			return nil, errors.Join(err, fmt.Errorf("revert seat adjustment: %w", rerr))
		}
		return nil, err
	}
	return updated, nil
}

// shrinkSeats lets the booking row give up seats before they go back to the counter.
func (s *BookingService) shrinkSeats(ctx context.Context, current *domain.Booking, flight *domain.Flight, seats int) (*domain.Booking, error) {
	updated, err := s.bookings.UpdateSeats(ctx, current.ID, current.Seats, seats, flight.PriceCents*int64(seats))
	if err != nil {
		return nil, seatUpdateError(current.ID, err)
	}

	bg := context.WithoutCancel(ctx)
	if _, err := s.seats.Adjust(bg, flight.ID, current.Seats, seats); err != nil {
		err = fmt.Errorf("booking %d: release %d seats: %w", current.ID, current.Seats-seats, err)
		if _, rerr := s.bookings.UpdateSeats(bg, current.ID, seats, current.Seats, current.TotalCents); rerr != nil {
			s.logger.Printf("booking: restoring %d seats on booking %d failed: %v", current.Seats, current.ID, rerr)
			return nil, errors.Join(err, fmt.Errorf("restore %d seats: %w", current.Seats, rerr))
		}
		return nil, err
	}
	return updated, nil
}

func seatUpdateError(id int64, err error) error {
	switch {
	case errors.Is(err, repository.ErrStale):
		return fmt.Errorf("booking %d changed concurrently: %w", id, domain.ErrContention)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("booking %d: %w", id, domain.ErrBookingNotFound)
	default:
		return fmt.Errorf("update booking %d seats: %w", id, err)
	}
}

func (s *BookingService) UpdateBookingDetails(ctx context.Context, id int64, input UpdateDetailsInput) (*domain.Booking, error) {
	details := domain.PassengerDetails{
		PassengerName: trimmed(input.PassengerName),
		Email:         trimmed(input.Email),
		Phone:         trimmed(input.Phone),
	}
	if details.Empty() {
		return nil, &domain.ValidationError{Message: "at least one of passenger_name, email, phone is required"}
	}
	input = UpdateDetailsInput{PassengerName: details.PassengerName, Email: details.Email, Phone: details.Phone}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("booking %d is %s: %w", id, current.Status, domain.ErrBookingNotActive)
	}

	updated, err := s.bookings.UpdateDetails(ctx, id, details)
	if err != nil {
		return nil, bookingNotFound(err, fmt.Sprintf("booking %d", id))
	}
	metrics.IncBookingTransition("update_details")
	s.publish(ctx, kafka.EventBookingUpdated, updated)
	return updated, nil
}

// ConfirmBooking turns an unexpired hold into a confirmed booking. Seats were
// already taken when the hold was created.
func (s *BookingService) ConfirmBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.BookingStatusPending {
		return nil, fmt.Errorf("booking %d is %s: %w", id, current.Status, domain.ErrBookingNotPending)
	}
	if current.Expired(s.now()) {
		return nil, fmt.Errorf("booking %d hold expired: %w", id, domain.ErrBookingNotPending)
	}

	updated, err := s.bookings.TransitionStatus(ctx, id,
		[]domain.BookingStatus{domain.BookingStatusPending}, domain.BookingStatusConfirmed)
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, fmt.Errorf("booking %d: %w", id, domain.ErrBookingNotPending)
		}
		return nil, bookingNotFound(err, fmt.Sprintf("booking %d", id))
	}

	metrics.IncBookingTransition("confirm")
	s.publish(ctx, kafka.EventBookingConfirmed, updated)
	return updated, nil
}

// CancelBooking releases the booking's seats exactly once; cancelling a cancelled booking is a no-op.
func (s *BookingService) CancelBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, changed, err := s.releaseTo(ctx, current, domain.ActiveStatuses, domain.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.IncBookingTransition("cancel")
		s.publish(ctx, kafka.EventBookingCancelled, updated)
	}
	return updated, nil
}

// CompleteBooking marks an active booking as flown and returns its seats to the flight.
func (s *BookingService) CompleteBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, changed, err := s.releaseTo(ctx, current, domain.ActiveStatuses, domain.BookingStatusCompleted)
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.IncBookingTransition("complete")
		s.publish(ctx, kafka.EventBookingCompleted, updated)
	}
	return updated, nil
}

// DeleteBooking removes a booking, releasing its seats first when it still holds any.
func (s *BookingService) DeleteBooking(ctx context.Context, id int64) error {
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if current.Status.HoldsSeats() {
		cancelled, changed, err := s.releaseTo(ctx, current, domain.ActiveStatuses, domain.BookingStatusCancelled)
		if err != nil {
			return err
		}
		if changed {
			s.publish(ctx, kafka.EventBookingCancelled, cancelled)
		}
		current = cancelled
	}

	if err := s.bookings.Delete(ctx, id); err != nil {
		return bookingNotFound(err, fmt.Sprintf("booking %d", id))
	}
	metrics.IncBookingTransition("delete")
	s.publish(ctx, kafka.EventBookingDeleted, current)
	return nil
}

// ExpirePendingBookings cancels holds whose deadline has passed. Holds that
// fail to expire are reported in the joined error and retried on the next sweep.
func (s *BookingService) ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error) {
	candidates, err := s.bookings.ListExpiredPending(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}

	pendingOnly := []domain.BookingStatus{domain.BookingStatusPending}
	var (
		expired []domain.Booking
		errs    []error
	)
	for i := range candidates {
		updated, changed, err := s.releaseTo(ctx, &candidates[i], pendingOnly, domain.BookingStatusCancelled)
		if err != nil {
			if errors.Is(err, domain.ErrBookingNotActive) {
				continue
			}
			s.logger.Printf("booking: expire %s: %v", candidates[i].Reference, err)
			errs = append(errs, err)
			continue
		}
		if changed {
			metrics.IncBookingTransition("expire")
			s.publish(ctx, kafka.EventBookingExpired, updated)
			expired = append(expired, *updated)
		}
	}
	return expired, errors.Join(errs...)
}

// CompleteArrivedFlights completes every active booking on an ARRIVED flight.
func (s *BookingService) CompleteArrivedFlights(ctx context.Context) ([]domain.Booking, error) {
	candidates, err := s.bookings.ListActiveByFlightStatus(ctx, domain.FlightStatusArrived)
	if err != nil {
		return nil, fmt.Errorf("list bookings of arrived flights: %w", err)
	}

	var (
		completed []domain.Booking
		errs      []error
	)
	for i := range candidates {
		updated, changed, err := s.releaseTo(ctx, &candidates[i], domain.ActiveStatuses, domain.BookingStatusCompleted)
		if err != nil {
			if errors.Is(err, domain.ErrBookingNotActive) {
				continue
			}
			s.logger.Printf("booking: complete %s: %v", candidates[i].Reference, err)
			errs = append(errs, err)
			continue
		}
		if changed {
			metrics.IncBookingTransition("complete")
			s.publish(ctx, kafka.EventBookingCompleted, updated)
			completed = append(completed, *updated)
		}
	}
	return completed, errors.Join(errs...)
}

// releaseTo moves b from one of the allowed statuses to a terminal status and
// gives its seats back. The status write is conditional on the status last read,
// so of several concurrent callers only one wins and releases. changed is false
// when b already had status to.
func (s *BookingService) releaseTo(ctx context.Context, b *domain.Booking, allowed []domain.BookingStatus, to domain.BookingStatus) (*domain.Booking, bool, error) {
	for attempt := 0; attempt <= maxTransitionRetries; attempt++ {
		if b.Status == to {
			return b, false, nil
		}
		if !containsStatus(allowed, b.Status) {
			return nil, false, fmt.Errorf("booking %d is %s: %w", b.ID, b.Status, domain.ErrBookingNotActive)
		}

		from := b.Status
		updated, err := s.bookings.TransitionStatus(ctx, b.ID, []domain.BookingStatus{from}, to)
		if errors.Is(err, repository.ErrStale) {
			if b, err = s.GetBooking(ctx, b.ID); err != nil {
				return nil, false, err
			}
			continue
		}
		if err != nil {
			return nil, false, bookingNotFound(err, fmt.Sprintf("booking %d", b.ID))
		}

		bg := context.WithoutCancel(ctx)
		if _, err := s.seats.Release(bg, updated.FlightID, updated.Seats); err != nil {
			err = fmt.Errorf("booking %d: release %d seats: %w", updated.ID, updated.Seats, err)
			if _, rerr := s.bookings.TransitionStatus(bg, updated.ID, []domain.BookingStatus{to}, from); rerr != nil {
				s.logger.Printf("booking: restoring %s on booking %d failed: %v", from, updated.ID, rerr)
				return nil, false, errors.Join(err, fmt.Errorf("restore status %s: %w", from, rerr))
			}
			return nil, false, err
		}
		return updated, true, nil
	}
	return nil, false, fmt.Errorf("booking %d changed concurrently: %w", b.ID, domain.ErrContention)
}

func (s *BookingService) flight(ctx context.Context, id int64) (*domain.Flight, error) {
	flight, err := s.flights.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("flight %d: %w", id, domain.ErrFlightNotFound)
		}
		return nil, fmt.Errorf("load flight %d: %w", id, err)
	}
	return flight, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, b *domain.Booking) {
	if s.producer == nil {
		return
	}
	event := kafka.NewBookingEvent(eventType, b)
	if err := s.producer.Publish(ctx, s.bookingTopic, b.Reference, event); err != nil {
		s.logger.Printf("booking: publish %s for %s: %v", eventType, b.Reference, err)
	}
	if s.notificationsTopic == "" || eventType == kafka.EventBookingDeleted {
		return
	}
	if err := s.producer.Publish(ctx, s.notificationsTopic, b.Reference, event); err != nil {
		s.logger.Printf("booking: publish %s notification for %s: %v", eventType, b.Reference, err)
	}
}

func bookingNotFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrBookingNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func containsStatus(statuses []domain.BookingStatus, s domain.BookingStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

var _ BookingUseCase = (*BookingService)(nil)
