package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/repository"
)

const (
	DefaultMaxAttempts = 8
	DefaultBackoff     = 2 * time.Millisecond
)

type Outcome string

const (
	OutcomeReserved          Outcome = "reserved"
	OutcomeReleased          Outcome = "released"
	OutcomeUnchanged         Outcome = "unchanged"
	OutcomeInsufficientSeats Outcome = "insufficient_seats"
)

// Result reports what a reservation operation did. Before and After are the
// available seat counts around the applied write (equal when nothing changed).
type Result struct {
	Outcome  Outcome `json:"outcome"`
	FlightID int64   `json:"flight_id"`
	Before   int     `json:"before"`
	After    int     `json:"after"`
	Attempts int     `json:"attempts"`
}

func (r Result) Applied() bool {
	return r.Outcome == OutcomeReserved || r.Outcome == OutcomeReleased
}

// Reconciliation compares a flight's stored counter with the seats held by its active bookings.
type Reconciliation struct {
	FlightID  int64 `json:"flight_id"`
	Total     int   `json:"total_seats"`
	Available int   `json:"available_seats"`
	Held      int   `json:"held_seats"`
	Expected  int   `json:"expected_available"`
	Drift     int   `json:"drift"`
	Unbacked  int   `json:"unbacked_seats"`
	Repaired  bool  `json:"repaired"`
}

// SeatCounter sums seats of active bookings per flight.
type SeatCounter interface {
	SumActiveSeats(ctx context.Context, flightID int64) (int, error)
}

// Invalidator is notified after every applied write so cached flight listings can be dropped.
type Invalidator interface {
	InvalidateFlights(ctx context.Context) error
}

type Reserver interface {
	Reserve(ctx context.Context, flightID int64, count int) (Result, error)
	Release(ctx context.Context, flightID int64, count int) (Result, error)
	Adjust(ctx context.Context, flightID int64, from, to int) (Result, error)
}

type Engine struct {
	store       repository.InventoryStore
	counter     SeatCounter
	invalidator Invalidator
	maxAttempts int
	backoff     time.Duration
	logger      *log.Logger
}

type Option func(*Engine)

func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithInvalidator(inv Invalidator) Option {
	return func(e *Engine) { e.invalidator = inv }
}

// WithSeatCounter enables Reconcile.
func WithSeatCounter(c SeatCounter) Option {
	return func(e *Engine) { e.counter = c }
}

func NewEngine(store repository.InventoryStore, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reserve takes count seats. A flight without enough seats yields
// OutcomeInsufficientSeats and a nil error.
func (e *Engine) Reserve(ctx context.Context, flightID int64, count int) (Result, error) {
	if count <= 0 {
		return Result{}, fmt.Errorf("reserve %d seats: %w", count, domain.ErrInvalidSeatCount)
	}
	return e.apply(ctx, "reserve", flightID, count)
}

// Release returns count seats. Returning more seats than the flight has held
// fails with domain.ErrOverRelease and leaves the counter untouched.
func (e *Engine) Release(ctx context.Context, flightID int64, count int) (Result, error) {
	if count <= 0 {
		return Result{}, fmt.Errorf("release %d seats: %w", count, domain.ErrInvalidSeatCount)
	}
	return e.apply(ctx, "release", flightID, -count)
}

// Adjust moves a hold from `from` seats to `to` seats with one compare-and-set on the difference.
func (e *Engine) Adjust(ctx context.Context, flightID int64, from, to int) (Result, error) {
	if from <= 0 || to <= 0 {
		return Result{}, fmt.Errorf("adjust %d -> %d seats: %w", from, to, domain.ErrInvalidSeatCount)
	}
	if from == to {
		f, err := e.load(ctx, flightID)
		if err != nil {
			return Result{}, err
		}
		metrics.ObserveReservation("adjust", string(OutcomeUnchanged), 1)
		return Result{
			Outcome:  OutcomeUnchanged,
			FlightID: flightID,
			Before:   f.AvailableSeats,
			After:    f.AvailableSeats,
			Attempts: 1,
		}, nil
	}
	return e.apply(ctx, "adjust", flightID, to-from)
}

// apply takes delta seats from the flight (negative delta gives seats back) in a
// read, check, compare-and-set loop bounded by maxAttempts.
func (e *Engine) apply(ctx context.Context, op string, flightID int64, delta int) (Result, error) {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		f, err := e.load(ctx, flightID)
		if err != nil {
			return Result{}, err
		}

		before := f.AvailableSeats
		next := before - delta
		if next < 0 {
			metrics.ObserveReservation(op, string(OutcomeInsufficientSeats), attempt)
			return Result{
				Outcome:  OutcomeInsufficientSeats,
				FlightID: flightID,
				Before:   before,
				After:    before,
				Attempts: attempt,
			}, nil
		}
		if next > f.TotalSeats {
			metrics.IncInvariantViolation()
			e.logger.Printf("reservation: flight %d: %s of %d seats would raise available to %d of %d", flightID, op, -delta, next, f.TotalSeats)
			return Result{}, fmt.Errorf("flight %d: %s %d seats with %d/%d available: %w",
				flightID, op, -delta, before, f.TotalSeats, domain.ErrOverRelease)
		}

		res, err := e.store.CompareAndSetAvailable(ctx, flightID, before, next)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return Result{}, fmt.Errorf("flight %d: %w", flightID, domain.ErrFlightNotFound)
			}
			return Result{}, fmt.Errorf("flight %d: compare-and-set available seats: %w", flightID, err)
		}
		if res == repository.CASApplied {
			out := OutcomeReserved
			if delta < 0 {
				out = OutcomeReleased
			}
			metrics.ObserveReservation(op, string(out), attempt)
			e.invalidate(ctx)
			return Result{
				Outcome:  out,
				FlightID: flightID,
				Before:   before,
				After:    next,
				Attempts: attempt,
			}, nil
		}

		metrics.IncCASConflict()
		if attempt < e.maxAttempts {
			if err := e.wait(ctx, attempt); err != nil {
				return Result{}, err
			}
		}
	}

	metrics.ObserveReservation(op, "contention", e.maxAttempts)
	e.logger.Printf("reservation: flight %d: %s gave up after %d attempts", flightID, op, e.maxAttempts)
	return Result{}, &domain.ContentionError{FlightID: flightID, Attempts: e.maxAttempts}
}

// Reconcile recomputes available seats from active bookings.
//
// Booking operations take seats from the counter before a booking row claims
// them and give seats back only after the row has let go, so while one is in
// flight available can sit below total - held. That shortfall is reported as
// Unbacked and never repaired here. A counter above total - held has no such
// window: it is counted as an invariant violation and, when repair is set,
// lowered to the expected value through compare-and-set.
func (e *Engine) Reconcile(ctx context.Context, flightID int64, repair bool) (Reconciliation, error) {
	if e.counter == nil {
		return Reconciliation{}, errors.New("reconcile: no seat counter configured")
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		rec, stable, err := e.snapshot(ctx, flightID)
		if err != nil {
			return Reconciliation{}, err
		}
		if !stable {
			metrics.IncCASConflict()
			if err := e.retryWait(ctx, attempt); err != nil {
				return Reconciliation{}, err
			}
			continue
		}

		switch {
		case rec.Drift == 0:
			return rec, nil
		case rec.Drift < 0:
			rec.Unbacked = -rec.Drift
			e.logger.Printf("reservation: flight %d: %d seats taken without an active booking (available=%d expected=%d)",
				flightID, rec.Unbacked, rec.Available, rec.Expected)
			return rec, nil
		}

		metrics.IncInvariantViolation()
		e.logger.Printf("reservation: flight %d: available=%d exceeds expected=%d (total=%d held=%d)",
			flightID, rec.Available, rec.Expected, rec.Total, rec.Held)
		if !repair {
			return rec, nil
		}
		if rec.Expected < 0 {
			return rec, &domain.InvariantError{FlightID: flightID, Available: rec.Expected, Total: rec.Total}
		}

		res, err := e.store.CompareAndSetAvailable(ctx, flightID, rec.Available, rec.Expected)
		if err != nil {
			return rec, fmt.Errorf("flight %d: repair available seats: %w", flightID, err)
		}
		if res == repository.CASApplied {
			rec.Repaired = true
			e.invalidate(ctx)
			return rec, nil
		}

		metrics.IncCASConflict()
		if err := e.retryWait(ctx, attempt); err != nil {
			return rec, err
		}
	}
	return Reconciliation{}, &domain.ContentionError{FlightID: flightID, Attempts: e.maxAttempts}
}

// snapshot sums held seats between two reads of the flight. stable is false when
// the counter moved while the sum was taken.
func (e *Engine) snapshot(ctx context.Context, flightID int64) (Reconciliation, bool, error) {
	before, err := e.fetch(ctx, flightID)
	if err != nil {
		return Reconciliation{}, false, err
	}
	held, err := e.counter.SumActiveSeats(ctx, flightID)
	if err != nil {
		return Reconciliation{}, false, fmt.Errorf("flight %d: sum active seats: %w", flightID, err)
	}
	after, err := e.fetch(ctx, flightID)
	if err != nil {
		return Reconciliation{}, false, err
	}
	if after.AvailableSeats != before.AvailableSeats || !after.UpdatedAt.Equal(before.UpdatedAt) {
		return Reconciliation{}, false, nil
	}

	rec := Reconciliation{
		FlightID:  flightID,
		Total:     after.TotalSeats,
		Available: after.AvailableSeats,
		Held:      held,
		Expected:  after.TotalSeats - held,
	}
	rec.Drift = rec.Available - rec.Expected
	return rec, true, nil
}

func (e *Engine) retryWait(ctx context.Context, attempt int) error {
	if attempt < e.maxAttempts {
		return e.wait(ctx, attempt)
	}
	return nil
}

// load reads the flight and rejects counters that already break 0 <= available <= total.
func (e *Engine) load(ctx context.Context, flightID int64) (*domain.Flight, error) {
	f, err := e.fetch(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if err := f.CheckSeats(); err != nil {
		metrics.IncInvariantViolation()
		e.logger.Printf("reservation: %v", err)
		return nil, err
	}
	return f, nil
}

func (e *Engine) fetch(ctx context.Context, flightID int64) (*domain.Flight, error) {
	f, err := e.store.GetByID(ctx, flightID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("flight %d: %w", flightID, domain.ErrFlightNotFound)
		}
		return nil, fmt.Errorf("flight %d: load: %w", flightID, err)
	}
	return f, nil
}

// wait sleeps for a jittered, linearly growing interval or until ctx is done.
func (e *Engine) wait(ctx context.Context, attempt int) error {
	if e.backoff <= 0 {
		return ctx.Err()
	}
	d := e.backoff * time.Duration(attempt)
	d = d/2 + time.Duration(rand.Int64N(int64(d/2)+1))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) invalidate(ctx context.Context) {
	if e.invalidator == nil {
		return
	}
	if err := e.invalidator.InvalidateFlights(ctx); err != nil {
		e.logger.Printf("reservation: invalidate flights cache: %v", err)
	}
}

var _ Reserver = (*Engine)(nil)
