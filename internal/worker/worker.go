package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/service/reservation"
	kafkaGo "github.com/segmentio/kafka-go"
)

type Sweeper interface {
	ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error)
	CompleteArrivedFlights(ctx context.Context) ([]domain.Booking, error)
}

type FlightLister interface {
	List(ctx context.Context) ([]domain.Flight, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, flightID int64, repair bool) (reservation.Reconciliation, error)
}

type Notifier interface {
	Send(ctx context.Context, event kafka.BookingEvent) error
}

type Intervals struct {
	Expire    time.Duration
	Complete  time.Duration
	Reconcile time.Duration
}

// Worker runs the periodic booking sweeps and the seat reconciliation pass.
type Worker struct {
	bookings   Sweeper
	flights    FlightLister
	reconciler Reconciler
	intervals  Intervals
	repair     bool
	logger     *log.Logger
}

func New(bookings Sweeper, flights FlightLister, reconciler Reconciler, intervals Intervals, repair bool, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		bookings:   bookings,
		flights:    flights,
		reconciler: reconciler,
		intervals:  intervals,
		repair:     repair,
		logger:     logger,
	}
}

// Run blocks until ctx is canceled. A zero interval disables that sweep.
func (w *Worker) Run(ctx context.Context) {
	expire := tick(w.intervals.Expire)
	complete := tick(w.intervals.Complete)
	reconcile := tick(w.intervals.Reconcile)
	defer stop(expire, complete, reconcile)

	for {
		select {
		case <-ctx.Done():
			return
		case <-channel(expire):
			w.ExpireHolds(ctx)
		case <-channel(complete):
			w.CompleteArrived(ctx)
		case <-channel(reconcile):
			w.ReconcileAll(ctx)
		}
	}
}

func (w *Worker) ExpireHolds(ctx context.Context) int {
	expired, err := w.bookings.ExpirePendingBookings(ctx)
	if err != nil {
		w.logger.Printf("worker: expire holds: %v", err)
	}
	if len(expired) > 0 {
		w.logger.Printf("worker: expired %d holds", len(expired))
	}
	return len(expired)
}

func (w *Worker) CompleteArrived(ctx context.Context) int {
	completed, err := w.bookings.CompleteArrivedFlights(ctx)
	if err != nil {
		w.logger.Printf("worker: complete arrived flights: %v", err)
	}
	if len(completed) > 0 {
		w.logger.Printf("worker: completed %d bookings", len(completed))
	}
	return len(completed)
}

// ReconcileAll checks every flight's counter and returns the ones showing more
// seats available than their active bookings allow.
func (w *Worker) ReconcileAll(ctx context.Context) []reservation.Reconciliation {
	list, err := w.flights.List(ctx)
	if err != nil {
		w.logger.Printf("worker: list flights: %v", err)
		return nil
	}

	var drifted []reservation.Reconciliation
	for _, f := range list {
		rec, err := w.reconciler.Reconcile(ctx, f.ID, w.repair)
		if err != nil {
			w.logger.Printf("worker: reconcile flight %d: %v", f.ID, err)
			continue
		}
		switch {
		case rec.Unbacked > 0:
			w.logger.Printf("worker: flight %d has %d seats taken without an active booking", f.ID, rec.Unbacked)
		case rec.Drift > 0:
			w.logger.Printf("worker: flight %d drift %d (available %d, expected %d, repaired %t)",
				f.ID, rec.Drift, rec.Available, rec.Expected, rec.Repaired)
			drifted = append(drifted, rec)
		}
	}
	return drifted
}

// NotificationHandler decodes booking events and hands them to the notifier.
// Undecodable messages are logged and skipped so they do not block the partition.
func NotificationHandler(notifier Notifier, logger *log.Logger) func(context.Context, kafkaGo.Message) error {
	return func(ctx context.Context, msg kafkaGo.Message) error {
		event, err := kafka.DecodeBookingEvent(msg.Value)
		if err != nil {
			logger.Printf("worker: skip message at offset %d: %v", msg.Offset, err)
			return nil
		}
		if err := notifier.Send(ctx, event); err != nil {
			return fmt.Errorf("notify %s for %s: %w", event.Type, event.Reference, err)
		}
		return nil
	}
}

func tick(d time.Duration) *time.Ticker {
	if d <= 0 {
		return nil
	}
	return time.NewTicker(d)
}

func channel(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func stop(tickers ...*time.Ticker) {
	for _, t := range tickers {
		if t != nil {
			t.Stop()
		}
	}
}
