package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/service/reservation"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockSweeper) CompleteArrivedFlights(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockFlightLister struct {
	mock.Mock
}

func (m *MockFlightLister) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, flightID int64, repair bool) (reservation.Reconciliation, error) {
	args := m.Called(ctx, flightID, repair)
	return args.Get(0).(reservation.Reconciliation), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, event kafka.BookingEvent) error {
	return m.Called(ctx, event).Error(0)
}

var quiet = log.New(io.Discard, "", 0)

func TestWorker_ExpireHoldsAndCompleteArrived(t *testing.T) {
	ctx := context.Background()
	sweeper := &MockSweeper{}
	w := New(sweeper, &MockFlightLister{}, &MockReconciler{}, Intervals{}, false, quiet)

	sweeper.On("ExpirePendingBookings", ctx).Return([]domain.Booking{{ID: 1}, {ID: 2}}, errors.New("booking 3: timeout")).Once()
	sweeper.On("CompleteArrivedFlights", ctx).Return([]domain.Booking{}, nil).Once()

	assert.Equal(t, 2, w.ExpireHolds(ctx))
	assert.Zero(t, w.CompleteArrived(ctx))
	sweeper.AssertExpectations(t)
}

func TestWorker_ReconcileAll(t *testing.T) {
	ctx := context.Background()
	flights := &MockFlightLister{}
	reconciler := &MockReconciler{}
	w := New(&MockSweeper{}, flights, reconciler, Intervals{}, true, quiet)

	flights.On("List", ctx).Return([]domain.Flight{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}, nil).Once()
	reconciler.On("Reconcile", ctx, int64(1), true).Return(reservation.Reconciliation{FlightID: 1}, nil).Once()
	reconciler.On("Reconcile", ctx, int64(2), true).
		Return(reservation.Reconciliation{FlightID: 2, Available: 5, Expected: 3, Drift: 2, Repaired: true}, nil).Once()
	reconciler.On("Reconcile", ctx, int64(3), true).Return(reservation.Reconciliation{}, domain.ErrFlightNotFound).Once()
	reconciler.On("Reconcile", ctx, int64(4), true).
		Return(reservation.Reconciliation{FlightID: 4, Available: 1, Expected: 3, Drift: -2, Unbacked: 2}, nil).Once()

	drifted := w.ReconcileAll(ctx)

	require.Len(t, drifted, 1)
	assert.Equal(t, int64(2), drifted[0].FlightID)
	assert.True(t, drifted[0].Repaired)
	flights.AssertExpectations(t)
	reconciler.AssertExpectations(t)
}

func TestWorker_ReconcileAll_ListError(t *testing.T) {
	ctx := context.Background()
	flights := &MockFlightLister{}
	w := New(&MockSweeper{}, flights, &MockReconciler{}, Intervals{}, false, quiet)

	flights.On("List", ctx).Return([]domain.Flight(nil), errors.New("db down")).Once()

	assert.Nil(t, w.ReconcileAll(ctx))
	flights.AssertExpectations(t)
}

func TestWorker_RunSweepsUntilCancelled(t *testing.T) {
	sweeper := &MockSweeper{}
	w := New(sweeper, &MockFlightLister{}, &MockReconciler{}, Intervals{Expire: 5 * time.Millisecond}, false, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan struct{}, 1)
	sweeper.On("ExpirePendingBookings", mock.Anything).Return([]domain.Booking{}, nil).Run(func(mock.Arguments) {
		select {
		case swept <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("expire sweep did not run")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	sweeper.AssertNotCalled(t, "CompleteArrivedFlights", mock.Anything)
}

func TestNotificationHandler(t *testing.T) {
	ctx := context.Background()
	notifier := &MockNotifier{}
	handler := NotificationHandler(notifier, quiet)

	event := kafka.BookingEvent{Type: kafka.EventBookingConfirmed, Reference: "BK1A2B3C4D", Email: "anna@example.com", Seats: 2}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	notifier.On("Send", ctx, mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Reference == "BK1A2B3C4D" && e.Seats == 2
	})).Return(nil).Once()

	require.NoError(t, handler(ctx, kafkaGo.Message{Value: payload}))
	require.NoError(t, handler(ctx, kafkaGo.Message{Value: []byte("not json"), Offset: 12}))
	notifier.AssertExpectations(t)
}

func TestNotificationHandler_SendError(t *testing.T) {
	ctx := context.Background()
	notifier := &MockNotifier{}
	handler := NotificationHandler(notifier, quiet)

	payload, err := json.Marshal(kafka.BookingEvent{Type: kafka.EventBookingCancelled, Reference: "BK00000001"})
	require.NoError(t, err)
	notifier.On("Send", ctx, mock.Anything).Return(context.Canceled).Once()

	err = handler(ctx, kafkaGo.Message{Value: payload})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "BK00000001")
}
