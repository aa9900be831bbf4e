package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReader struct {
	mock.Mock
}

func (m *MockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	args := m.Called(ctx)
	return args.Get(0).(kafka.Message), args.Error(1)
}

func (m *MockReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockReader) Close() error {
	return m.Called().Error(0)
}

func TestNewBookingEvent(t *testing.T) {
	expires := time.Now().Add(time.Minute)
	b := &domain.Booking{
		ID: 3, Reference: "BK0A1B2C3D", FlightID: 9, PassengerName: "Anna",
		Email: "anna@example.com", Seats: 2, TotalCents: 20000,
		Status: domain.BookingStatusPending, ExpiresAt: &expires,
	}

	event := NewBookingEvent(EventBookingCreated, b)
	assert.Equal(t, EventBookingCreated, event.Type)
	assert.Equal(t, "PENDING", event.Status)
	assert.Equal(t, 2, event.Seats)
	assert.False(t, event.OccurredAt.IsZero())

	data, err := json.Marshal(event)
	require.NoError(t, err)
	decoded, err := DecodeBookingEvent(data)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, decoded.Reference)
}

func TestDecodeBookingEvent_Invalid(t *testing.T) {
	_, err := DecodeBookingEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeBookingEvent([]byte(`{"type":"booking_created"}`))
	assert.Error(t, err)
}

func TestConsumer_CommitsHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Topic: "booking-notifications", Offset: 1, Value: []byte(`{}`)}
	reader := new(MockReader)
	reader.On("FetchMessage", mock.Anything).Return(msg, nil).Once()
	reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, context.Canceled).Once()
	reader.On("CommitMessages", mock.Anything, []kafka.Message{msg}).Return(nil).Once()

	consumer := NewConsumerWithReader(reader, log.New(io.Discard, "", 0))

	var handled int
	err := consumer.Consume(ctx, func(context.Context, kafka.Message) error {
		handled++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	reader.AssertExpectations(t)
}

func TestConsumer_HandlerErrorStops(t *testing.T) {
	msg := kafka.Message{Topic: "booking-notifications", Offset: 7}
	reader := new(MockReader)
	reader.On("FetchMessage", mock.Anything).Return(msg, nil).Once()

	consumer := NewConsumerWithReader(reader, log.New(io.Discard, "", 0))
	boom := errors.New("smtp down")

	err := consumer.Consume(context.Background(), func(context.Context, kafka.Message) error { return boom })
	assert.ErrorIs(t, err, boom)
	reader.AssertNotCalled(t, "CommitMessages", mock.Anything, mock.Anything)
}

func TestConsumer_CloseNil(t *testing.T) {
	var c *Consumer
	assert.NoError(t, c.Close())
}

func TestProducer_CheckConnectionWithoutBrokers(t *testing.T) {
	p := NewProducer(nil, log.New(io.Discard, "", 0))
	assert.Error(t, p.CheckConnection(context.Background()))
	assert.NoError(t, p.Close())
}
