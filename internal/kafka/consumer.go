package kafka

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader MessageReader
	logger *log.Logger
}

func NewConsumer(brokers []string, groupID, topic string, logger *log.Logger) *Consumer {
	return NewConsumerWithReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		Topic:             topic,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}), logger)
}

func NewConsumerWithReader(reader MessageReader, logger *log.Logger) *Consumer {
	if logger == nil {
		logger = log.Default()
	}
	return &Consumer{reader: reader, logger: logger}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume fetches messages until ctx is cancelled. A message is committed once
// handler returns nil; a handler error stops consumption without committing.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			metrics.IncKafkaError("consumer", "fetch")
			return err
		}

		if err := handler(ctx, msg); err != nil {
			metrics.IncKafkaError("consumer", "handle")
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			metrics.IncKafkaError("consumer", "commit")
			c.logger.Printf("kafka: commit offset %d on %s: %v", msg.Offset, msg.Topic, err)
			continue
		}
		metrics.IncKafkaProcessed()
	}
}
