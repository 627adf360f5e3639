package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dockmap/auth-service/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes auth events to a Kafka topic keyed by user id
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates an asynchronous publisher; delivery errors are logged by the writer callback
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("failed to deliver auth events", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}

	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish implements service.EventPublisher
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.AuthEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal auth event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish auth event: %w", err)
	}
	return nil
}

// Close flushes pending messages
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events when no brokers are configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.AuthEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
