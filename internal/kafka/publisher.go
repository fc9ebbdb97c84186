package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"copytrader/internal/models"
	"copytrader/internal/resilience"
)

// MessageWriter is the part of *kafka.Writer the publishers use.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// TransactionPublisher publishes executed transactions keyed by user.
type TransactionPublisher struct {
	writer  MessageWriter
	breaker *resilience.Breaker
	Topic   string
}

// NewTransactionPublisher creates a publisher for the transactions topic.
func NewTransactionPublisher(brokers []string, topic string) *TransactionPublisher {
	return NewTransactionPublisherWithWriter(newWriter(brokers, topic), topic)
}

// NewTransactionPublisherWithWriter wraps an existing writer.
func NewTransactionPublisherWithWriter(w MessageWriter, topic string) *TransactionPublisher {
	return &TransactionPublisher{
		writer:  w,
		breaker: resilience.NewBreaker("kafka-publish", resilience.DefaultBreakerConfig()),
		Topic:   topic,
	}
}

// Breaker exposes the publisher's circuit breaker for health checks.
func (p *TransactionPublisher) Breaker() *resilience.Breaker {
	return p.breaker
}

// PublishTransaction writes one transaction event. Events for the same user
// land on the same partition.
func (p *TransactionPublisher) PublishTransaction(ctx context.Context, userID string, txn models.Transaction) error {
	value, err := EncodeTransaction(userID, txn)
	if err != nil {
		return fmt.Errorf("marshal transaction event: %w", err)
	}
	msg := kafka.Message{Key: []byte(userID), Value: value}
	return p.breaker.Do(ctx, func(ctx context.Context) error {
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			return fmt.Errorf("kafka write: %w", err)
		}
		return nil
	})
}

// Close closes the underlying writer.
func (p *TransactionPublisher) Close() error {
	return p.writer.Close()
}

// SignalPublisher publishes expert signals keyed by expert.
type SignalPublisher struct {
	writer MessageWriter
	Topic  string
}

// NewSignalPublisher creates a publisher for the signals topic.
func NewSignalPublisher(brokers []string, topic string) *SignalPublisher {
	return NewSignalPublisherWithWriter(newWriter(brokers, topic), topic)
}

// NewSignalPublisherWithWriter wraps an existing writer.
func NewSignalPublisherWithWriter(w MessageWriter, topic string) *SignalPublisher {
	return &SignalPublisher{writer: w, Topic: topic}
}

// Publish sends sig to the signals topic.
func (p *SignalPublisher) Publish(ctx context.Context, sig models.CopySignal) error {
	value, err := EncodeSignal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(sig.ExpertID), Value: value}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *SignalPublisher) Close() error {
	return p.writer.Close()
}
