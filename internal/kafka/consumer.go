package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"copytrader/internal/config"
	"copytrader/internal/logging"
	"copytrader/internal/models"
	"copytrader/pkg/utils"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// SignalSink accepts decoded signals. stream.Hub implements it.
type SignalSink interface {
	PublishContext(ctx context.Context, sig models.CopySignal) error
}

// SignalConsumer consumes expert signals from Kafka.
type SignalConsumer struct {
	reader MessageReader
	logger zerolog.Logger
	retry  utils.RetryConfig
}

// NewSignalConsumer creates a consumer-group reader for the signals topic.
func NewSignalConsumer(cfg config.SignalsConfig, logger zerolog.Logger) *SignalConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaGroupID,
		Topic:   cfg.KafkaTopic,
	})
	return NewSignalConsumerWithReader(reader, logger)
}

// NewSignalConsumerWithReader wraps an existing reader.
func NewSignalConsumerWithReader(reader MessageReader, logger zerolog.Logger) *SignalConsumer {
	return &SignalConsumer{
		reader: reader,
		logger: logging.WithComponent(logger, "kafka-consumer"),
		retry: utils.RetryConfig{
			MaxAttempts:   0,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2,
		},
	}
}

// Consume reads messages and hands each decoded signal to sink. Messages
// that fail to decode are logged and skipped.
func (c *SignalConsumer) Consume(ctx context.Context, sink SignalSink) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("kafka read: %w", err)
		}

		sig, err := DecodeSignal(msg.Value)
		if err != nil {
			c.logger.Warn().Err(err).
				Str("topic", msg.Topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Skipping undecodable signal")
			continue
		}
		if sig.Timestamp.IsZero() {
			sig.Timestamp = msg.Time
		}
		if err := sink.PublishContext(ctx, sig); err != nil {
			return utils.Permanent(err)
		}
	}
}

// Run consumes until ctx is done, reconnecting with backoff after read
// errors.
func (c *SignalConsumer) Run(ctx context.Context, sink SignalSink) error {
	cfg := c.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("Signal consumer failed, retrying")
	}
	err := utils.Retry(ctx, cfg, func() error {
		return c.Consume(ctx, sink)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Close closes the underlying reader.
func (c *SignalConsumer) Close() error {
	return c.reader.Close()
}
