package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxHandlerRetries bounds handler attempts before a message is parked in
// the DLQ (when configured) and committed.
const maxHandlerRetries = 3

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds consumer settings.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// Consumer runs a fetch-handle-commit loop over one topic.
type Consumer struct {
	reader    MessageReader
	topic     string
	group     string
	handler   Handler
	dlq       *DLQProducer
	logger    *slog.Logger
	backoff   time.Duration
	closeOnce sync.Once
}

// NewConsumer creates a consumer backed by a kafka-go reader.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return NewConsumerWithReader(r, cfg.Topic, cfg.GroupID, handler, logger)
}

// NewConsumerWithReader creates a consumer over an arbitrary reader.
func NewConsumerWithReader(r MessageReader, topic, group string, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   topic,
		group:   group,
		handler: handler,
		logger:  logger,
		backoff: 100 * time.Millisecond,
	}
}

// WithDLQ parks messages that exhaust their retries on the dead-letter topic.
func (c *Consumer) WithDLQ(d *DLQProducer) *Consumer {
	c.dlq = d
	return c
}

// Start consumes until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.String("topic", c.topic),
		slog.String("group", c.group),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", c.topic))
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		c.process(ctx, msg)
		if ctx.Err() != nil {
			return c.Close()
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	start := time.Now()
	defer func() {
		consumerProcessingDuration.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
	}()

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to unmarshal event",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
		)
		c.giveUp(ctx, msg, err)
		return
	}

	msgCtx := extractTrace(ctx, &msg)

	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		lastErr = c.handler(msgCtx, event)
		if lastErr == nil {
			break
		}
		c.logger.Warn("handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
		)
		if attempt < maxHandlerRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}

	if lastErr != nil {
		c.logger.Error("handler failed after all retries",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int("retries", maxHandlerRetries),
		)
		c.giveUp(ctx, msg, lastErr)
		return
	}

	consumerMessagesProcessed.WithLabelValues(msg.Topic, c.group).Inc()
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message", slog.String("error", err.Error()))
	}
}

// giveUp dead-letters (if configured) and commits a message that cannot be
// handled, so one poison message does not stall the partition.
func (c *Consumer) giveUp(ctx context.Context, msg kafka.Message, cause error) {
	consumerMessagesFailed.WithLabelValues(msg.Topic, c.group).Inc()
	if c.dlq != nil {
		if err := c.dlq.Publish(ctx, msg, cause, c.group); err != nil {
			c.logger.Error("failed to publish to DLQ", slog.String("error", err.Error()))
		}
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit poison message", slog.String("error", err.Error()))
	}
}

// Close closes the reader once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
