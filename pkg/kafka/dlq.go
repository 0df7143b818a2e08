package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// DLQTopic returns the dead-letter topic for a source topic.
func DLQTopic(originalTopic string) string {
	return TopicPrefix + ".dlq." + originalTopic
}

// DLQProducer parks messages that exhausted their retries.
type DLQProducer struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewDLQProducer creates a DLQ producer over w.
func NewDLQProducer(w MessageWriter, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{writer: w, logger: logger}
}

// Publish copies msg to its dead-letter topic with provenance headers.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, lastErr error, consumerGroup string) error {
	topic := DLQTopic(msg.Topic)

	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(consumerGroup)},
	)
	if lastErr != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(lastErr.Error())})
	}

	err := d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("publish to DLQ %s: %w", topic, err)
	}
	dlqPublished.WithLabelValues(msg.Topic).Inc()

	d.logger.WarnContext(ctx, "message sent to DLQ",
		slog.String("dlq_topic", topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)
	return nil
}

// Close closes the underlying writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
