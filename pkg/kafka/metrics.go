package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	consumerMessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packstore",
			Name:      "kafka_consumer_messages_processed_total",
			Help:      "Kafka messages handled successfully",
		},
		[]string{"topic", "consumer_group"},
	)

	consumerMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packstore",
			Name:      "kafka_consumer_messages_failed_total",
			Help:      "Kafka messages that exhausted handler retries",
		},
		[]string{"topic", "consumer_group"},
	)

	consumerMessagesDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packstore",
			Name:      "kafka_consumer_messages_duplicate_total",
			Help:      "Kafka messages skipped as already processed",
		},
		[]string{"event_type"},
	)

	consumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "packstore",
			Name:      "kafka_consumer_processing_duration_seconds",
			Help:      "Time spent handling one Kafka message",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	producerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packstore",
			Name:      "kafka_producer_messages_published_total",
			Help:      "Kafka messages published",
		},
		[]string{"topic"},
	)

	producerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packstore",
			Name:      "kafka_producer_publish_errors_total",
			Help:      "Kafka publish failures",
		},
		[]string{"topic"},
	)

	dlqPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packstore",
			Name:      "kafka_dlq_published_total",
			Help:      "Messages moved to a dead-letter topic",
		},
		[]string{"topic"},
	)
)
