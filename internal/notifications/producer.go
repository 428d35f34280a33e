package notifications

import (
	"context"
	"fmt"
	"time"

	"festival/pkg/logger"

	"github.com/IBM/sarama"
)

// Sink delivers one event to an external system
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

// KafkaProducerConfig contains configuration for the Kafka sink
type KafkaProducerConfig struct {
	Brokers         []string
	Topic           string
	TimeoutMs       int
	RequiredAcks    sarama.RequiredAcks
	CompressionType sarama.CompressionCodec
	MaxMessageBytes int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:         []string{"localhost:9092"},
		Topic:           "festival-events",
		TimeoutMs:       3000,
		RequiredAcks:    sarama.WaitForLocal,
		CompressionType: sarama.CompressionSnappy,
		MaxMessageBytes: 1000000, // 1MB
	}
}

// KafkaSink publishes events to a single topic
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink dials the brokers and builds a synchronous producer
func NewKafkaSink(config *KafkaProducerConfig) (*KafkaSink, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	// Retries are owned by the dispatcher
	saramaConfig.Producer.Retry.Max = 0
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.GetDefault().Info("Kafka event sink created", "topic", config.Topic)
	return NewKafkaSinkWithProducer(producer, config.Topic), nil
}

// NewKafkaSinkWithProducer wraps an existing producer
func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (ks *KafkaSink) Send(_ context.Context, event Event) error {
	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     ks.topic,
		Key:       sarama.StringEncoder(event.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   createHeaders(event),
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := ks.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send event to Kafka: %w", err)
	}

	logger.GetDefault().Debug("event published to Kafka",
		"topic", ks.topic, "partition", partition, "offset", offset, "event", event.Type)
	return nil
}

func createHeaders(event Event) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("event_id"), Value: []byte(event.ID.String())},
		{Key: []byte("event_type"), Value: []byte(event.Type)},
		{Key: []byte("edition_id"), Value: []byte(event.EditionID.String())},
		{Key: []byte("producer"), Value: []byte("festival-backend")},
		{Key: []byte("occurred_at"), Value: []byte(event.OccurredAt.Format(time.RFC3339))},
	}
}

func (ks *KafkaSink) Close() error {
	if ks.producer == nil {
		return nil
	}
	if err := ks.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

// LogSink writes events to the application log; used when no broker is configured
type LogSink struct{}

func (LogSink) Send(ctx context.Context, event Event) error {
	logger.GetDefault().InfoContext(ctx, "domain event",
		"event", event.Type, "entity_id", event.EntityID.String(), "edition_id", event.EditionID.String())
	return nil
}

func (LogSink) Close() error { return nil }
