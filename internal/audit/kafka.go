package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"boxoffice/internal/shared/config"
	"boxoffice/pkg/logger"

	"github.com/IBM/sarama"
)

// KafkaSinkConfig contains configuration for the Kafka audit producer
type KafkaSinkConfig struct {
	Brokers          []string
	Topic            string
	ClientID         string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaSinkConfig returns a default producer configuration for the given settings
func DefaultKafkaSinkConfig(cfg config.KafkaConfig) *KafkaSinkConfig {
	return &KafkaSinkConfig{
		Brokers:          cfg.Brokers,
		Topic:            cfg.AuditTopic,
		ClientID:         cfg.ClientID,
		RetryMax:         3,
		TimeoutMs:        10000,             // 10 seconds
		RequiredAcks:     sarama.WaitForAll, // Wait for all in-sync replicas
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
	}
}

// NewSaramaConfig builds the producer configuration
func (c *KafkaSinkConfig) NewSaramaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = c.ClientID

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = c.RequiredAcks
	saramaConfig.Producer.Compression = c.CompressionType
	saramaConfig.Producer.Retry.Max = c.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(c.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = c.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = c.MaxMessageBytes

	// Idempotent producer requires a single in-flight request
	if c.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps every transition of one entity in order
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	return saramaConfig
}

// KafkaSink publishes audit entries to a topic, keyed by entity id
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink connects a sync producer to the brokers
func NewKafkaSink(cfg *KafkaSinkConfig) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, cfg.NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.GetDefault().Info("Kafka audit producer created", "topic", cfg.Topic)
	return NewKafkaSinkWithProducer(producer, cfg.Topic), nil
}

// NewKafkaSinkWithProducer wraps an existing producer
func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Record(ctx context.Context, entry *AuditLogEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(entry.EntityID.String()),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("action"), Value: []byte(entry.Action)},
			{Key: []byte("entity_type"), Value: []byte(entry.EntityType)},
		},
		Timestamp: entry.CreatedAt,
	}

	partition, offset, err := s.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send audit entry to Kafka: %w", err)
	}

	logger.GetDefault().DebugContext(ctx, "audit entry published",
		"topic", s.topic, "partition", partition, "offset", offset, "action", entry.Action)
	return nil
}

// Close flushes and closes the producer
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
