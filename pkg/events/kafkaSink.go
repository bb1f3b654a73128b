package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaSink publishes events to a Kafka topic keyed by account.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientId string
}

// NewKafkaProducerConfig returns the producer settings the sink expects.
func NewKafkaProducerConfig(clientId string) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.ClientID = clientId
	return config
}

// NewKafkaSink dials the brokers and returns a sink on cfg.Topic.
func NewKafkaSink(cfg *KafkaConfig, logger *zap.Logger) (*KafkaSink, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewKafkaProducerConfig(cfg.ClientId))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, cfg.Topic, logger), nil
}

// NewKafkaSinkWithProducer wraps an existing producer.
func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func (s *KafkaSink) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type(), err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.PartitionKey()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type())},
		},
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to publish event", "type", event.Type(), "error", err)
		return fmt.Errorf("failed to publish %s event: %w", event.Type(), err)
	}

	s.logger.Sugar().Debugw("Event published",
		"type", event.Type(),
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
