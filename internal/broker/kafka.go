package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"gym-iot-backend/internal/models"
)

// messageWriter is the part of *kafka.Writer the mirror uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds configuration for the Kafka live mirror
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaMirror publishes every live envelope to a Kafka topic
type KafkaMirror struct {
	writer messageWriter
	topic  string
}

// NewKafkaMirror creates a mirror, or returns nil when no brokers are configured
func NewKafkaMirror(config KafkaConfig) *KafkaMirror {
	if len(config.Brokers) == 0 || config.Topic == "" {
		return nil
	}

	log.Printf("Kafka: mirroring live readings to %s via %v", config.Topic, config.Brokers)

	return &KafkaMirror{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Topic:        config.Topic,
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			Async:        false,
		},
		topic: config.Topic,
	}
}

// Name identifies the mirror in logs and metrics
func (k *KafkaMirror) Name() string {
	return "kafka"
}

// Publish writes one envelope keyed by its message type
func (k *KafkaMirror) Publish(ctx context.Context, env models.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(env.Type),
		Value: value,
		Time:  env.Data.Timestamp,
		Headers: []kafka.Header{
			{Key: "message-id", Value: []byte(uuid.NewString())},
			{Key: "status", Value: []byte(env.Data.Status)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (k *KafkaMirror) Close() error {
	return k.writer.Close()
}
