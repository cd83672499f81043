package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wedding-manager/internal/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher emits domain events after successful writes.
type Publisher interface {
	Publish(topic, key string, value []byte) error
	PublishJSON(topic, key string, v any) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const defaultTimeout = 10 * time.Second

type Producer struct {
	writer  messageWriter
	logger  *logger.Logger
	timeout time.Duration
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer, logger: log, timeout: defaultTimeout}
}

// Publish writes one message; key keeps an event's changes on one partition.
func (p *Producer) Publish(topic, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	p.logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s bytes=%d", key, len(value)))
	return nil
}

func (p *Producer) PublishJSON(topic, key string, v any) error {
	msgBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	return p.Publish(topic, key, msgBytes)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, string, []byte) error { return nil }

func (NoopPublisher) PublishJSON(string, string, any) error { return nil }

func (NoopPublisher) Close() error { return nil }
