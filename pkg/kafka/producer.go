// Package kafka publishes JSON events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"hotel-directory/pkg/logger"
)

// Writer is the subset of segmentio kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Producer JSON-encodes values and writes them keyed, so events with the same
// key land on the same partition.
type Producer struct {
	writer Writer
}

// NewProducer builds a producer for topic on brokers.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	w := &skafka.Writer{
		Addr:                   skafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &skafka.Hash{},
		RequiredAcks:           skafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: w}, nil
}

// NewProducerWithWriter allows injecting a test writer.
func NewProducerWithWriter(w Writer) *Producer {
	return &Producer{writer: w}
}

// Publish marshals value to JSON and writes one message with key.
func (p *Producer) Publish(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", key, err)
	}
	msg := skafka.Message{
		Key:   []byte(key),
		Value: b,
		Headers: []skafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", key, err)
	}
	logger.From(ctx).Debug("kafka published", "key", key, "bytes", len(b))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
