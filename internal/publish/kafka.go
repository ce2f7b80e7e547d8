// Package publish forwards check transitions to a Kafka topic.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/domain"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes every transition keyed by the check id, so all
// transitions of one check land on one partition in order.
type Kafka struct {
	writer MessageWriter
	log    *zap.Logger
}

func NewKafka(log *zap.Logger, brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("kafka_publish_error", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return NewKafkaWithWriter(log, w), nil
}

func NewKafkaWithWriter(log *zap.Logger, w MessageWriter) *Kafka {
	return &Kafka{writer: w, log: log}
}

func (p *Kafka) Observe(ctx context.Context, t domain.Transition) {
	msg, err := Message(t)
	if err != nil {
		p.log.Warn("kafka_encode_error", zap.String("check", t.Key.String()), zap.Error(err))
		return
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("kafka_publish_error", zap.String("check", t.Key.String()), zap.Error(err))
	}
}

func (p *Kafka) Close() error {
	return p.writer.Close()
}

// Message encodes a transition as a Kafka message.
func Message(t domain.Transition) (kafka.Message, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal transition: %w", err)
	}
	return kafka.Message{
		Key:   []byte(t.Key.ID()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "phase", Value: []byte(t.Phase)},
			{Key: "transition_id", Value: []byte(t.ID)},
		},
		Time: t.At,
	}, nil
}
