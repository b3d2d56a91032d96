package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaForwarder writes every dispatched event to a topic, keyed by request id.
// With no brokers configured it does nothing.
type KafkaForwarder struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaForwarder creates the forwarder.
func NewKafkaForwarder(brokers []string, topic string, logger *zap.Logger) *KafkaForwarder {
	if len(brokers) == 0 || topic == "" {
		return &KafkaForwarder{logger: logger}
	}
	return &KafkaForwarder{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether a writer is configured.
func (f *KafkaForwarder) Enabled() bool {
	return f != nil && f.writer != nil
}

// Handle is an EventHandler.
func (f *KafkaForwarder) Handle(ctx context.Context, event Event) error {
	if !f.Enabled() {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.RequestID, 10)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		f.logger.Warn("kafka write failed", zap.String("event_id", event.ID), zap.Error(err))
		return fmt.Errorf("kafka: write %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the writer.
func (f *KafkaForwarder) Close() error {
	if !f.Enabled() {
		return nil
	}
	return f.writer.Close()
}
