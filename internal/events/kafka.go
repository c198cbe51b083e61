package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes completed-transaction events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish serializes the event as JSON keyed by transaction id.
func (p *KafkaPublisher) Publish(ctx context.Context, event TransactionCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: payload,
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
