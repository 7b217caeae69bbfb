package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ko0hi/papertrade/internal/engine"
)

// Kafka publishes fills as JSON, keyed by symbol so per-instrument ordering
// survives partitioning.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (k *Kafka) RecordExecution(ctx context.Context, e engine.Execution) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode execution %s: %w", e.ID, err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Symbol),
		Value: value,
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
