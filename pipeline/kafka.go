package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/aluiziolira/oofd-receipts/models"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaWriter.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter publishes each record as a JSON message keyed by lookup URL.
type KafkaWriter struct {
	writer  MessageWriter
	timeout time.Duration
	records int
	mu      sync.Mutex
}

// NewKafkaWriter creates a writer for topic on the given brokers.
func NewKafkaWriter(brokers []string, topic string) (*KafkaWriter, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka writer needs at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka writer needs a topic")
	}
	return NewKafkaWriterFrom(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}), nil
}

// NewKafkaWriterFrom wraps an existing message writer.
func NewKafkaWriterFrom(w MessageWriter) *KafkaWriter {
	return &KafkaWriter{
		writer:  w,
		timeout: 30 * time.Second,
	}
}

// Write publishes a batch in one WriteMessages call.
func (kw *KafkaWriter) Write(records []*models.Record) error {
	kw.mu.Lock()
	defer kw.mu.Unlock()

	msgs := make([]kafka.Message, 0, len(records))
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(record.URL),
			Value: data,
			Time:  record.ScrapedAt,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), kw.timeout)
	defer cancel()
	if err := kw.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	kw.records += len(msgs)
	return nil
}

// Close flushes pending messages and closes the connection.
func (kw *KafkaWriter) Close() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	return kw.writer.Close()
}

// Validate ensures at least one receipt was published.
func (kw *KafkaWriter) Validate() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.records == 0 {
		return fmt.Errorf("kafka writer published no receipts")
	}
	return nil
}
