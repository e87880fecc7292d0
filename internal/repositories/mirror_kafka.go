package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}

// KafkaMirror publishes every mutation as a JSON message keyed by user ID, so that
// all changes of one user land in one partition in order.
type KafkaMirror struct {
	writer KafkaWriter
}

// NewKafkaMirror creates a Kafka backed mirror.
func NewKafkaMirror(writer KafkaWriter) *KafkaMirror {
	return &KafkaMirror{writer: writer}
}

// Put publishes m.
func (k *KafkaMirror) Put(ctx context.Context, m models.Mutation) error {
	data, err := json.Marshal(m)
	if err != nil {
		logger.Log.Errorw("failed to marshal mutation for Kafka", "mutation", m.ID, "error", err)
		return fmt.Errorf("marshal mutation: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(m.UserID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "mutation_id", Value: []byte(m.ID)},
			{Key: "field", Value: []byte(m.Field)},
			{Key: "op", Value: []byte(m.Op)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("failed to publish mutation to Kafka", "mutation", m.ID, "userID", m.UserID, "error", err)
		return err
	}

	logger.Log.Infow("mutation published to Kafka", "mutation", m.ID, "userID", m.UserID, "field", m.Field)
	return nil
}

// Close closes the underlying writer.
func (k *KafkaMirror) Close() error {
	return k.writer.Close()
}
