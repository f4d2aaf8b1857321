package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/globe40-course-data/internal/config"
	"github.com/couchcryptid/globe40-course-data/internal/domain"
)

// Writer publishes retrieval requests to a Kafka topic for remote workers.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured request topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in metrics and logs.
func (w *Writer) Name() string { return "kafka" }

// Load publishes one request. Requests for the same output file share a key
// and therefore a partition.
func (w *Writer) Load(ctx context.Context, req domain.RetrievalRequest) error {
	msg, err := serializeToMessage(req)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", req.FileName(), err)
	}
	w.logger.Debug("retrieval request published", "topic", w.writer.Topic, "key", string(msg.Key))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RetrievalRequest into a Kafka message.
func serializeToMessage(req domain.RetrievalRequest) (kafkago.Message, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize retrieval request: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(req.FileName()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "leg", Value: []byte(req.Leg)},
			{Key: "year_month", Value: []byte(fmt.Sprintf("%d-%02d", req.Year, int(req.Month)))},
			{Key: "planned_at", Value: []byte(req.PlannedAt.Format(time.RFC3339))},
		},
	}, nil
}
