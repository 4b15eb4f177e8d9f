// Package kafka adapts the batch-resolution source and sink topics to the
// pipeline's extractor and loader interfaces, and exposes the sink as a
// domain.ResolutionSink for the HTTP path.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/roamstack/place-resolver/internal/config"
	"github.com/roamstack/place-resolver/internal/domain"
)

// Writer produces resolution events to the sink topic.
// It implements pipeline.BatchLoader and domain.ResolutionSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and publishes a single resolution event.
func (w *Writer) Publish(ctx context.Context, event domain.ResolutionEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

// LoadBatch serializes and publishes multiple resolution events to the sink
// topic in a single WriteMessages call for efficiency.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.ResolutionEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ResolutionEvent into a Kafka message. The
// key is the normalized query so all resolutions of one place land on one
// partition, keeping per-place event order intact for consumers.
func serializeToMessage(event domain.ResolutionEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize resolution event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.NormalizedQuery),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "resolved", Value: []byte(strconv.FormatBool(event.Resolved))},
			{Key: "resolved_at", Value: []byte(event.ResolvedAt.Format(time.RFC3339))},
		},
	}, nil
}
