// Package kafka publishes enriched climate observations to a sink topic for
// downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/toastytimes/climate-series-service/internal/config"
	"github.com/toastytimes/climate-series-service/internal/domain"
)

// Writer produces enriched observation messages to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// observationMessage is the wire form of one enriched observation.
type observationMessage struct {
	SourceID  string   `json:"source_id"`
	Date      string   `json:"date"`
	DayOfYear int      `json:"day_of_year"`
	Value     *float64 `json:"value"`
	Anomaly   *float64 `json:"anomaly"`
	Sigma     *float64 `json:"sigma"`
}

// PublishSeries writes every observation of a refreshed source series to the
// sink topic in a single WriteMessages call. Returns the number of messages
// written.
func (w *Writer) PublishSeries(ctx context.Context, sourceID string, series domain.Series, computedAt time.Time) (int, error) {
	if len(series) == 0 {
		return 0, nil
	}

	msgs := make([]kafkago.Message, len(series))
	for i, o := range series {
		msg, err := serializeToMessage(sourceID, o, computedAt)
		if err != nil {
			return 0, err
		}
		msgs[i] = msg
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish series %s: %w", sourceID, err)
	}
	return len(msgs), nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an observation into a Kafka message. The key
// is source plus date so compacted topics keep the latest derivation per day.
func serializeToMessage(sourceID string, o domain.DailyObservation, computedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(observationMessage{
		SourceID:  sourceID,
		Date:      o.DateString(),
		DayOfYear: o.DayOfYear,
		Value:     o.Value,
		Anomaly:   o.Anomaly,
		Sigma:     o.Sigma,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(sourceID + "|" + o.DateString()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(sourceID)},
			{Key: "computed_at", Value: []byte(computedAt.Format(time.RFC3339))},
		},
	}, nil
}
