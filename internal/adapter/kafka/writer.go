package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/flight-weather-etl/internal/config"
	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

// publishChunk bounds the number of messages per WriteMessages call.
const publishChunk = 500

// Writer produces merged records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Publish serializes the merged table and writes it in chunks. Messages are
// keyed by station and departure so a station's flights stay on one partition.
func (w *Writer) Publish(ctx context.Context, merged []domain.MergedRecord) error {
	for start := 0; start < len(merged); start += publishChunk {
		end := min(start+publishChunk, len(merged))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(merged[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write messages %d-%d: %w", start, end, err)
		}
		w.logger.Debug("kafka chunk written", "topic", w.writer.Topic, "from", start, "to", end)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// messageKey is "<icao>|<departure RFC 3339>".
func messageKey(f domain.FlightRecord) []byte {
	return []byte(f.ICAO + "|" + f.UTC.UTC().Format(time.RFC3339))
}

// serializeToMessage marshals a MergedRecord into a Kafka message.
func serializeToMessage(m domain.MergedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize merged record: %w", err)
	}
	return kafkago.Message{
		Key:   messageKey(m.Flight),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "icao", Value: []byte(m.Flight.ICAO)},
			{Key: "matched", Value: []byte(strconv.FormatBool(m.Weather != nil))},
		},
	}, nil
}
