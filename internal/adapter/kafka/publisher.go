// Package kafka publishes newly confirmed daily records to a sink topic so
// downstream consumers (scoring jobs, archival) can react to ledger growth
// without polling the CSV. The publisher is feature-flagged and its failures
// never fail a pipeline run.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lapan-fishing/tide-journal-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces daily-record messages to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishRecords serializes and publishes the records in a single
// WriteMessages call, keyed by day.
func (p *Publisher) PublishRecords(ctx context.Context, records []domain.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a DailyRecord into a Kafka message.
func serializeToMessage(rec domain.DailyRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize daily record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Day),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "lunar_date", Value: []byte(rec.LunarDay)},
			{Key: "published_at", Value: []byte(domain.Clock().Now().Format(time.RFC3339))},
		},
	}, nil
}
