// Package kafka provides the analytics bus: a Kafka topic carrying engagement
// samples emitted by external analytics pipelines.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/creatorkit/maestro/pkg/events"
	"github.com/creatorkit/maestro/pkg/models"
	kafkago "github.com/segmentio/kafka-go"
)

// SampleHandler processes one ingested engagement sample.
type SampleHandler func(ctx context.Context, sample models.EngagementSample) error

// AnalyticsBus reads engagement samples from the analytics topic and can
// publish samples recorded locally for downstream consumers.
type AnalyticsBus struct {
	logger *slog.Logger
	writer *kafkago.Writer
	reader *kafkago.Reader
}

func NewAnalyticsBus(logger *slog.Logger) (*AnalyticsBus, error) {
	brokersStr := os.Getenv("KAFKA_BROKERS")

	splitBrokers := strings.Split(brokersStr, ",")
	if len(splitBrokers) == 0 || (len(splitBrokers) == 1 && splitBrokers[0] == "") {
		return nil, errors.New("no Kafka brokers configured")
	}

	writer := kafkago.NewWriter(kafkago.WriterConfig{
		Brokers: splitBrokers,
		Topic:   events.AnalyticsTopic,
	})

	groupID := os.Getenv("KAFKA_GROUP_ID")
	if groupID == "" {
		groupID = "cg-maestro-analytics"
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: splitBrokers,
		Topic:   events.AnalyticsTopic,
		GroupID: groupID,
	})

	return &AnalyticsBus{
		logger: logger.With("module", "analytics_bus"),
		writer: writer,
		reader: reader,
	}, nil
}

// Publish writes one engagement sample to the analytics topic.
func (b *AnalyticsBus) Publish(ctx context.Context, sample models.EngagementSample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return err
	}

	return b.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(sample.Platform),
		Value: payload,
	})
}

// Subscribe starts consuming samples and handing them to the handler. Messages
// the handler rejects are not committed and will be redelivered.
func (b *AnalyticsBus) Subscribe(ctx context.Context, handler SampleHandler) error {
	b.logger.InfoContext(ctx, "Subscribing to analytics topic", "topic", events.AnalyticsTopic)

	go b.consume(ctx, handler)

	return nil
}

func (b *AnalyticsBus) consume(ctx context.Context, handler SampleHandler) {
	for {
		message, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				b.logger.InfoContext(ctx, "Stopping analytics consumer")

				return
			}

			b.logger.ErrorContext(ctx, "Failed to fetch analytics message", "error", err)

			continue
		}

		var sample models.EngagementSample
		if err := json.Unmarshal(message.Value, &sample); err != nil {
			b.logger.ErrorContext(ctx, "Discarding malformed engagement sample", "error", err)

			if err := b.reader.CommitMessages(ctx, message); err != nil {
				b.logger.ErrorContext(ctx, "Failed to commit message", "error", err)
			}

			continue
		}

		if err := handler(ctx, sample); err != nil {
			b.logger.ErrorContext(ctx, "Sample handler failed, message will be redelivered", "error", err)

			continue
		}

		if err := b.reader.CommitMessages(ctx, message); err != nil {
			b.logger.ErrorContext(ctx, "Failed to commit message", "error", err)
		}
	}
}

func (b *AnalyticsBus) Close() error {
	if err := b.writer.Close(); err != nil {
		return err
	}

	return b.reader.Close()
}
