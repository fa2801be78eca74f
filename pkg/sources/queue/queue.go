// Package queue ingests engagement samples from a Redis list. Analytics
// exporters push one JSON sample per list entry; the source pops them,
// validates, stores, and announces each sample on the event bus.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creatorkit/maestro/pkg/eventbus"
	"github.com/creatorkit/maestro/pkg/events"
	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const DefaultQueue = "maestro:engagement"

// Config holds the Redis connection and queue settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Source consumes engagement samples from a Redis list with BLPOP.
type Source struct {
	config Config
	store  persistence.EngagementRepository
	bus    eventbus.EventPublisher
	logger *slog.Logger

	client redis.UniversalClient
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewSource(config Config, store persistence.EngagementRepository, bus eventbus.EventPublisher, logger *slog.Logger) *Source {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	if config.Queue == "" {
		config.Queue = DefaultQueue
	}

	return &Source{
		config: config,
		store:  store,
		bus:    bus,
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "queue_source",
			"queue", config.Queue,
		),
	}
}

func (s *Source) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting engagement queue source")

	s.client = redis.NewClient(&redis.Options{
		Addr:     s.config.Addr,
		Password: s.config.Password,
		DB:       s.config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Connected to Redis", "addr", s.config.Addr, "db", s.config.DB)

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping engagement queue source")

	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			if err := s.processMessage(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// processMessage pops one sample. Malformed entries are logged and dropped;
// they would fail identically on every redelivery.
func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, 1*time.Second, s.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var sample models.EngagementSample
	if err := json.Unmarshal([]byte(result[1]), &sample); err != nil {
		s.logger.WarnContext(ctx, "Discarding malformed engagement sample", "error", err)

		return nil
	}

	if sample.ObservedAt.IsZero() {
		sample.ObservedAt = time.Now().UTC()
	}

	if err := s.store.Append(ctx, sample); err != nil {
		return fmt.Errorf("failed to store engagement sample: %w", err)
	}

	s.logger.InfoContext(ctx, "Recorded engagement sample",
		"platform", sample.Platform,
		"weekday", sample.Weekday,
		"hour", sample.Hour,
		"rate", sample.Rate)

	if s.bus != nil {
		event := events.SampleRecorded{
			BaseEvent: events.NewBaseEvent(events.SampleRecordedEvent, ""),
			Sample:    sample,
		}

		if err := s.bus.Publish(ctx, string(sample.Platform), event); err != nil {
			s.logger.ErrorContext(ctx, "Error publishing sample event", "error", err)
		}
	}

	return nil
}
