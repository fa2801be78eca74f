package main

import (
	"context"
	"log/slog"

	"github.com/creatorkit/maestro/pkg/breaker"
	"github.com/creatorkit/maestro/pkg/collaborator"
	"github.com/creatorkit/maestro/pkg/config"
	"github.com/creatorkit/maestro/pkg/content"
	"github.com/creatorkit/maestro/pkg/dispatcher"
	"github.com/creatorkit/maestro/pkg/eventbus"
	kafkabus "github.com/creatorkit/maestro/pkg/eventbus/kafka"
	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
	"github.com/creatorkit/maestro/pkg/registry"
	"github.com/creatorkit/maestro/pkg/sources/queue"
	"github.com/creatorkit/maestro/pkg/sources/schedule"
)

type ControllerConfig struct {
	WorkflowsFile  string
	RedisAddr      string
	AnalyticsKafka bool
	MaxConcurrent  int
}

// Controller assembles the orchestration core: registry, breakers, content
// pipeline, dispatcher, and the trigger sources that feed it.
type Controller struct {
	config     ControllerConfig
	store      persistence.Persistence
	dispatcher *dispatcher.Dispatcher
	schedules  *schedule.Source
	queue      *queue.Source
	analytics  *kafkabus.AnalyticsBus
	logger     *slog.Logger
}

func NewController(
	ctx context.Context,
	cfg ControllerConfig,
	store persistence.Persistence,
	bus eventbus.EventBus,
	logger *slog.Logger,
) (*Controller, error) {
	reg := registry.New(logger)

	loader := config.NewLoader(reg, logger)
	if _, err := loader.LoadFile(cfg.WorkflowsFile); err != nil {
		return nil, err
	}

	breakers := breaker.NewRegistry(breaker.DefaultConfig, logger)
	pipeline := content.NewPipeline(
		collaborator.StubGenerator{},
		collaborator.StubPublisher{},
		breakers,
		logger,
	)

	disp := dispatcher.New(
		dispatcher.Config{MaxConcurrent: cfg.MaxConcurrent},
		reg,
		breakers,
		store,
		bus,
		logger,
	)

	for _, definition := range reg.All() {
		disp.RegisterBody(definition.Name, pipeline.Body(definition))
	}

	controller := &Controller{
		config:     cfg,
		store:      store,
		dispatcher: disp,
		schedules:  schedule.NewSource(reg, disp, logger),
		logger:     logger,
	}

	if cfg.RedisAddr != "" {
		controller.queue = queue.NewSource(
			queue.Config{Addr: cfg.RedisAddr},
			store.Engagement(),
			bus,
			logger,
		)
	}

	if cfg.AnalyticsKafka {
		analytics, err := kafkabus.NewAnalyticsBus(logger)
		if err != nil {
			return nil, err
		}

		controller.analytics = analytics
	}

	return controller, nil
}

// Run starts the sources and blocks on the dispatch loop until the context
// is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.schedules.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if err := c.schedules.Stop(context.Background()); err != nil {
			c.logger.Error("Failed to stop schedule source", "error", err)
		}
	}()

	if c.queue != nil {
		if err := c.queue.Start(ctx); err != nil {
			return err
		}

		defer func() {
			if err := c.queue.Stop(context.Background()); err != nil {
				c.logger.Error("Failed to stop queue source", "error", err)
			}
		}()
	}

	if c.analytics != nil {
		err := c.analytics.Subscribe(ctx, func(ctx context.Context, sample models.EngagementSample) error {
			return c.store.Engagement().Append(ctx, sample)
		})
		if err != nil {
			return err
		}

		defer func() {
			if err := c.analytics.Close(); err != nil {
				c.logger.Error("Failed to close analytics bus", "error", err)
			}
		}()
	}

	return c.dispatcher.Start(ctx)
}
