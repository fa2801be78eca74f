// Package main provides the Maestro API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/creatorkit/maestro/pkg/breaker"
	"github.com/creatorkit/maestro/pkg/collaborator"
	"github.com/creatorkit/maestro/pkg/config"
	"github.com/creatorkit/maestro/pkg/content"
	"github.com/creatorkit/maestro/pkg/dispatcher"
	"github.com/creatorkit/maestro/pkg/eventbus"
	"github.com/creatorkit/maestro/pkg/health"
	"github.com/creatorkit/maestro/pkg/persistence"
	"github.com/creatorkit/maestro/pkg/registry"
	"github.com/creatorkit/maestro/pkg/scheduling"
	"github.com/creatorkit/maestro/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// API hosts the HTTP surface and the dispatcher it fronts.
type API struct {
	logger     *slog.Logger
	store      persistence.Persistence
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	monitor    *health.Monitor
	predictor  *scheduling.Predictor
	eventBus   eventbus.EventBus
	validate   *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	workflowsFile string,
) (*API, error) {
	reg := registry.New(logger)

	loader := config.NewLoader(reg, logger)
	if _, err := loader.LoadFile(workflowsFile); err != nil {
		return nil, err
	}

	breakers := breaker.NewRegistry(breaker.DefaultConfig, logger)
	pipeline := content.NewPipeline(
		collaborator.StubGenerator{},
		collaborator.StubPublisher{},
		breakers,
		logger,
	)

	disp := dispatcher.New(dispatcher.Config{}, reg, breakers, store, eventBus, logger)
	for _, definition := range reg.All() {
		disp.RegisterBody(definition.Name, pipeline.Body(definition))
	}

	return &API{
		logger:     logger,
		store:      store,
		registry:   reg,
		dispatcher: disp,
		monitor:    health.NewMonitor(disp, breakers, reg, store, logger),
		predictor:  scheduling.New(store.Engagement(), scheduling.Config{}, logger),
		eventBus:   eventBus,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.dispatcher,
		a.monitor,
		a.predictor,
		a.store.Engagement(),
		a.registry,
		a.eventBus,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Maestro API")
	})

	v1 := app.Group("/v1")
	v1.Get("/workflows", handlers.GetWorkflows)
	v1.Get("/workflows/:name", handlers.GetWorkflow)
	v1.Post("/runs", handlers.SubmitRun)
	v1.Get("/runs/:id", handlers.GetRun)
	v1.Get("/health", handlers.HealthCheck)
	v1.Get("/platforms/:platform/recommendations", handlers.GetRecommendations)
	v1.Post("/platforms/:platform/engagement", handlers.RecordEngagement)
	v1.Post("/hooks/:workflow", handlers.TriggerWebhook)

	return app
}

// Start runs the dispatch loop in the background and serves HTTP until the
// listener fails or the context ends.
func (a *API) Start(ctx context.Context, port int) error {
	go func() {
		if err := a.dispatcher.Start(ctx); err != nil {
			a.logger.ErrorContext(ctx, "Dispatcher stopped with error", "error", err)
		}
	}()

	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shutdown HTTP server", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(port))
}
