package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/creatorkit/maestro/pkg/cmd"
	"github.com/creatorkit/maestro/pkg/log"
	"github.com/creatorkit/maestro/pkg/otelhelper"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "maestro-controller",
		Usage:                 "Start the Maestro workflow controller",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "controller-id",
				Aliases: []string{"id"},
				Usage:   "Custom controller ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("CONTROLLER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "workflows-file",
				Usage:    "Path to the workflow definition file",
				Required: true,
				Sources:  cli.EnvVars("WORKFLOWS_FILE"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the engagement queue (disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.BoolFlag{
				Name:    "analytics-kafka",
				Usage:   "Consume engagement samples from Kafka",
				Value:   false,
				Sources: cli.EnvVars("ANALYTICS_KAFKA"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent",
				Usage:   "Maximum concurrently running workflows",
				Value:   0,
				Sources: cli.EnvVars("MAX_CONCURRENT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := otelhelper.InitTracer(ctx, "maestro-controller")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			controllerID := command.String("controller-id")
			if controllerID == "" {
				controllerID = fmt.Sprintf("controller-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("maestro-controller").With("controller_id", controllerID)
			logger.Info("Initializing Maestro controller")

			store := cmd.MustPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			controller, err := NewController(runCtx, ControllerConfig{
				WorkflowsFile:  command.String("workflows-file"),
				RedisAddr:      command.String("redis-addr"),
				AnalyticsKafka: command.Bool("analytics-kafka"),
				MaxConcurrent:  command.Int("max-concurrent"),
			}, store, eventBus, logger)
			if err != nil {
				return err
			}

			return controller.Run(runCtx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
