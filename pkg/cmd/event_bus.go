// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/creatorkit/maestro/pkg/channels/gochannel"
	"github.com/creatorkit/maestro/pkg/channels/kafka"
	"github.com/creatorkit/maestro/pkg/eventbus"
)

// NewEventBus creates an event bus for the given provider. The gochannel
// provider keeps everything in-process and is the single-binary default;
// kafka fans events out to external consumers.
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "maestro")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create gochannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
