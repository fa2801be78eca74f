package main

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "maestro",
		Usage:                 "Inspect and validate workflow definitions",
		Version:               "0.1.0",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:    "workflows",
				Aliases: []string{"w"},
				Usage:   "Manage workflow definition files",
				Commands: []*cli.Command{
					{
						Name:    "validate",
						Aliases: []string{"v"},
						Usage:   "Validate a workflow definition file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "file",
								Aliases:  []string{"f"},
								Usage:    "Path to the workflow definition file",
								Required: true,
							},
						},
						Action: func(ctx context.Context, command *cli.Command) error {
							return validateWorkflows(command.String("file"))
						},
					},
					{
						Name:    "list",
						Aliases: []string{"l"},
						Usage:   "List workflows in a definition file in dependency order",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "file",
								Aliases:  []string{"f"},
								Usage:    "Path to the workflow definition file",
								Required: true,
							},
						},
						Action: func(ctx context.Context, command *cli.Command) error {
							return listWorkflows(command.String("file"))
						},
					},
				},
			},
			{
				Name:    "recommend",
				Aliases: []string{"r"},
				Usage:   "Rank posting slots for a platform from stored engagement",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "Database connection URL for persistence",
						Required: true,
						Sources:  cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{
						Name:     "platform",
						Aliases:  []string{"p"},
						Usage:    "Platform to rank slots for",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top",
						Usage: "Number of slots to show",
						Value: 3,
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return recommendSlots(ctx,
						command.String("database-url"),
						command.String("platform"),
						command.Int("top"))
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
