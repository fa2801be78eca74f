package main

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/creatorkit/maestro/pkg/config"
	maestrolog "github.com/creatorkit/maestro/pkg/log"
	"github.com/creatorkit/maestro/pkg/registry"
)

// validateWorkflows loads the file into a throwaway registry so every check
// that would run at controller startup runs here: schema shape, field
// validation, duplicate names, unknown and cyclic dependencies.
func validateWorkflows(path string) error {
	logger := maestrolog.WithModule("validate")

	reg := registry.New(logger)
	loader := config.NewLoader(reg, logger)

	definitions, err := loader.LoadFile(path)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"file":      path,
		"workflows": len(definitions),
	}).Info("Workflow file is valid")

	return nil
}

func listWorkflows(path string) error {
	logger := maestrolog.WithModule("list")

	reg := registry.New(logger)
	loader := config.NewLoader(reg, logger)

	definitions, err := loader.LoadFile(path)
	if err != nil {
		return err
	}

	for _, definition := range definitions {
		deps := "-"
		if len(definition.DependsOn) > 0 {
			deps = strings.Join(definition.DependsOn, ", ")
		}

		fmt.Printf("%-30s %-10s depends_on: %s\n",
			definition.Name, definition.Priority.String(), deps)
	}

	return nil
}
