// Package config loads workflow definition files and registers their
// contents. Definition files are JSON documents validated against a schema
// before any workflow is registered, so a malformed file aborts loading
// without partial registration.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/registry"
	"github.com/xeipuuv/gojsonschema"
)

// File is the on-disk shape of a workflow definition file.
type File struct {
	Workflows []models.WorkflowDefinition `json:"workflows"`
}

// fileSchema validates the structural shape before field-level validation
// runs during registration.
var fileSchema = map[string]any{
	"type":                 "object",
	"required":             []any{"workflows"},
	"additionalProperties": false,
	"properties": map[string]any{
		"workflows": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"name", "priority", "timeout"},
				"properties": map[string]any{
					"name":        map[string]any{"type": "string", "minLength": 1},
					"description": map[string]any{"type": "string"},
					"priority": map[string]any{
						"type": "string",
						"enum": []any{"critical", "high", "medium", "low"},
					},
					"depends_on": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"timeout":       map[string]any{"type": "string"},
					"max_retries":   map[string]any{"type": "integer", "minimum": 0},
					"idempotent":    map[string]any{"type": "boolean"},
					"schedule":      map[string]any{"type": "string"},
					"input_mapping": map[string]any{"type": "string"},
					"steps": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"kind", "platform"},
						},
					},
				},
			},
		},
	},
}

// Loader parses definition files and registers workflows dependencies-first.
type Loader struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func NewLoader(reg *registry.Registry, logger *slog.Logger) *Loader {
	return &Loader{
		registry: reg,
		logger:   logger.With("module", "config"),
	}
}

// LoadFile reads, validates, and registers every workflow in the file.
// Dependencies are registered before their dependents regardless of file
// order. Any error aborts before the first registration.
func (l *Loader) LoadFile(path string) ([]models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %s: %w", path, err)
	}

	var document map[string]any
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file %s: %w", path, err)
	}

	if err := l.validateSchema(document); err != nil {
		return nil, fmt.Errorf("invalid workflow file %s: %w", path, err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode workflow file %s: %w", path, err)
	}

	ordered, err := orderByDependencies(file.Workflows)
	if err != nil {
		return nil, fmt.Errorf("workflow file %s: %w", path, err)
	}

	for _, definition := range ordered {
		if err := l.registry.Register(definition); err != nil {
			return nil, fmt.Errorf("failed to register workflow %s: %w", definition.Name, err)
		}

		l.logger.Info("Registered workflow",
			"workflow", definition.Name,
			"priority", definition.Priority.String(),
			"depends_on", definition.DependsOn)
	}

	return ordered, nil
}

func (l *Loader) validateSchema(document map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(fileSchema)
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// orderByDependencies sorts definitions so every dependency inside the file
// precedes its dependents. Dependencies on workflows outside the file are
// assumed already registered and left for the registry to verify.
func orderByDependencies(definitions []models.WorkflowDefinition) ([]models.WorkflowDefinition, error) {
	inFile := make(map[string]models.WorkflowDefinition, len(definitions))
	for _, definition := range definitions {
		inFile[definition.Name] = definition
	}

	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(definitions))
	ordered := make([]models.WorkflowDefinition, 0, len(definitions))

	var visit func(name string) error

	visit = func(name string) error {
		definition, ok := inFile[name]
		if !ok {
			return nil
		}

		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("cyclic dependency through %s", name)
		}

		state[name] = visiting

		for _, dep := range definition.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}

		state[name] = done
		ordered = append(ordered, definition)

		return nil
	}

	for _, definition := range definitions {
		if err := visit(definition.Name); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}
