// Package models defines the core domain models for content-automation orchestration.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Priority orders workflows for dispatch. Lower values dispatch first.
type Priority int

const (
	PriorityCritical Priority = iota // Revenue and crisis workflows
	PriorityHigh
	PriorityMedium
	PriorityLow
)

var priorityName = map[Priority]string{
	PriorityCritical: "critical",
	PriorityHigh:     "high",
	PriorityMedium:   "medium",
	PriorityLow:      "low",
}

func (p Priority) String() string {
	if name, ok := priorityName[p]; ok {
		return name
	}

	return fmt.Sprintf("priority(%d)", int(p))
}

func (p Priority) Valid() bool {
	_, ok := priorityName[p]

	return ok
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityName {
		if name == s {
			return p, nil
		}
	}

	return 0, fmt.Errorf("unknown priority: %q", s)
}

// StepKind identifies what a pipeline step does inside a workflow body.
type StepKind string

const (
	StepGenerate StepKind = "generate" // Produce content through the generation collaborator
	StepPublish  StepKind = "publish"  // Push generated content through the publishing collaborator
)

// PipelineStep is one stage of a workflow body. Steps run in declaration order;
// a generate step's content feeds the publish steps that follow it.
type PipelineStep struct {
	Kind        StepKind       `json:"kind"         validate:"required,oneof=generate publish"`
	Platform    Platform       `json:"platform"     validate:"required"`
	ContentType string         `json:"content_type,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// WorkflowDefinition describes a registered workflow. Definitions are immutable
// once registered; the registry rejects duplicate names and cyclic dependency sets.
type WorkflowDefinition struct {
	Name         string         `json:"name"          validate:"required,min=3"`
	Description  string         `json:"description,omitempty"`
	Priority     Priority       `json:"priority"`
	DependsOn    []string       `json:"depends_on,omitempty"`
	Timeout      time.Duration  `json:"timeout"       validate:"required,gt=0"`
	MaxRetries   int            `json:"max_retries"   validate:"gte=0"`
	Idempotent   bool           `json:"idempotent"`
	Schedule     string         `json:"schedule,omitempty"`      // Cron expression, empty for event-only workflows
	InputMapping string         `json:"input_mapping,omitempty"` // JSONata expression applied to trigger data
	Steps        []PipelineStep `json:"steps,omitempty"          validate:"dive"`
	RegisteredAt time.Time      `json:"registered_at,omitempty"`
}

// UnmarshalJSON accepts timeouts in Go duration syntax ("90s", "5m") so
// definition files stay readable.
func (d *WorkflowDefinition) UnmarshalJSON(data []byte) error {
	type alias WorkflowDefinition

	aux := struct {
		Timeout string `json:"timeout"`
		*alias
	}{alias: (*alias)(d)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Timeout != "" {
		parsed, err := time.ParseDuration(aux.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", aux.Timeout, err)
		}

		d.Timeout = parsed
	}

	return nil
}

func (d WorkflowDefinition) MarshalJSON() ([]byte, error) {
	type alias WorkflowDefinition

	return json.Marshal(struct {
		Timeout string `json:"timeout"`
		alias
	}{
		Timeout: d.Timeout.String(),
		alias:   (alias)(d),
	})
}
