// Package schedule fires workflow requests from cron expressions attached to
// workflow definitions. Every fire uses the scheduled time as the trigger
// epoch, so re-fires within the same slot deduplicate downstream.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/robfig/cron/v3"
)

// Submitter accepts workflow requests. Implemented by the dispatcher.
type Submitter interface {
	SubmitRequest(ctx context.Context, workflowName string, params map[string]any, epoch int64) (string, error)
}

// DefinitionSource lists registered workflow definitions.
type DefinitionSource interface {
	All() []models.WorkflowDefinition
}

const defaultPollInterval = time.Minute

// Source polls registered schedules and submits a request for every due
// fire. Cron expressions are parsed at start so a bad expression aborts
// startup instead of failing silently at fire time.
type Source struct {
	definitions  DefinitionSource
	submitter    Submitter
	logger       *slog.Logger
	pollInterval time.Duration

	mu      sync.Mutex
	next    map[string]time.Time
	crons   map[string]cron.Schedule
	started bool
	done    chan struct{}

	now func() time.Time
}

func NewSource(definitions DefinitionSource, submitter Submitter, logger *slog.Logger) *Source {
	return &Source{
		definitions:  definitions,
		submitter:    submitter,
		logger:       logger.With("module", "schedule-source"),
		pollInterval: defaultPollInterval,
		next:         make(map[string]time.Time),
		crons:        make(map[string]cron.Schedule),
		now:          time.Now,
	}
}

// Start parses every registered schedule and begins polling. A workflow
// without a schedule is ignored.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	for _, definition := range s.definitions.All() {
		if definition.Schedule == "" {
			continue
		}

		parsed, err := cron.ParseStandard(definition.Schedule)
		if err != nil {
			return fmt.Errorf("invalid schedule %q for workflow %s: %w",
				definition.Schedule, definition.Name, err)
		}

		s.crons[definition.Name] = parsed
		s.next[definition.Name] = parsed.Next(s.now())

		s.logger.Info("Registered schedule",
			"workflow", definition.Name,
			"cron_expression", definition.Schedule,
			"next_fire", s.next[definition.Name])
	}

	s.done = make(chan struct{})
	s.started = true

	go s.poll(ctx)

	s.logger.Info("Schedule source started", "schedules", len(s.crons))

	return nil
}

// Stop shuts the poller down.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.done)
	s.started = false
	s.logger.InfoContext(ctx, "Schedule source stopped")

	return nil
}

func (s *Source) poll(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fireDue(ctx)
		}
	}
}

// fireDue submits a request for every schedule whose fire time has passed,
// then advances it. The scheduled time, not the observation time, becomes
// the epoch.
func (s *Source) fireDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()

	type firing struct {
		workflow string
		at       time.Time
	}

	var due []firing

	for workflow, at := range s.next {
		if at.After(now) {
			continue
		}

		due = append(due, firing{workflow: workflow, at: at})
		s.next[workflow] = s.crons[workflow].Next(now)
	}

	s.mu.Unlock()

	for _, fire := range due {
		runID, err := s.submitter.SubmitRequest(ctx, fire.workflow, nil, fire.at.Unix())
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to submit scheduled workflow",
				"workflow", fire.workflow, "error", err)

			continue
		}

		s.logger.InfoContext(ctx, "Fired scheduled workflow",
			"workflow", fire.workflow,
			"run_id", runID,
			"epoch", fire.at.Unix())
	}
}
