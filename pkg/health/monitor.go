// Package health aggregates dispatcher and circuit breaker state into a
// read-only system health report.
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/creatorkit/maestro/pkg/content"
	"github.com/creatorkit/maestro/pkg/models"
)

// WorkflowSource exposes the per-workflow last-run view. Implemented by the
// dispatcher.
type WorkflowSource interface {
	WorkflowHealth() map[string]models.WorkflowHealth
}

// BreakerSource exposes current breaker states. Implemented by the breaker
// registry.
type BreakerSource interface {
	States() map[string]models.BreakerState
}

// StoreProber checks that the persistence backend is reachable.
type StoreProber interface {
	HealthCheck(ctx context.Context) error
}

// DefinitionSource resolves registered workflow definitions, used to find
// which collaborators sit on the critical path.
type DefinitionSource interface {
	All() []models.WorkflowDefinition
}

// Monitor computes health snapshots. It is read-only: it never mutates
// dispatcher or breaker state.
type Monitor struct {
	workflows   WorkflowSource
	breakers    BreakerSource
	definitions DefinitionSource
	store       StoreProber
	logger      *slog.Logger

	now func() time.Time
}

func NewMonitor(
	workflows WorkflowSource,
	breakers BreakerSource,
	definitions DefinitionSource,
	store StoreProber,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		workflows:   workflows,
		breakers:    breakers,
		definitions: definitions,
		store:       store,
		logger:      logger.With("module", "health"),
		now:         time.Now,
	}
}

// Snapshot returns the current system health. It never fails: when the
// persistence probe errors the snapshot degrades to an unknown status instead
// of returning the error.
func (m *Monitor) Snapshot(ctx context.Context) models.HealthSnapshot {
	snapshot := models.HealthSnapshot{
		Workflows: m.workflows.WorkflowHealth(),
		Breakers:  m.breakers.States(),
		CheckedAt: m.now(),
	}

	if m.store != nil {
		if err := m.store.HealthCheck(ctx); err != nil {
			m.logger.WarnContext(ctx, "Persistence probe failed", "error", err)

			snapshot.Status = models.HealthUnknown

			return snapshot
		}
	}

	snapshot.Status = m.overallStatus(snapshot)

	return snapshot
}

func (m *Monitor) overallStatus(snapshot models.HealthSnapshot) models.HealthStatus {
	critical := m.criticalBreakers()

	degraded := false

	for name, state := range snapshot.Breakers {
		if state == models.BreakerClosed {
			continue
		}

		if state == models.BreakerOpen && critical[name] {
			return models.HealthCritical
		}

		degraded = true
	}

	for _, workflow := range snapshot.Workflows {
		if workflow.LastStatus != models.RunFailed {
			continue
		}

		if workflow.Priority == models.PriorityCritical {
			return models.HealthCritical
		}

		degraded = true
	}

	if degraded {
		return models.HealthDegraded
	}

	return models.HealthHealthy
}

// criticalBreakers names every collaborator breaker used by a
// Critical-priority workflow.
func (m *Monitor) criticalBreakers() map[string]bool {
	names := make(map[string]bool)

	for _, definition := range m.definitions.All() {
		if definition.Priority != models.PriorityCritical {
			continue
		}

		for _, step := range definition.Steps {
			switch step.Kind {
			case models.StepGenerate:
				names[content.GeneratorBreakerName(step.Platform)] = true
			case models.StepPublish:
				names[content.PublisherBreakerName(step.Platform)] = true
			}
		}
	}

	return names
}
