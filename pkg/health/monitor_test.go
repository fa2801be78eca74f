package health

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorkflows map[string]models.WorkflowHealth

func (f fakeWorkflows) WorkflowHealth() map[string]models.WorkflowHealth { return f }

type fakeBreakers map[string]models.BreakerState

func (f fakeBreakers) States() map[string]models.BreakerState { return f }

type fakeDefinitions []models.WorkflowDefinition

func (f fakeDefinitions) All() []models.WorkflowDefinition { return f }

type fakeProber struct {
	err error
}

func (f *fakeProber) HealthCheck(ctx context.Context) error { return f.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestMonitor(workflows fakeWorkflows, breakers fakeBreakers, definitions fakeDefinitions, prober *fakeProber) *Monitor {
	return NewMonitor(workflows, breakers, definitions, prober, testLogger())
}

func criticalPublisher() fakeDefinitions {
	return fakeDefinitions{
		{
			Name:     "revenue-post",
			Priority: models.PriorityCritical,
			Timeout:  time.Minute,
			Steps: []models.PipelineStep{
				{Kind: models.StepPublish, Platform: models.PlatformFanvue},
			},
		},
	}
}

func TestMonitor_Healthy(t *testing.T) {
	monitor := newTestMonitor(
		fakeWorkflows{"daily-post": {Name: "daily-post", LastStatus: models.RunSucceeded}},
		fakeBreakers{"generator:fanvue": models.BreakerClosed},
		nil,
		&fakeProber{},
	)

	snapshot := monitor.Snapshot(context.Background())
	assert.Equal(t, models.HealthHealthy, snapshot.Status)
	assert.False(t, snapshot.CheckedAt.IsZero())
	assert.Contains(t, snapshot.Workflows, "daily-post")
}

func TestMonitor_DegradedOnOpenBreaker(t *testing.T) {
	monitor := newTestMonitor(
		fakeWorkflows{},
		fakeBreakers{"generator:twitter": models.BreakerOpen},
		nil,
		&fakeProber{},
	)

	snapshot := monitor.Snapshot(context.Background())
	assert.Equal(t, models.HealthDegraded, snapshot.Status)
}

func TestMonitor_DegradedOnHalfOpenBreaker(t *testing.T) {
	monitor := newTestMonitor(
		fakeWorkflows{},
		fakeBreakers{"generator:twitter": models.BreakerHalfOpen},
		nil,
		&fakeProber{},
	)

	snapshot := monitor.Snapshot(context.Background())
	assert.Equal(t, models.HealthDegraded, snapshot.Status)
}

func TestMonitor_DegradedOnNonCriticalFailure(t *testing.T) {
	monitor := newTestMonitor(
		fakeWorkflows{"weekly-report": {
			Name:       "weekly-report",
			Priority:   models.PriorityLow,
			LastStatus: models.RunFailed,
		}},
		fakeBreakers{},
		nil,
		&fakeProber{},
	)

	snapshot := monitor.Snapshot(context.Background())
	assert.Equal(t, models.HealthDegraded, snapshot.Status)
}

func TestMonitor_CriticalOnCriticalWorkflowFailure(t *testing.T) {
	monitor := newTestMonitor(
		fakeWorkflows{"revenue-post": {
			Name:       "revenue-post",
			Priority:   models.PriorityCritical,
			LastStatus: models.RunFailed,
		}},
		fakeBreakers{},
		nil,
		&fakeProber{},
	)

	snapshot := monitor.Snapshot(context.Background())
	assert.Equal(t, models.HealthCritical, snapshot.Status)
}

func TestMonitor_CriticalOnCriticalPathBreakerOpen(t *testing.T) {
	monitor := newTestMonitor(
		fakeWorkflows{},
		fakeBreakers{"publisher:fanvue": models.BreakerOpen},
		criticalPublisher(),
		&fakeProber{},
	)

	snapshot := monitor.Snapshot(context.Background())
	assert.Equal(t, models.HealthCritical, snapshot.Status)
}

func TestMonitor_OpenBreakerOffCriticalPathIsDegraded(t *testing.T) {
	monitor := newTestMonitor(
		fakeWorkflows{},
		fakeBreakers{"publisher:tiktok": models.BreakerOpen},
		criticalPublisher(),
		&fakeProber{},
	)

	snapshot := monitor.Snapshot(context.Background())
	assert.Equal(t, models.HealthDegraded, snapshot.Status)
}

func TestMonitor_UnknownOnProbeFailure(t *testing.T) {
	monitor := newTestMonitor(
		fakeWorkflows{"daily-post": {Name: "daily-post", LastStatus: models.RunSucceeded}},
		fakeBreakers{},
		nil,
		&fakeProber{err: errors.New("connection refused")},
	)

	snapshot := monitor.Snapshot(context.Background())
	require.Equal(t, models.HealthUnknown, snapshot.Status)
	assert.Contains(t, snapshot.Workflows, "daily-post",
		"the snapshot still reports what it could observe")
}
