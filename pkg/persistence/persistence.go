// Package persistence provides the storage abstraction for the orchestrator's
// append-only run log and engagement sample set.
package persistence

import (
	"context"

	"github.com/creatorkit/maestro/pkg/models"
)

// RunLogRepository is the append-only archive of terminal workflow runs.
type RunLogRepository interface {
	Append(ctx context.Context, run *models.WorkflowRun) error
	Runs(ctx context.Context, workflowName string, limit int) ([]*models.WorkflowRun, error)
}

// EngagementRepository stores observed engagement samples. Appends never block
// readers; readers may see a slightly stale but internally consistent set.
type EngagementRepository interface {
	Append(ctx context.Context, sample models.EngagementSample) error
	Samples(ctx context.Context, platform models.Platform) ([]models.EngagementSample, error)
}

// Persistence is the storage provider contract.
type Persistence interface {
	RunLog() RunLogRepository
	Engagement() EngagementRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
