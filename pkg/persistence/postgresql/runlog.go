package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
)

// RunLogRepository archives terminal runs in the workflow_runs table.
type RunLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRunLogRepository(db *sql.DB, logger *slog.Logger) *RunLogRepository {
	return &RunLogRepository{db: db, logger: logger}
}

func (rr *RunLogRepository) Append(ctx context.Context, run *models.WorkflowRun) error {
	triggerData, err := json.Marshal(run.TriggerData)
	if err != nil {
		return persistence.NewStoreError("AppendRun", run.WorkflowName, err)
	}

	query := `
		INSERT INTO workflow_runs
			(id, workflow_name, status, epoch, trigger_data, created_at, started_at, ended_at, retry_count, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = rr.db.ExecContext(ctx, query,
		run.ID,
		run.WorkflowName,
		string(run.Status),
		run.Epoch,
		triggerData,
		run.CreatedAt,
		nullableTime(run.StartedAt),
		nullableTime(run.EndedAt),
		run.RetryCount,
		nullableString(run.LastError),
	)
	if err != nil {
		return persistence.NewStoreError("AppendRun", run.WorkflowName, err)
	}

	return nil
}

func (rr *RunLogRepository) Runs(ctx context.Context, workflowName string, limit int) ([]*models.WorkflowRun, error) {
	query := `
		SELECT id, workflow_name, status, epoch, trigger_data, created_at, started_at, ended_at, retry_count, last_error
		FROM workflow_runs
		WHERE workflow_name = $1
		ORDER BY created_at DESC
	`

	args := []any{workflowName}

	if limit > 0 {
		query += " LIMIT $2"

		args = append(args, limit)
	}

	rows, err := rr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("Runs", workflowName, err)
	}
	defer rows.Close()

	runs := make([]*models.WorkflowRun, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, persistence.NewStoreError("Runs", workflowName, err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("Runs", workflowName, err)
	}

	// Reverse into oldest-first order, matching the file provider.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}

	return runs, nil
}

func scanRun(rows *sql.Rows) (*models.WorkflowRun, error) {
	var (
		run         models.WorkflowRun
		status      string
		triggerData []byte
		startedAt   sql.NullTime
		endedAt     sql.NullTime
		lastError   sql.NullString
	)

	err := rows.Scan(
		&run.ID,
		&run.WorkflowName,
		&status,
		&run.Epoch,
		&triggerData,
		&run.CreatedAt,
		&startedAt,
		&endedAt,
		&run.RetryCount,
		&lastError,
	)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)

	if len(triggerData) > 0 {
		if err := json.Unmarshal(triggerData, &run.TriggerData); err != nil {
			return nil, err
		}
	}

	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}

	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}

	run.LastError = lastError.String

	return &run, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
