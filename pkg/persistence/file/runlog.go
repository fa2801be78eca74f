package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
)

// RunLogRepository appends terminal runs to a JSON-lines file, one file per
// workflow name.
type RunLogRepository struct {
	root string
	mu   sync.Mutex
}

func NewRunLogRepository(root string) *RunLogRepository {
	return &RunLogRepository{root: root}
}

func (rr *RunLogRepository) dir() string {
	return filepath.Join(rr.root, "runs")
}

func (rr *RunLogRepository) path(workflowName string) string {
	return filepath.Join(rr.dir(), workflowName+".jsonl")
}

// Append archives a terminal run. The log is append-only.
func (rr *RunLogRepository) Append(_ context.Context, run *models.WorkflowRun) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if err := os.MkdirAll(rr.dir(), 0o755); err != nil {
		return persistence.NewStoreError("AppendRun", run.WorkflowName, err)
	}

	payload, err := json.Marshal(run)
	if err != nil {
		return persistence.NewStoreError("AppendRun", run.WorkflowName, err)
	}

	f, err := os.OpenFile(rr.path(run.WorkflowName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return persistence.NewStoreError("AppendRun", run.WorkflowName, err)
	}
	defer f.Close()

	if _, err := f.Write(append(payload, '\n')); err != nil {
		return persistence.NewStoreError("AppendRun", run.WorkflowName, err)
	}

	return nil
}

// Runs returns up to limit archived runs for a workflow, newest last. A limit
// of zero or less returns all runs.
func (rr *RunLogRepository) Runs(_ context.Context, workflowName string, limit int) ([]*models.WorkflowRun, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	f, err := os.Open(rr.path(workflowName))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.WorkflowRun{}, nil
		}

		return nil, persistence.NewStoreError("Runs", workflowName, err)
	}
	defer f.Close()

	runs := make([]*models.WorkflowRun, 0)
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		var run models.WorkflowRun
		if err := json.Unmarshal(scanner.Bytes(), &run); err != nil {
			return nil, persistence.NewStoreError("Runs", workflowName,
				fmt.Errorf("corrupt run log entry: %w", err))
		}

		runs = append(runs, &run)
	}

	if err := scanner.Err(); err != nil {
		return nil, persistence.NewStoreError("Runs", workflowName, err)
	}

	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}

	return runs, nil
}
