package models

import "time"

// RunStatus is the lifecycle state of one execution attempt.
type RunStatus string

const (
	RunPending   RunStatus = "pending"   // Submitted, dependencies not yet satisfied
	RunReady     RunStatus = "ready"     // Dependencies satisfied, waiting for a slot
	RunRunning   RunStatus = "running"   // Body executing in a worker
	RunSucceeded RunStatus = "succeeded" // Terminal
	RunFailed    RunStatus = "failed"    // Terminal once retries are exhausted
	RunSkipped   RunStatus = "skipped"   // Terminal, a required dependency failed
)

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSucceeded, RunFailed, RunSkipped:
		return true
	case RunPending, RunReady, RunRunning:
		return false
	}

	return false
}

// WorkflowRun is one execution attempt of a registered workflow. The dispatcher
// owns it exclusively until it reaches a terminal status, then archives it to
// the run log.
type WorkflowRun struct {
	ID           string         `json:"id"`
	WorkflowName string         `json:"workflow_name"`
	Status       RunStatus      `json:"status"`
	Epoch        int64          `json:"epoch"` // Trigger epoch the run belongs to
	TriggerData  map[string]any `json:"trigger_data,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
	RetryCount   int            `json:"retry_count"`
	LastError    string         `json:"last_error,omitempty"`
}

// Clone returns a copy safe to hand to callers while the dispatcher keeps
// mutating the original.
func (r *WorkflowRun) Clone() *WorkflowRun {
	clone := *r

	if r.StartedAt != nil {
		started := *r.StartedAt
		clone.StartedAt = &started
	}

	if r.EndedAt != nil {
		ended := *r.EndedAt
		clone.EndedAt = &ended
	}

	if r.TriggerData != nil {
		clone.TriggerData = make(map[string]any, len(r.TriggerData))
		for k, v := range r.TriggerData {
			clone.TriggerData[k] = v
		}
	}

	return &clone
}
