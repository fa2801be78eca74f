package models

import "time"

// BreakerState is the circuit breaker state for one collaborator.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// HealthStatus is the aggregate system status.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
	HealthUnknown  HealthStatus = "unknown"
)

// WorkflowHealth is the last-run view of a single workflow.
type WorkflowHealth struct {
	Name       string    `json:"name"`
	Priority   Priority  `json:"priority"`
	LastStatus RunStatus `json:"last_status,omitempty"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// HealthSnapshot is the health monitor's read-only view of the system.
type HealthSnapshot struct {
	Status    HealthStatus              `json:"status"`
	Workflows map[string]WorkflowHealth `json:"workflows"`
	Breakers  map[string]BreakerState   `json:"breakers"`
	CheckedAt time.Time                 `json:"checked_at"`
}
