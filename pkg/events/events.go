// Package events defines event types for run lifecycle and engagement
// notifications.
package events

import (
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topics.
const Topic = "maestro.runs"                // Run lifecycle events
const AnalyticsTopic = "maestro.engagement" // Engagement samples from analytics

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunDispatchedEvent EventType = "run.dispatched"
	RunSucceededEvent  EventType = "run.succeeded"
	RunFailedEvent     EventType = "run.failed"
	RunSkippedEvent    EventType = "run.skipped"

	// Engagement ingestion events.
	SampleRecordedEvent EventType = "engagement.sample.recorded"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	WorkflowName string         `json:"workflow_name,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowName string) BaseEvent {
	return BaseEvent{
		ID:           "event-" + uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		WorkflowName: workflowName,
	}
}

// RunDispatched is published when a run acquires a slot and starts executing.
type RunDispatched struct {
	BaseEvent

	RunID string `json:"run_id"`
	Epoch int64  `json:"epoch"`
}

func (e RunDispatched) GetType() EventType { return RunDispatchedEvent }

// RunSucceeded is published when a run reaches the succeeded state.
type RunSucceeded struct {
	BaseEvent

	RunID      string `json:"run_id"`
	Epoch      int64  `json:"epoch"`
	DurationMS int64  `json:"duration_ms"`
	RetryCount int    `json:"retry_count"`
}

func (e RunSucceeded) GetType() EventType { return RunSucceededEvent }

// RunFailed is published when a run fails terminally, retries exhausted.
type RunFailed struct {
	BaseEvent

	RunID      string `json:"run_id"`
	Epoch      int64  `json:"epoch"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error"`
}

func (e RunFailed) GetType() EventType { return RunFailedEvent }

// RunSkipped is published when a run is skipped because a dependency failed.
type RunSkipped struct {
	BaseEvent

	RunID            string `json:"run_id"`
	Epoch            int64  `json:"epoch"`
	FailedDependency string `json:"failed_dependency"`
}

func (e RunSkipped) GetType() EventType { return RunSkippedEvent }

// SampleRecorded is published when an engagement sample is ingested.
type SampleRecorded struct {
	BaseEvent

	Sample models.EngagementSample `json:"sample"`
}

func (e SampleRecorded) GetType() EventType { return SampleRecordedEvent }
