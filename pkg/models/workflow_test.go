package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_ParseAndString(t *testing.T) {
	for _, name := range []string{"critical", "high", "medium", "low"} {
		priority, err := ParsePriority(name)
		require.NoError(t, err)
		assert.Equal(t, name, priority.String())
		assert.True(t, priority.Valid())
	}

	_, err := ParsePriority("urgent")
	assert.Error(t, err)
	assert.False(t, Priority(99).Valid())
}

func TestPriority_Ordering(t *testing.T) {
	assert.Less(t, PriorityCritical, PriorityHigh)
	assert.Less(t, PriorityHigh, PriorityMedium)
	assert.Less(t, PriorityMedium, PriorityLow)
}

func TestWorkflowDefinition_JSONTimeoutSyntax(t *testing.T) {
	raw := `{"name": "daily-post", "priority": "high", "timeout": "90s", "max_retries": 2}`

	var definition WorkflowDefinition
	require.NoError(t, json.Unmarshal([]byte(raw), &definition))

	assert.Equal(t, "daily-post", definition.Name)
	assert.Equal(t, PriorityHigh, definition.Priority)
	assert.Equal(t, 90*time.Second, definition.Timeout)
	assert.Equal(t, 2, definition.MaxRetries)

	encoded, err := json.Marshal(definition)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"timeout":"1m30s"`)
	assert.Contains(t, string(encoded), `"priority":"high"`)
}

func TestWorkflowDefinition_InvalidTimeout(t *testing.T) {
	var definition WorkflowDefinition

	err := json.Unmarshal([]byte(`{"name": "x", "timeout": "soon"}`), &definition)
	assert.Error(t, err)
}

func TestRunStatus_Terminal(t *testing.T) {
	assert.False(t, RunPending.Terminal())
	assert.False(t, RunReady.Terminal())
	assert.False(t, RunRunning.Terminal())
	assert.True(t, RunSucceeded.Terminal())
	assert.True(t, RunFailed.Terminal())
	assert.True(t, RunSkipped.Terminal())
}

func TestPlatform_Valid(t *testing.T) {
	for _, platform := range KnownPlatforms {
		assert.True(t, platform.Valid())
	}

	assert.False(t, Platform("myspace").Valid())
}
