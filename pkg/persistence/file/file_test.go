package file

import (
	"context"
	"testing"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terminalRun(workflow, id string, status models.RunStatus) *models.WorkflowRun {
	started := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	ended := started.Add(42 * time.Second)

	return &models.WorkflowRun{
		ID:           id,
		WorkflowName: workflow,
		Status:       status,
		Epoch:        started.Unix(),
		CreatedAt:    started,
		StartedAt:    &started,
		EndedAt:      &ended,
	}
}

func TestRunLog_AppendAndRead(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.RunLog().Append(ctx, terminalRun("daily-post", "run-1", models.RunSucceeded)))
	require.NoError(t, store.RunLog().Append(ctx, terminalRun("daily-post", "run-2", models.RunFailed)))
	require.NoError(t, store.RunLog().Append(ctx, terminalRun("other-wf", "run-3", models.RunSucceeded)))

	runs, err := store.RunLog().Runs(ctx, "daily-post", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
	assert.Equal(t, models.RunFailed, runs[1].Status)
	require.NotNil(t, runs[0].EndedAt)
	assert.Equal(t, 42*time.Second, runs[0].EndedAt.Sub(*runs[0].StartedAt))
}

func TestRunLog_Limit(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run := terminalRun("daily-post", "run-"+string(rune('a'+i)), models.RunSucceeded)
		require.NoError(t, store.RunLog().Append(ctx, run))
	}

	runs, err := store.RunLog().Runs(ctx, "daily-post", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-d", runs[0].ID, "the limit keeps the newest entries")
	assert.Equal(t, "run-e", runs[1].ID)
}

func TestRunLog_UnknownWorkflowIsEmpty(t *testing.T) {
	store := NewPersistence(t.TempDir())

	runs, err := store.RunLog().Runs(context.Background(), "never-ran", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestEngagement_AppendAndRead(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	sample := models.EngagementSample{
		Platform:   models.PlatformFanvue,
		Weekday:    time.Wednesday,
		Hour:       20,
		Rate:       0.18,
		ObservedAt: time.Date(2026, 3, 4, 20, 30, 0, 0, time.UTC),
	}

	require.NoError(t, store.Engagement().Append(ctx, sample))

	samples, err := store.Engagement().Samples(ctx, models.PlatformFanvue)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, sample, samples[0])

	other, err := store.Engagement().Samples(ctx, models.PlatformTikTok)
	require.NoError(t, err)
	assert.Empty(t, other, "samples are partitioned by platform")
}

func TestEngagement_RejectsInvalidSamples(t *testing.T) {
	store := NewPersistence(t.TempDir())
	ctx := context.Background()

	err := store.Engagement().Append(ctx, models.EngagementSample{
		Platform: models.PlatformFanvue,
		Hour:     20,
		Rate:     1.3,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrInvalidSample)

	err = store.Engagement().Append(ctx, models.EngagementSample{
		Platform: models.PlatformFanvue,
		Hour:     24,
		Rate:     0.5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrInvalidSample)
}

func TestPersistence_HealthCheck(t *testing.T) {
	dir := t.TempDir()

	store := NewPersistence(dir)
	assert.NoError(t, store.HealthCheck(context.Background()))

	missing := NewPersistence(dir + "/does-not-exist")
	assert.Error(t, missing.HealthCheck(context.Background()))
}

func TestPersistence_FileURLPrefix(t *testing.T) {
	dir := t.TempDir()

	store := NewPersistence("file://" + dir)
	require.NoError(t, store.RunLog().Append(context.Background(),
		terminalRun("daily-post", "run-1", models.RunSucceeded)))

	runs, err := store.RunLog().Runs(context.Background(), "daily-post", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
