package schedule

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	epochs map[string][]int64
}

func (f *fakeSubmitter) SubmitRequest(ctx context.Context, workflowName string, params map[string]any, epoch int64) (string, error) {
	if f.epochs == nil {
		f.epochs = make(map[string][]int64)
	}

	f.epochs[workflowName] = append(f.epochs[workflowName], epoch)

	return "run-1", nil
}

type fakeDefinitions []models.WorkflowDefinition

func (f fakeDefinitions) All() []models.WorkflowDefinition { return f }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestSource_Start_RejectsInvalidCron(t *testing.T) {
	definitions := fakeDefinitions{
		{Name: "bad-cron", Schedule: "every wednesday", Timeout: time.Minute},
	}

	source := NewSource(definitions, &fakeSubmitter{}, testLogger())

	err := source.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad-cron")
}

func TestSource_FireDue(t *testing.T) {
	// Wednesday 2026-03-04.
	current := time.Date(2026, 3, 4, 19, 59, 0, 0, time.UTC)

	definitions := fakeDefinitions{
		{Name: "wednesday-post", Schedule: "0 20 * * 3", Timeout: time.Minute},
		{Name: "event-only", Timeout: time.Minute},
	}

	submitter := &fakeSubmitter{}
	source := NewSource(definitions, submitter, testLogger())
	source.now = func() time.Time { return current }

	require.NoError(t, source.Start(context.Background()))

	t.Cleanup(func() {
		_ = source.Stop(context.Background())
	})

	// Not due yet.
	source.fireDue(context.Background())
	assert.Empty(t, submitter.epochs)

	// Past the fire time: exactly one submission with the scheduled time as
	// the epoch.
	current = time.Date(2026, 3, 4, 20, 0, 30, 0, time.UTC)
	source.fireDue(context.Background())

	fireTime := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	require.Len(t, submitter.epochs["wednesday-post"], 1)
	assert.Equal(t, fireTime.Unix(), submitter.epochs["wednesday-post"][0])

	// Re-checking within the same slot does not fire again.
	source.fireDue(context.Background())
	assert.Len(t, submitter.epochs["wednesday-post"], 1)

	assert.NotContains(t, submitter.epochs, "event-only",
		"workflows without a schedule never fire")
}

func TestSource_FireDue_AdvancesToNextSlot(t *testing.T) {
	current := time.Date(2026, 3, 4, 20, 0, 30, 0, time.UTC)

	definitions := fakeDefinitions{
		{Name: "hourly-post", Schedule: "0 * * * *", Timeout: time.Minute},
	}

	submitter := &fakeSubmitter{}
	source := NewSource(definitions, submitter, testLogger())
	source.now = func() time.Time { return current }

	require.NoError(t, source.Start(context.Background()))

	t.Cleanup(func() {
		_ = source.Stop(context.Background())
	})

	current = time.Date(2026, 3, 4, 21, 0, 30, 0, time.UTC)
	source.fireDue(context.Background())
	require.Len(t, submitter.epochs["hourly-post"], 1)

	current = time.Date(2026, 3, 4, 22, 0, 30, 0, time.UTC)
	source.fireDue(context.Background())
	require.Len(t, submitter.epochs["hourly-post"], 2)

	assert.Equal(t,
		time.Date(2026, 3, 4, 21, 0, 0, 0, time.UTC).Unix(),
		submitter.epochs["hourly-post"][0])
	assert.Equal(t,
		time.Date(2026, 3, 4, 22, 0, 0, 0, time.UTC).Unix(),
		submitter.epochs["hourly-post"][1])
}
