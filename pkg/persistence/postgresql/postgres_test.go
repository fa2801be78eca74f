package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"engagement_samples", "workflow_runs", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("maestro_test"),
			postgres.WithUsername("maestro"),
			postgres.WithPassword("maestro"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'workflow_runs')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "workflow_runs table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'engagement_samples')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "engagement_samples table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestRunLogRepository_AppendAndRuns(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		created := base.Add(time.Duration(i) * time.Minute)
		started := created.Add(time.Second)
		ended := started.Add(30 * time.Second)

		run := &models.WorkflowRun{
			ID:           "run-" + uuid.New().String(),
			WorkflowName: "generate-post",
			Status:       models.RunSucceeded,
			Epoch:        base.Unix() + int64(i),
			TriggerData:  map[string]any{"attempt": float64(i)},
			CreatedAt:    created,
			StartedAt:    &started,
			EndedAt:      &ended,
		}

		err := p.RunLog().Append(ctx, run)
		require.NoError(t, err)
	}

	failed := &models.WorkflowRun{
		ID:           "run-" + uuid.New().String(),
		WorkflowName: "publish-post",
		Status:       models.RunFailed,
		Epoch:        base.Unix(),
		CreatedAt:    base,
		RetryCount:   3,
		LastError:    "publisher unavailable",
	}
	require.NoError(t, p.RunLog().Append(ctx, failed))

	runs, err := p.RunLog().Runs(ctx, "generate-post", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Oldest first, newest last.
	for i, run := range runs {
		assert.Equal(t, "generate-post", run.WorkflowName)
		assert.Equal(t, models.RunSucceeded, run.Status)
		assert.Equal(t, base.Unix()+int64(i), run.Epoch)
		assert.Equal(t, map[string]any{"attempt": float64(i)}, run.TriggerData)
		require.NotNil(t, run.StartedAt)
		require.NotNil(t, run.EndedAt)
	}

	limited, err := p.RunLog().Runs(ctx, "generate-post", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, runs[1].ID, limited[0].ID, "limit should keep the newest runs")
	assert.Equal(t, runs[2].ID, limited[1].ID)

	failures, err := p.RunLog().Runs(ctx, "publish-post", 0)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, models.RunFailed, failures[0].Status)
	assert.Equal(t, 3, failures[0].RetryCount)
	assert.Equal(t, "publisher unavailable", failures[0].LastError)
	assert.Nil(t, failures[0].StartedAt)

	empty, err := p.RunLog().Runs(ctx, "no-such-workflow", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRunLogRepository_RejectsNonTerminalStatus(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	run := &models.WorkflowRun{
		ID:           "run-" + uuid.New().String(),
		WorkflowName: "generate-post",
		Status:       models.RunRunning,
		Epoch:        time.Now().Unix(),
		CreatedAt:    time.Now().UTC(),
	}

	err := p.RunLog().Append(ctx, run)
	require.Error(t, err, "the archive only accepts terminal runs")
}

func TestEngagementRepository_AppendAndSamples(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	base := time.Now().UTC().Truncate(time.Millisecond)

	samples := []models.EngagementSample{
		{Platform: models.PlatformFanvue, Weekday: time.Wednesday, Hour: 20, Rate: 0.18, ObservedAt: base},
		{Platform: models.PlatformFanvue, Weekday: time.Friday, Hour: 18, Rate: 0.12, ObservedAt: base.Add(time.Minute)},
		{Platform: models.PlatformInstagram, Weekday: time.Monday, Hour: 9, Rate: 0.07, ObservedAt: base.Add(2 * time.Minute)},
	}

	for _, sample := range samples {
		require.NoError(t, p.Engagement().Append(ctx, sample))
	}

	fanvue, err := p.Engagement().Samples(ctx, models.PlatformFanvue)
	require.NoError(t, err)
	require.Len(t, fanvue, 2)
	assert.Equal(t, time.Wednesday, fanvue[0].Weekday)
	assert.Equal(t, 20, fanvue[0].Hour)
	assert.InDelta(t, 0.18, fanvue[0].Rate, 1e-9)
	assert.Equal(t, time.Friday, fanvue[1].Weekday)

	instagram, err := p.Engagement().Samples(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	require.Len(t, instagram, 1)

	tiktok, err := p.Engagement().Samples(ctx, models.PlatformTikTok)
	require.NoError(t, err)
	assert.Empty(t, tiktok)
}
