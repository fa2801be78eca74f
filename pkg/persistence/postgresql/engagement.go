package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
)

// EngagementRepository stores engagement samples in the engagement_samples table.
type EngagementRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewEngagementRepository(db *sql.DB, logger *slog.Logger) *EngagementRepository {
	return &EngagementRepository{db: db, logger: logger}
}

func (er *EngagementRepository) Append(ctx context.Context, sample models.EngagementSample) error {
	if sample.Rate < 0 || sample.Rate > 1 || sample.Hour < 0 || sample.Hour > 23 {
		return persistence.NewStoreError("AppendSample", "",
			fmt.Errorf("%w: rate=%v hour=%d", persistence.ErrInvalidSample, sample.Rate, sample.Hour))
	}

	query := `
		INSERT INTO engagement_samples (platform, weekday, hour, rate, observed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := er.db.ExecContext(ctx, query,
		string(sample.Platform),
		int(sample.Weekday),
		sample.Hour,
		sample.Rate,
		sample.ObservedAt,
	)
	if err != nil {
		return persistence.NewStoreError("AppendSample", "", err)
	}

	return nil
}

func (er *EngagementRepository) Samples(ctx context.Context, platform models.Platform) ([]models.EngagementSample, error) {
	query := `
		SELECT platform, weekday, hour, rate, observed_at
		FROM engagement_samples
		WHERE platform = $1
		ORDER BY observed_at
	`

	rows, err := er.db.QueryContext(ctx, query, string(platform))
	if err != nil {
		return nil, persistence.NewStoreError("Samples", "", err)
	}
	defer rows.Close()

	samples := make([]models.EngagementSample, 0)

	for rows.Next() {
		var (
			sample   models.EngagementSample
			platform string
			weekday  int
		)

		if err := rows.Scan(&platform, &weekday, &sample.Hour, &sample.Rate, &sample.ObservedAt); err != nil {
			return nil, persistence.NewStoreError("Samples", "", err)
		}

		sample.Platform = models.Platform(platform)
		sample.Weekday = time.Weekday(weekday)

		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("Samples", "", err)
	}

	return samples, nil
}
