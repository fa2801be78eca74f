// Package scheduling ranks posting time slots per platform from historical
// engagement samples. The mechanism is a confidence-weighted bucket mean, not
// a trained model.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
)

// ErrInsufficientData is returned when a platform has too few samples to rank
// slots. Callers fall back to their static schedule.
var ErrInsufficientData = errors.New("insufficient engagement data")

// Config holds predictor thresholds.
type Config struct {
	// MinTotalSamples is the minimum sample count per platform before any
	// recommendation is produced.
	MinTotalSamples int

	// ConfidenceThreshold is the per-bucket sample count at which confidence
	// saturates at 1.
	ConfidenceThreshold int
}

// DefaultConfig matches the product's shipped thresholds.
var DefaultConfig = Config{
	MinTotalSamples:     5,
	ConfidenceThreshold: 10,
}

// Predictor computes slot recommendations on demand from the sample store.
type Predictor struct {
	store  persistence.EngagementRepository
	config Config
	logger *slog.Logger
}

func New(store persistence.EngagementRepository, config Config, logger *slog.Logger) *Predictor {
	if config.MinTotalSamples <= 0 {
		config.MinTotalSamples = DefaultConfig.MinTotalSamples
	}

	if config.ConfidenceThreshold <= 0 {
		config.ConfidenceThreshold = DefaultConfig.ConfidenceThreshold
	}

	return &Predictor{
		store:  store,
		config: config,
		logger: logger.With("module", "scheduling"),
	}
}

type bucket struct {
	weekday time.Weekday
	hour    int
	total   float64
	count   int
}

// Recommend returns the topN (weekday, hour) buckets for the platform, ranked
// by confidence-weighted mean engagement. Buckets without samples are never
// returned. Fails with ErrInsufficientData below the configured minimum.
func (p *Predictor) Recommend(ctx context.Context, platform models.Platform, topN int) ([]models.SlotRecommendation, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("topN must be positive, got %d", topN)
	}

	samples, err := p.store.Samples(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples for %s: %w", platform, err)
	}

	if len(samples) < p.config.MinTotalSamples {
		return nil, fmt.Errorf("%w: platform %s has %d samples, need %d",
			ErrInsufficientData, platform, len(samples), p.config.MinTotalSamples)
	}

	buckets := make(map[[2]int]*bucket)

	for _, sample := range samples {
		key := [2]int{int(sample.Weekday), sample.Hour}

		b, ok := buckets[key]
		if !ok {
			b = &bucket{weekday: sample.Weekday, hour: sample.Hour}
			buckets[key] = b
		}

		b.total += sample.Rate
		b.count++
	}

	recommendations := make([]models.SlotRecommendation, 0, len(buckets))

	for _, b := range buckets {
		confidence := float64(b.count) / float64(p.config.ConfidenceThreshold)
		if confidence > 1 {
			confidence = 1
		}

		recommendations = append(recommendations, models.SlotRecommendation{
			Weekday:    b.weekday,
			Hour:       b.hour,
			Score:      b.total / float64(b.count),
			Confidence: confidence,
			Samples:    b.count,
		})
	}

	sort.Slice(recommendations, func(i, j int) bool {
		a, b := recommendations[i], recommendations[j]

		if a.Score != b.Score {
			return a.Score > b.Score
		}

		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}

		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}

		return a.Weekday < b.Weekday
	})

	if len(recommendations) > topN {
		recommendations = recommendations[:topN]
	}

	p.logger.DebugContext(ctx, "Computed slot recommendations",
		"platform", platform,
		"buckets", len(buckets),
		"returned", len(recommendations))

	return recommendations, nil
}
