package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngagementRepo struct {
	samples map[models.Platform][]models.EngagementSample
	err     error
}

func (f *fakeEngagementRepo) Append(ctx context.Context, sample models.EngagementSample) error {
	if f.samples == nil {
		f.samples = make(map[models.Platform][]models.EngagementSample)
	}

	f.samples[sample.Platform] = append(f.samples[sample.Platform], sample)

	return nil
}

func (f *fakeEngagementRepo) Samples(ctx context.Context, platform models.Platform) ([]models.EngagementSample, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.samples[platform], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func fill(repo *fakeEngagementRepo, platform models.Platform, weekday time.Weekday, hour int, rate float64, n int) {
	for i := 0; i < n; i++ {
		_ = repo.Append(context.Background(), models.EngagementSample{
			Platform: platform,
			Weekday:  weekday,
			Hour:     hour,
			Rate:     rate,
		})
	}
}

func TestPredictor_Recommend(t *testing.T) {
	repo := &fakeEngagementRepo{}
	fill(repo, models.PlatformFanvue, time.Wednesday, 20, 0.18, 5)
	fill(repo, models.PlatformFanvue, time.Friday, 18, 0.12, 5)

	predictor := New(repo, Config{MinTotalSamples: 5, ConfidenceThreshold: 10}, testLogger())

	recommendations, err := predictor.Recommend(context.Background(), models.PlatformFanvue, 3)
	require.NoError(t, err)
	require.Len(t, recommendations, 2)

	best := recommendations[0]
	assert.Equal(t, time.Wednesday, best.Weekday)
	assert.Equal(t, 20, best.Hour)
	assert.InDelta(t, 0.18, best.Score, 1e-9)
	assert.InDelta(t, 0.5, best.Confidence, 1e-9, "5 of 10 samples gives confidence 0.5")
	assert.Equal(t, 5, best.Samples)

	second := recommendations[1]
	assert.Equal(t, time.Friday, second.Weekday)
	assert.Equal(t, 18, second.Hour)
	assert.InDelta(t, 0.12, second.Score, 1e-9)
}

func TestPredictor_Recommend_InsufficientData(t *testing.T) {
	repo := &fakeEngagementRepo{}
	fill(repo, models.PlatformInstagram, time.Monday, 9, 0.3, 4)

	predictor := New(repo, Config{MinTotalSamples: 5, ConfidenceThreshold: 10}, testLogger())

	_, err := predictor.Recommend(context.Background(), models.PlatformInstagram, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// Other platforms' samples never count toward this platform.
	fill(repo, models.PlatformTwitter, time.Monday, 9, 0.3, 50)

	_, err = predictor.Recommend(context.Background(), models.PlatformInstagram, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPredictor_Recommend_TopNBound(t *testing.T) {
	repo := &fakeEngagementRepo{}

	for hour := 0; hour < 10; hour++ {
		fill(repo, models.PlatformTikTok, time.Saturday, hour, float64(hour)/10, 2)
	}

	predictor := New(repo, Config{}, testLogger())

	recommendations, err := predictor.Recommend(context.Background(), models.PlatformTikTok, 3)
	require.NoError(t, err)
	assert.Len(t, recommendations, 3)

	for i := 1; i < len(recommendations); i++ {
		assert.GreaterOrEqual(t, recommendations[i-1].Score, recommendations[i].Score,
			"scores must be non-increasing")
	}

	for _, rec := range recommendations {
		assert.Positive(t, rec.Samples, "empty buckets are never recommended")
	}
}

func TestPredictor_Recommend_ConfidenceSaturates(t *testing.T) {
	repo := &fakeEngagementRepo{}
	fill(repo, models.PlatformLoyalFans, time.Sunday, 21, 0.4, 25)

	predictor := New(repo, Config{MinTotalSamples: 5, ConfidenceThreshold: 10}, testLogger())

	recommendations, err := predictor.Recommend(context.Background(), models.PlatformLoyalFans, 1)
	require.NoError(t, err)
	require.Len(t, recommendations, 1)
	assert.InDelta(t, 1.0, recommendations[0].Confidence, 1e-9)
}

func TestPredictor_Recommend_InvalidTopN(t *testing.T) {
	predictor := New(&fakeEngagementRepo{}, Config{}, testLogger())

	_, err := predictor.Recommend(context.Background(), models.PlatformFanvue, 0)
	assert.Error(t, err)
}

func TestPredictor_Recommend_StoreError(t *testing.T) {
	repo := &fakeEngagementRepo{err: errors.New("backend unavailable")}
	predictor := New(repo, Config{}, testLogger())

	_, err := predictor.Recommend(context.Background(), models.PlatformFanvue, 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientData)
}
