package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
)

// EngagementRepository appends samples to one JSON-lines file per platform.
// Appends hold a write lock; readers load a full snapshot copy.
type EngagementRepository struct {
	root string
	mu   sync.RWMutex
}

func NewEngagementRepository(root string) *EngagementRepository {
	return &EngagementRepository{root: root}
}

func (er *EngagementRepository) dir() string {
	return filepath.Join(er.root, "engagement")
}

func (er *EngagementRepository) path(platform models.Platform) string {
	return filepath.Join(er.dir(), string(platform)+".jsonl")
}

func (er *EngagementRepository) Append(_ context.Context, sample models.EngagementSample) error {
	if sample.Rate < 0 || sample.Rate > 1 || sample.Hour < 0 || sample.Hour > 23 {
		return persistence.NewStoreError("AppendSample", "",
			fmt.Errorf("%w: rate=%v hour=%d", persistence.ErrInvalidSample, sample.Rate, sample.Hour))
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	if err := os.MkdirAll(er.dir(), 0o755); err != nil {
		return persistence.NewStoreError("AppendSample", "", err)
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return persistence.NewStoreError("AppendSample", "", err)
	}

	f, err := os.OpenFile(er.path(sample.Platform), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return persistence.NewStoreError("AppendSample", "", err)
	}
	defer f.Close()

	if _, err := f.Write(append(payload, '\n')); err != nil {
		return persistence.NewStoreError("AppendSample", "", err)
	}

	return nil
}

// Samples returns a snapshot copy of every recorded sample for the platform.
func (er *EngagementRepository) Samples(_ context.Context, platform models.Platform) ([]models.EngagementSample, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	f, err := os.Open(er.path(platform))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.EngagementSample{}, nil
		}

		return nil, persistence.NewStoreError("Samples", "", err)
	}
	defer f.Close()

	samples := make([]models.EngagementSample, 0)
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		var sample models.EngagementSample
		if err := json.Unmarshal(scanner.Bytes(), &sample); err != nil {
			return nil, persistence.NewStoreError("Samples", "",
				fmt.Errorf("corrupt sample entry: %w", err))
		}

		samples = append(samples, sample)
	}

	if err := scanner.Err(); err != nil {
		return nil, persistence.NewStoreError("Samples", "", err)
	}

	return samples, nil
}
