// Package file provides file-based persistence for local and test runs. The
// run log and engagement samples are stored as JSON lines under a root
// directory.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/creatorkit/maestro/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root       string
	runLog     *RunLogRepository
	engagement *EngagementRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:       cleanRoot,
		runLog:     NewRunLogRepository(cleanRoot),
		engagement: NewEngagementRepository(cleanRoot),
	}
}

func (fp *Persistence) RunLog() persistence.RunLogRepository {
	return fp.runLog
}

func (fp *Persistence) Engagement() persistence.EngagementRepository {
	return fp.engagement
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
