package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/creatorkit/maestro/pkg/persistence"
	"github.com/creatorkit/maestro/pkg/persistence/file"
	"github.com/creatorkit/maestro/pkg/persistence/postgresql"
)

// NewPersistence selects a persistence backend from the database URL scheme.
// Unrecognized schemes fall back to file storage rooted at the URL path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}

// MustPersistence panics on backend initialization failure. Intended for
// binary startup where there is nothing to do but exit.
func MustPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	store, err := NewPersistence(ctx, logger, databaseURL)
	if err != nil {
		panic(fmt.Errorf("failed to initialize persistence: %w", err))
	}

	return store
}
