package collaborator

import (
	"context"
	"fmt"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/google/uuid"
)

// StubGenerator is an in-process generator used for local runs and tests.
// It fabricates content records without touching any model backend.
type StubGenerator struct{}

func (StubGenerator) Generate(_ context.Context, req GenerateRequest) (*Content, error) {
	if !req.Platform.Valid() {
		return nil, fmt.Errorf("unknown platform: %q", req.Platform)
	}

	return &Content{
		ID:          "content-" + uuid.New().String()[:8],
		Platform:    req.Platform,
		ContentType: req.ContentType,
		Caption:     fmt.Sprintf("[stub %s content for %s]", req.ContentType, req.Platform),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// StubPublisher is an in-process publisher used for local runs and tests.
type StubPublisher struct{}

func (StubPublisher) Publish(_ context.Context, platform models.Platform, content *Content) (*PostResult, error) {
	if content == nil {
		return nil, fmt.Errorf("nothing to publish to %s", platform)
	}

	return &PostResult{
		PostID:      "post-" + uuid.New().String()[:8],
		Platform:    platform,
		PublishedAt: time.Now().UTC(),
	}, nil
}
