// Package collaborator defines the opaque external capabilities the
// orchestrator invokes: content generation and platform publishing. The core
// never implements these itself; it calls them through circuit breakers and
// records the outcome.
package collaborator

import (
	"context"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
)

// GenerateRequest carries everything a generation backend needs.
type GenerateRequest struct {
	Platform    models.Platform `json:"platform"`
	ContentType string          `json:"content_type"`
	Params      map[string]any  `json:"params,omitempty"`
}

// Content is the opaque result of a generation call.
type Content struct {
	ID          string          `json:"id"`
	Platform    models.Platform `json:"platform"`
	ContentType string          `json:"content_type"`
	Caption     string          `json:"caption,omitempty"`
	MediaRef    string          `json:"media_ref,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// PostResult is the opaque result of a publish call.
type PostResult struct {
	PostID      string          `json:"post_id"`
	Platform    models.Platform `json:"platform"`
	PublishedAt time.Time       `json:"published_at"`
}

// Generator produces content for a platform.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Content, error)
}

// Publisher pushes content to a platform.
type Publisher interface {
	Publish(ctx context.Context, platform models.Platform, content *Content) (*PostResult, error)
}
