package services

import (
	"context"

	"missiondeck/internal/domain/models"
)

// GenerateRequest carries everything a generator needs to produce one plan.
// Seed varies across retry attempts so a retried slot can steer the model
// away from content it already produced.
type GenerateRequest struct {
	Category string
	Role     models.Role
	Seed     int
}

// ContentGenerator produces one content plan for a (category, role) pair.
// Implementations may call a rate-limited generative model or assemble a
// plan from cheaper media lookups; either way they may fail or return
// malformed output, and callers own retry/backoff. All generative-model
// calls must be submitted through the concurrency gate by the caller;
// nothing calls the model directly.
type ContentGenerator interface {
	// Generate produces one plan or an error. It must respect ctx
	// cancellation; the gate's timeout wrapper cancels stuck calls.
	Generate(ctx context.Context, req GenerateRequest) (*models.ContentPlan, error)

	// GenerationHeavy reports whether this generator depends on the
	// rate-limited generative model (as opposed to media-only lookups).
	// Heavy generators are skipped by background maintenance while the
	// gate is busy with interactive work.
	GenerationHeavy() bool
}

// MediaSearcher finds illustrative media for a topic. External collaborator:
// failures degrade to an empty result at call sites, media never blocks
// generation.
type MediaSearcher interface {
	Search(ctx context.Context, query string, kind models.MediaKind, limit int) ([]models.MediaItem, error)
}
