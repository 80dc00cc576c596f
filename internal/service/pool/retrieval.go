package pool

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"missiondeck/internal/background"
	"missiondeck/internal/config"
	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/repositories"
	"missiondeck/internal/gate"
)

// candidateLimit bounds how many pool members the read path considers when
// picking a random variant.
const candidateLimit = 20

// PlaceholderTitle marks the degraded plan served when no content exists
// and none can be generated in time.
const PlaceholderTitle = "Content Unavailable"

// Retrieval is the read path for interactive requests: fast pool lookup,
// fire-and-forget refresh, and last-resort synchronous generation with a
// placeholder fallback. Get never fails for "no content found"; it
// degrades instead.
type Retrieval struct {
	variants repositories.VariantRepository
	engine   *Engine
	gate     *gate.Gate
	catalog  *config.Catalog
	tasks    *background.Tasks
	maxAge   time.Duration
	busyAt   int
	logger   *slog.Logger
}

// NewRetrieval creates the retrieval service.
func NewRetrieval(
	variants repositories.VariantRepository,
	engine *Engine,
	g *gate.Gate,
	catalog *config.Catalog,
	tasks *background.Tasks,
	freshMaxAge time.Duration,
	queueBusyThreshold int,
	logger *slog.Logger,
) *Retrieval {
	// Same guard as the engine: Busy(0) is always true.
	if queueBusyThreshold <= 0 {
		queueBusyThreshold = 2
	}
	return &Retrieval{
		variants: variants,
		engine:   engine,
		gate:     g,
		catalog:  catalog,
		tasks:    tasks,
		maxAge:   freshMaxAge,
		busyAt:   queueBusyThreshold,
		logger:   logger,
	}
}

// Get returns a plan for (category, role) within bounded latency. The fast
// path serves a random fresh variant from the union of the role-specific
// and fallback pools; staler tiers and finally generation or a placeholder
// back it up. Every returned plan is re-addressed to the requesting role.
func (r *Retrieval) Get(ctx context.Context, category string, role models.Role) (*models.ContentPlan, error) {
	cat := r.catalog.Get(category)
	if cat == nil {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown category: %s", category)}
	}
	if !role.Valid() {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown role: %s", role)}
	}

	// Fast path: fresh pool members, role-specific plus fallback.
	if v := r.pickRandom(ctx, category, role, r.maxAge); v != nil {
		r.triggerRefresh(category, role)
		return personalize(v.Plan, role), nil
	}

	// Stale is better than slow: any-age pool, still refresh behind it.
	if v := r.pickRandom(ctx, category, role, 0); v != nil {
		r.triggerRefresh(category, role)
		return personalize(v.Plan, role), nil
	}

	// Pool is empty. A saturated gate on a generation-heavy category means
	// the caller would stall behind background work; hand out a placeholder
	// now and let the next maintenance pass generate for real.
	if cat.GenerationHeavy() && r.gate.Busy(r.busyAt) {
		r.logger.Warn("pool empty and gate saturated, serving placeholder",
			"category", category, "role", role,
			"queued", r.gate.QueuedCount(), "running", r.gate.RunningCount(),
		)
		return r.placeholder(ctx, category, role), nil
	}

	// Last resort: generate synchronously through the gate.
	variant, err := r.engine.GenerateOne(ctx, category, role)
	if err != nil {
		r.logger.Warn("synchronous generation failed, serving placeholder",
			"category", category, "role", role, "error", err,
		)
		return r.placeholder(ctx, category, role), nil
	}
	return personalize(variant.Plan, role), nil
}

// pickRandom returns a random variant from the union of the role's pool and
// the fallback role's pool, or nil. Store errors degrade to a cache-miss.
func (r *Retrieval) pickRandom(ctx context.Context, category string, role models.Role, maxAge time.Duration) *models.Variant {
	candidates, err := r.variants.RecentByRole(ctx, category, role, candidateLimit, maxAge)
	if err != nil {
		r.logger.Warn("pool read failed, treating as miss", "category", category, "role", role, "error", err)
		candidates = nil
	}
	if role != models.DefaultRole {
		fallback, err := r.variants.RecentByRole(ctx, category, models.DefaultRole, candidateLimit, maxAge)
		if err != nil {
			r.logger.Warn("fallback pool read failed, treating as miss", "category", category, "error", err)
		} else {
			candidates = append(candidates, fallback...)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[rand.IntN(len(candidates))]
}

// triggerRefresh spawns a supervised freshness check for the pair; the
// serving request never waits on it.
func (r *Retrieval) triggerRefresh(category string, role models.Role) {
	r.tasks.Spawn(fmt.Sprintf("refresh %s/%s", category, role), func(ctx context.Context) error {
		_, err := r.engine.EnsurePair(ctx, category, role)
		return err
	})
}

// placeholder builds the degraded plan, persists it best-effort so the pool
// registers demand for this pair, and returns it. Persisting is skipped when
// an identical placeholder already sits in the pool; the hash uniqueness
// rule applies to placeholders too.
func (r *Retrieval) placeholder(ctx context.Context, category string, role models.Role) *models.ContentPlan {
	plan := &models.ContentPlan{
		Title:        PlaceholderTitle,
		Introduction: "We're sorry, fresh mission content is still being prepared. Please try again shortly.",
	}

	exists, err := r.variants.ExistsByHash(ctx, category, models.ContentHash(plan))
	if err != nil {
		r.logger.Warn("placeholder dedup check failed", "category", category, "error", err)
	}
	if err == nil && !exists {
		v := models.NewVariant(category, role, plan)
		if err := r.variants.InsertBatch(ctx, []*models.Variant{v}); err != nil {
			r.logger.Warn("placeholder persist failed", "category", category, "role", role, "error", err)
		}
	}
	return personalize(plan, role)
}

// greetings per role, substituted into the introduction's greeting clause.
var greetings = map[models.Role]string{
	models.RoleExplorer:  "Welcome, explorer!",
	models.RoleCadet:     "Welcome, cadet!",
	models.RoleNavigator: "Welcome, navigator!",
	models.RoleCommander: "Welcome, commander!",
}

// personalize re-addresses the plan's introduction to the requesting role.
// It works on a copy and never fails: at worst the introduction is returned
// as generated.
func personalize(plan *models.ContentPlan, role models.Role) *models.ContentPlan {
	out := plan.Clone()
	greeting, ok := greetings[role]
	if !ok {
		return out
	}

	intro := strings.TrimSpace(out.Introduction)
	lower := strings.ToLower(intro)
	if strings.HasPrefix(lower, "welcome") {
		// Replace the existing greeting clause up to its terminator.
		if idx := strings.IndexAny(intro, "!.,"); idx >= 0 {
			out.Introduction = greeting + " " + strings.TrimSpace(intro[idx+1:])
			return out
		}
	}
	if intro == "" {
		out.Introduction = greeting
	} else {
		out.Introduction = greeting + " " + intro
	}
	return out
}
