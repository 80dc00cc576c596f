// Package pool implements the content pool's freshness policy and the read
// path that serves interactive requests from it.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"missiondeck/internal/config"
	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/repositories"
	"missiondeck/internal/domain/services"
	"missiondeck/internal/gate"
	"missiondeck/internal/service/dedup"
)

// consecutiveFailureLimit stops a pool-filling loop once this many slots in
// a row failed or produced duplicates. Persistent duplication means the
// generator's input space for this slot is exhausted for now; busy-looping
// on it would burn the budget for nothing.
const consecutiveFailureLimit = 2

// GeneratorSource resolves a category to its generator.
type GeneratorSource interface {
	Get(category string) (services.ContentGenerator, error)
}

// EngineConfig carries the freshness policy knobs.
type EngineConfig struct {
	FreshMaxAge        time.Duration
	PerPassCap         int // max generations for one (category, role) in one pass
	RetryAttempts      int // generation attempts per slot before it counts as failed
	QueueBusyThreshold int // gate queued+running at which heavy categories are skipped
}

// Engine enforces the per-(category, role) pool policy: fill to the floor,
// top up freshness, evict past the ceiling.
type Engine struct {
	variants   repositories.VariantRepository
	detector   *dedup.Detector
	generators GeneratorSource
	gate       *gate.Gate
	catalog    *config.Catalog
	cfg        EngineConfig
	logger     *slog.Logger
}

// NewEngine creates a freshness engine.
func NewEngine(
	variants repositories.VariantRepository,
	detector *dedup.Detector,
	generators GeneratorSource,
	g *gate.Gate,
	catalog *config.Catalog,
	cfg EngineConfig,
	logger *slog.Logger,
) *Engine {
	if cfg.PerPassCap <= 0 {
		cfg.PerPassCap = 3
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	// A zero threshold would make Busy always true and silently disable
	// every heavy-category pass.
	if cfg.QueueBusyThreshold <= 0 {
		cfg.QueueBusyThreshold = 2
	}
	return &Engine{
		variants:   variants,
		detector:   detector,
		generators: generators,
		gate:       g,
		catalog:    catalog,
		cfg:        cfg,
		logger:     logger,
	}
}

// PairReport describes one EnsurePair pass.
type PairReport struct {
	Category  string
	Role      models.Role
	Skipped   bool
	SkipNote  string
	Generated int
	Failed    int // slots that ended in failure or duplicate exhaustion
	Evicted   int
	Aborted   bool // stopped early on the consecutive-failure limit
}

// EnsurePair runs one freshness pass for a (category, role) pair.
func (e *Engine) EnsurePair(ctx context.Context, category string, role models.Role) (PairReport, error) {
	report := PairReport{Category: category, Role: role}

	cat := e.catalog.Get(category)
	if cat == nil {
		return report, &domain.ValidationError{Message: fmt.Sprintf("unknown category: %s", category)}
	}

	gen, err := e.generators.Get(category)
	if err != nil {
		return report, err
	}

	// Background maintenance yields the gate to interactive requests.
	if gen.GenerationHeavy() && e.gate.Busy(e.cfg.QueueBusyThreshold) {
		report.Skipped = true
		report.SkipNote = "gate busy"
		e.logger.Debug("freshness pass skipped, gate busy",
			"category", category, "role", role,
			"queued", e.gate.QueuedCount(), "running", e.gate.RunningCount(),
		)
		return report, nil
	}

	total, fresh, err := e.variants.CountByRole(ctx, category, role, e.cfg.FreshMaxAge)
	if err != nil {
		return report, err
	}

	need := 0
	switch {
	case total < cat.Pool.Min:
		need = cat.Pool.Min - total
	case fresh < cat.Pool.FreshTarget:
		need = cat.Pool.FreshTarget - fresh
	}
	if need > e.cfg.PerPassCap {
		need = e.cfg.PerPassCap
	}

	if need > 0 {
		report.Generated, report.Failed, report.Aborted = e.fillSlots(ctx, cat, gen, role, need)
	}

	evicted, err := e.evict(ctx, cat, role)
	if err != nil {
		return report, err
	}
	report.Evicted = evicted

	e.logger.Info("freshness pass complete",
		"category", category, "role", role,
		"total", total, "fresh", fresh, "need", need,
		"generated", report.Generated, "failed", report.Failed,
		"evicted", report.Evicted, "aborted", report.Aborted,
	)
	return report, nil
}

// BackfillResult is the outcome of one backfill request.
type BackfillResult struct {
	OK        bool        `json:"ok"`
	Reason    string      `json:"reason,omitempty"`
	Category  string      `json:"category"`
	Role      models.Role `json:"role"`
	Committed int         `json:"committed"`
}

// BackfillRole generates up to need variants for a (category, role) pair.
// It reports persistent duplication as a not-OK result, never as an error.
func (e *Engine) BackfillRole(ctx context.Context, category string, role models.Role, need int) (BackfillResult, error) {
	result := BackfillResult{Category: category, Role: role}

	cat := e.catalog.Get(category)
	if cat == nil {
		return result, &domain.ValidationError{Message: fmt.Sprintf("unknown category: %s", category)}
	}
	gen, err := e.generators.Get(category)
	if err != nil {
		return result, err
	}

	committed, failed, aborted := e.fillSlots(ctx, cat, gen, role, need)
	result.Committed = committed
	result.OK = committed == need
	switch {
	case aborted:
		result.Reason = "duplicate streak"
	case failed > 0:
		result.Reason = "generation failed"
	}

	if _, err := e.evict(ctx, cat, role); err != nil {
		return result, err
	}
	return result, nil
}

// GenerateOne produces and persists a single variant, applying the per-slot
// retry policy. The retrieval path uses it for last-resort synchronous
// generation.
func (e *Engine) GenerateOne(ctx context.Context, category string, role models.Role) (*models.Variant, error) {
	cat := e.catalog.Get(category)
	if cat == nil {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown category: %s", category)}
	}
	gen, err := e.generators.Get(category)
	if err != nil {
		return nil, err
	}
	return e.generateSlot(ctx, cat, gen, role)
}

// fillSlots runs up to need slot generations, stopping early when
// consecutiveFailureLimit slots in a row come back failed or duplicate.
func (e *Engine) fillSlots(ctx context.Context, cat *models.Category, gen services.ContentGenerator, role models.Role, need int) (committed, failed int, aborted bool) {
	streak := 0
	for slot := 0; slot < need; slot++ {
		if ctx.Err() != nil {
			return committed, failed, aborted
		}

		_, err := e.generateSlot(ctx, cat, gen, role)
		if err != nil {
			failed++
			streak++
			e.logger.Warn("slot generation failed",
				"category", cat.Name, "role", role,
				"slot", slot, "streak", streak, "error", err,
			)
			if streak >= consecutiveFailureLimit {
				aborted = true
				return committed, failed, aborted
			}
			continue
		}

		committed++
		streak = 0
	}
	return committed, failed, aborted
}

// generateSlot makes one slot's worth of attempts: gate → generator →
// duplicate check → persist. Each retry carries a different seed. Exhausted
// retries surface as ErrDuplicateExhausted or ErrGenerationFailed, which
// callers count as a failed slot rather than an exception.
func (e *Engine) generateSlot(ctx context.Context, cat *models.Category, gen services.ContentGenerator, role models.Role) (*models.Variant, error) {
	var lastErr error
	sawDuplicate := false

	for attempt := 0; attempt < e.cfg.RetryAttempts; attempt++ {
		plan, err := gate.Submit(ctx, e.gate, func(ctx context.Context) (*models.ContentPlan, error) {
			return gen.Generate(ctx, services.GenerateRequest{
				Category: cat.Name,
				Role:     role,
				Seed:     attempt,
			})
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrQueueOverflow) {
				return nil, err
			}
			lastErr = err
			continue
		}

		verdict, err := e.detector.Check(ctx, cat.Name, role, plan)
		if err != nil {
			lastErr = err
			continue
		}
		if verdict != dedup.Unique {
			sawDuplicate = true
			lastErr = fmt.Errorf("%s duplicate on attempt %d", verdict, attempt)
			continue
		}

		variant := models.NewVariant(cat.Name, role, plan)
		if err := e.variants.InsertBatch(ctx, []*models.Variant{variant}); err != nil {
			return nil, err
		}
		return variant, nil
	}

	if sawDuplicate {
		return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrDuplicateExhausted, e.cfg.RetryAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrGenerationFailed, e.cfg.RetryAttempts, lastErr)
}

// evict removes the oldest variants beyond the pool ceiling. Placeholders
// are stopgaps served while the pool was empty: once any real variant
// exists they are dropped outright, so learners stop drawing
// "Content Unavailable" at random.
func (e *Engine) evict(ctx context.Context, cat *models.Category, role models.Role) (int, error) {
	all, err := e.variants.AllByRecency(ctx, cat.Name, role)
	if err != nil {
		return 0, err
	}

	var ids []uuid.UUID
	live := all
	if hasRealVariant(all) {
		live = live[:0:0]
		for _, v := range all {
			if v.Plan != nil && v.Plan.Title == PlaceholderTitle {
				ids = append(ids, v.ID)
				continue
			}
			live = append(live, v)
		}
	}

	if len(live) > cat.Pool.Max {
		for _, v := range live[cat.Pool.Max:] { // newest first, tail is oldest
			ids = append(ids, v.ID)
		}
	}

	if len(ids) == 0 {
		return 0, nil
	}
	if err := e.variants.DeleteBatch(ctx, cat.Name, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func hasRealVariant(variants []models.Variant) bool {
	for _, v := range variants {
		if v.Plan != nil && v.Plan.Title != PlaceholderTitle {
			return true
		}
	}
	return false
}
