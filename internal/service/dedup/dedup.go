// Package dedup decides whether a freshly generated plan repeats what a
// category's pool already holds. Exact-hash catches literal regeneration;
// topic-set similarity catches plans that say the same thing in different
// words, which hashing would miss.
package dedup

import (
	"context"
	"log/slog"

	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/repositories"
)

const (
	// DefaultSimilarityThreshold is the Jaccard similarity at or above
	// which two plans count as near-duplicates. A policy constant with no
	// derivation in the original tuning; configurable, not inferred.
	DefaultSimilarityThreshold = 0.6

	// DefaultScanWindow bounds how many recent plans the near tier scans.
	DefaultScanWindow = 50
)

// Verdict is the outcome of a duplicate check.
type Verdict int

const (
	Unique Verdict = iota
	ExactDuplicate
	NearDuplicate
)

func (v Verdict) String() string {
	switch v {
	case ExactDuplicate:
		return "exact"
	case NearDuplicate:
		return "near"
	default:
		return "unique"
	}
}

// Detector runs the two-tier check against a category's existing pool.
type Detector struct {
	variants  repositories.VariantRepository
	threshold float64
	window    int
	logger    *slog.Logger
}

// New creates a Detector. threshold <= 0 selects the default; window <= 0
// selects the default window.
func New(variants repositories.VariantRepository, threshold float64, window int, logger *slog.Logger) *Detector {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if window <= 0 {
		window = DefaultScanWindow
	}
	return &Detector{
		variants:  variants,
		threshold: threshold,
		window:    window,
		logger:    logger,
	}
}

// Check classifies plan against the pool for category. Both tiers are
// cross-role: identical content in another role's pool is still a duplicate
// because content can be cheaply role-tagged instead of regenerated, and
// retrieval serves the union of role pools, so a near-repeat of another
// role's plan would still reach the same audience.
func (d *Detector) Check(ctx context.Context, category string, role models.Role, plan *models.ContentPlan) (Verdict, error) {
	hash := models.ContentHash(plan)
	exists, err := d.variants.ExistsByHash(ctx, category, hash)
	if err != nil {
		return Unique, err
	}
	if exists {
		d.logger.Debug("exact duplicate rejected", "category", category, "role", role, "hash", hash)
		return ExactDuplicate, nil
	}

	recent, err := d.variants.Recent(ctx, category, d.window, 0)
	if err != nil {
		return Unique, err
	}
	for i := range recent {
		if IsNearDuplicate(plan, recent[i].Plan, d.threshold) {
			d.logger.Debug("near duplicate rejected",
				"category", category,
				"role", role,
				"against", recent[i].ID,
			)
			return NearDuplicate, nil
		}
	}
	return Unique, nil
}

// IsNearDuplicate reports whether two plans are near-duplicates: equal
// normalized titles, or Jaccard similarity of their topic-title sets at or
// above threshold. Symmetric in a and b.
func IsNearDuplicate(a, b *models.ContentPlan, threshold float64) bool {
	if models.NormalizeText(a.Title) == models.NormalizeText(b.Title) {
		return true
	}
	return TopicSimilarity(a, b) >= threshold
}

// TopicSimilarity computes the Jaccard similarity of the two plans'
// normalized topic-title sets.
func TopicSimilarity(a, b *models.ContentPlan) float64 {
	setA := topicTitleSet(a)
	setB := topicTitleSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for title := range setA {
		if setB[title] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func topicTitleSet(p *models.ContentPlan) map[string]bool {
	set := make(map[string]bool, len(p.Topics))
	for _, t := range p.Topics {
		if n := models.NormalizeText(t.Title); n != "" {
			set[n] = true
		}
	}
	return set
}
