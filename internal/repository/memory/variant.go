// Package memory provides in-process implementations of the store
// interfaces. Used in dev when no database is configured, and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/repositories"
)

// VariantRepository keeps pools in process memory. Semantics mirror the
// Postgres implementation, including the per-category content-hash
// uniqueness constraint.
type VariantRepository struct {
	mu       sync.RWMutex
	variants map[string][]*models.Variant // key: category

	// FailReads / FailWrites simulate store outages in tests.
	FailReads  error
	FailWrites error
}

// NewVariantRepository creates an empty in-memory repository.
func NewVariantRepository() *VariantRepository {
	return &VariantRepository{variants: make(map[string][]*models.Variant)}
}

func (r *VariantRepository) RecentByRole(ctx context.Context, category string, role models.Role, limit int, maxAge time.Duration) ([]models.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailReads != nil {
		return nil, &domain.StoreError{Op: "recent by role", Err: r.FailReads}
	}

	var cutoff time.Time
	if maxAge > 0 {
		cutoff = time.Now().UTC().Add(-maxAge)
	}

	var out []models.Variant
	for _, v := range r.sortedLocked(category) {
		if v.Role != role {
			continue
		}
		if maxAge > 0 && v.GeneratedAt.Before(cutoff) {
			continue
		}
		out = append(out, *v)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *VariantRepository) Recent(ctx context.Context, category string, limit int, maxAge time.Duration) ([]models.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailReads != nil {
		return nil, &domain.StoreError{Op: "recent", Err: r.FailReads}
	}

	var cutoff time.Time
	if maxAge > 0 {
		cutoff = time.Now().UTC().Add(-maxAge)
	}

	var out []models.Variant
	for _, v := range r.sortedLocked(category) {
		if maxAge > 0 && v.GeneratedAt.Before(cutoff) {
			continue
		}
		out = append(out, *v)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *VariantRepository) ExistsByHash(ctx context.Context, category, contentHash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailReads != nil {
		return false, &domain.StoreError{Op: "exists by hash", Err: r.FailReads}
	}
	for _, v := range r.variants[category] {
		if v.ContentHash == contentHash {
			return true, nil
		}
	}
	return false, nil
}

func (r *VariantRepository) AllByRecency(ctx context.Context, category string, role models.Role) ([]models.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailReads != nil {
		return nil, &domain.StoreError{Op: "all by recency", Err: r.FailReads}
	}
	var out []models.Variant
	for _, v := range r.sortedLocked(category) {
		if v.Role == role {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *VariantRepository) CountByRole(ctx context.Context, category string, role models.Role, maxAge time.Duration) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailReads != nil {
		return 0, 0, &domain.StoreError{Op: "count by role", Err: r.FailReads}
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	total, fresh := 0, 0
	for _, v := range r.variants[category] {
		if v.Role != role {
			continue
		}
		total++
		if !v.GeneratedAt.Before(cutoff) {
			fresh++
		}
	}
	return total, fresh, nil
}

func (r *VariantRepository) InsertBatch(ctx context.Context, variants []*models.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return &domain.StoreError{Op: "insert batch", Err: r.FailWrites}
	}
	// Atomic: validate the whole batch before touching the map.
	for _, v := range variants {
		for _, existing := range r.variants[v.Category] {
			if existing.ContentHash == v.ContentHash {
				return &domain.StoreError{Op: "insert batch", Err: domain.ErrValidation}
			}
		}
	}
	for _, v := range variants {
		cp := *v
		r.variants[v.Category] = append(r.variants[v.Category], &cp)
	}
	return nil
}

func (r *VariantRepository) DeleteBatch(ctx context.Context, category string, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return &domain.StoreError{Op: "delete batch", Err: r.FailWrites}
	}
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := r.variants[category][:0]
	for _, v := range r.variants[category] {
		if !drop[v.ID] {
			kept = append(kept, v)
		}
	}
	r.variants[category] = kept
	return nil
}

// All returns every stored variant for a category across roles, newest
// first. Test helper beyond the repository interface.
func (r *VariantRepository) All(category string) []models.Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Variant
	for _, v := range r.sortedLocked(category) {
		out = append(out, *v)
	}
	return out
}

func (r *VariantRepository) sortedLocked(category string) []*models.Variant {
	sorted := append([]*models.Variant(nil), r.variants[category]...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GeneratedAt.After(sorted[j].GeneratedAt)
	})
	return sorted
}

var _ repositories.VariantRepository = (*VariantRepository)(nil)
