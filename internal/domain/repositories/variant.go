package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"missiondeck/internal/domain/models"
)

// VariantRepository defines data access operations for the per-category
// content pools. The store is append/delete only: no update operation.
type VariantRepository interface {
	// RecentByRole returns the newest variants for a (category, role) pair,
	// newest first, limited to limit. A maxAge of zero means any age.
	RecentByRole(ctx context.Context, category string, role models.Role, limit int, maxAge time.Duration) ([]models.Variant, error)

	// Recent returns the newest variants in the category across all roles,
	// newest first, limited to limit. A maxAge of zero means any age. Used
	// by the near-duplicate scan, which is cross-role like the exact tier.
	Recent(ctx context.Context, category string, limit int, maxAge time.Duration) ([]models.Variant, error)

	// ExistsByHash reports whether any variant in the category carries the
	// given content hash, regardless of role.
	ExistsByHash(ctx context.Context, category, contentHash string) (bool, error)

	// AllByRecency returns every variant for a (category, role) pair,
	// newest first. Used for eviction and near-duplicate scanning.
	AllByRecency(ctx context.Context, category string, role models.Role) ([]models.Variant, error)

	// CountByRole returns total and fresh counts for a (category, role)
	// pair in one query. Fresh means generated within maxAge of now.
	CountByRole(ctx context.Context, category string, role models.Role, maxAge time.Duration) (total int, fresh int, err error)

	// InsertBatch atomically persists the given variants.
	InsertBatch(ctx context.Context, variants []*models.Variant) error

	// DeleteBatch atomically removes the variants with the given IDs.
	DeleteBatch(ctx context.Context, category string, ids []uuid.UUID) error
}
