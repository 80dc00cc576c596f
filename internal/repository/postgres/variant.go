package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/repositories"
)

// PostgresVariantRepository implements the VariantRepository interface.
// One logical pool per (category, role); the plan document lives in a JSONB
// column. The table carries a unique index on (category, content_hash) so
// the store enforces the same exact-duplicate rule the detector checks.
type PostgresVariantRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewVariantRepository creates a new PostgresVariantRepository
func NewVariantRepository(config *RepositoryConfig) repositories.VariantRepository {
	return &PostgresVariantRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// RecentByRole returns the newest variants for a (category, role) pair.
// maxAge zero means any age.
func (r *PostgresVariantRepository) RecentByRole(ctx context.Context, category string, role models.Role, limit int, maxAge time.Duration) ([]models.Variant, error) {
	query := fmt.Sprintf(`
		SELECT id, category, role, generated_at, plan, content_hash
		FROM %s
		WHERE category = $1 AND role = $2 AND ($3::timestamptz IS NULL OR generated_at >= $3)
		ORDER BY generated_at DESC
		LIMIT $4
	`, r.tables.Variants)

	var cutoff *time.Time
	if maxAge > 0 {
		t := time.Now().UTC().Add(-maxAge)
		cutoff = &t
	}

	rows, err := r.pool.Query(ctx, query, category, role, cutoff, limit)
	if err != nil {
		return nil, &domain.StoreError{Op: "recent by role", Err: err}
	}
	defer rows.Close()

	return scanVariants(rows)
}

// Recent returns the newest variants in the category across all roles.
// maxAge zero means any age.
func (r *PostgresVariantRepository) Recent(ctx context.Context, category string, limit int, maxAge time.Duration) ([]models.Variant, error) {
	query := fmt.Sprintf(`
		SELECT id, category, role, generated_at, plan, content_hash
		FROM %s
		WHERE category = $1 AND ($2::timestamptz IS NULL OR generated_at >= $2)
		ORDER BY generated_at DESC
		LIMIT $3
	`, r.tables.Variants)

	var cutoff *time.Time
	if maxAge > 0 {
		t := time.Now().UTC().Add(-maxAge)
		cutoff = &t
	}

	rows, err := r.pool.Query(ctx, query, category, cutoff, limit)
	if err != nil {
		return nil, &domain.StoreError{Op: "recent", Err: err}
	}
	defer rows.Close()

	return scanVariants(rows)
}

// ExistsByHash reports whether any variant in the category carries the hash
// (cross-role: identical content is cheaply role-tagged, never regenerated).
func (r *PostgresVariantRepository) ExistsByHash(ctx context.Context, category, contentHash string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (SELECT 1 FROM %s WHERE category = $1 AND content_hash = $2)
	`, r.tables.Variants)

	var exists bool
	if err := r.pool.QueryRow(ctx, query, category, contentHash).Scan(&exists); err != nil {
		return false, &domain.StoreError{Op: "exists by hash", Err: err}
	}
	return exists, nil
}

// AllByRecency returns every variant for a (category, role) pair, newest
// first.
func (r *PostgresVariantRepository) AllByRecency(ctx context.Context, category string, role models.Role) ([]models.Variant, error) {
	query := fmt.Sprintf(`
		SELECT id, category, role, generated_at, plan, content_hash
		FROM %s
		WHERE category = $1 AND role = $2
		ORDER BY generated_at DESC
	`, r.tables.Variants)

	rows, err := r.pool.Query(ctx, query, category, role)
	if err != nil {
		return nil, &domain.StoreError{Op: "all by recency", Err: err}
	}
	defer rows.Close()

	return scanVariants(rows)
}

// CountByRole returns total and fresh counts in one query.
func (r *PostgresVariantRepository) CountByRole(ctx context.Context, category string, role models.Role, maxAge time.Duration) (int, int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE generated_at >= $3)
		FROM %s
		WHERE category = $1 AND role = $2
	`, r.tables.Variants)

	cutoff := time.Now().UTC().Add(-maxAge)

	var total, fresh int
	if err := r.pool.QueryRow(ctx, query, category, role, cutoff).Scan(&total, &fresh); err != nil {
		return 0, 0, &domain.StoreError{Op: "count by role", Err: err}
	}
	return total, fresh, nil
}

// InsertBatch atomically persists the given variants.
func (r *PostgresVariantRepository) InsertBatch(ctx context.Context, variants []*models.Variant) error {
	if len(variants) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, category, role, generated_at, plan, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.tables.Variants)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return &domain.StoreError{Op: "insert batch begin", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, v := range variants {
		if _, err := tx.Exec(ctx, query, v.ID, v.Category, v.Role, v.GeneratedAt, v.Plan, v.ContentHash); err != nil {
			return &domain.StoreError{Op: "insert variant", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.StoreError{Op: "insert batch commit", Err: err}
	}

	r.logger.Debug("variants inserted", "count", len(variants), "category", variants[0].Category)
	return nil
}

// DeleteBatch atomically removes the variants with the given IDs.
func (r *PostgresVariantRepository) DeleteBatch(ctx context.Context, category string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		DELETE FROM %s WHERE category = $1 AND id = ANY($2)
	`, r.tables.Variants)

	tag, err := r.pool.Exec(ctx, query, category, ids)
	if err != nil {
		return &domain.StoreError{Op: "delete batch", Err: err}
	}

	r.logger.Debug("variants evicted", "category", category, "requested", len(ids), "deleted", tag.RowsAffected())
	return nil
}

func scanVariants(rows pgx.Rows) ([]models.Variant, error) {
	var out []models.Variant
	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(&v.ID, &v.Category, &v.Role, &v.GeneratedAt, &v.Plan, &v.ContentHash); err != nil {
			return nil, &domain.StoreError{Op: "scan variant", Err: err}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "iterate variants", Err: err}
	}
	return out, nil
}
