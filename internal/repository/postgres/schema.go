package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the pool tables if they don't exist. Called once at
// startup; a failure here is fatal because nothing downstream can degrade
// around a missing store.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	createVariants := `
		CREATE TABLE IF NOT EXISTS ` + tables.Variants + ` (
			id UUID PRIMARY KEY,
			category TEXT NOT NULL,
			role TEXT NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			plan JSONB NOT NULL,
			content_hash TEXT NOT NULL,
			UNIQUE(category, content_hash)
		)
	`
	if _, err := pool.Exec(ctx, createVariants); err != nil {
		return fmt.Errorf("create variants table: %w", err)
	}

	createVariantsIdx := `
		CREATE INDEX IF NOT EXISTS ` + tables.Variants + `_pool_idx
		ON ` + tables.Variants + ` (category, role, generated_at DESC)
	`
	if _, err := pool.Exec(ctx, createVariantsIdx); err != nil {
		return fmt.Errorf("create variants index: %w", err)
	}

	createLock := `
		CREATE TABLE IF NOT EXISTS ` + tables.MaintenanceLock + ` (
			domain TEXT PRIMARY KEY,
			in_progress BOOLEAN NOT NULL DEFAULT FALSE,
			lease_until TIMESTAMPTZ NOT NULL,
			last_run_at TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createLock); err != nil {
		return fmt.Errorf("create maintenance lock table: %w", err)
	}

	return nil
}
