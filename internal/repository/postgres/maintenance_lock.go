package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/repositories"
)

// PostgresMaintenanceLockRepository implements the distributed lease lock.
// Acquire is one conditional UPDATE: the row flips to in_progress only when
// the lease conditions hold, so two processes racing on the same sweep can
// never both win.
type PostgresMaintenanceLockRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewMaintenanceLockRepository creates a new PostgresMaintenanceLockRepository
func NewMaintenanceLockRepository(config *RepositoryConfig) repositories.MaintenanceLockRepository {
	return &PostgresMaintenanceLockRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Acquire attempts the conditional claim described on the interface.
func (r *PostgresMaintenanceLockRepository) Acquire(ctx context.Context, domainName string, leaseTTL, minInterval time.Duration) error {
	now := time.Now().UTC()

	// Seed the singleton row on first contact; ON CONFLICT keeps this
	// race-safe across processes.
	insert := fmt.Sprintf(`
		INSERT INTO %s (domain, in_progress, lease_until, last_run_at)
		VALUES ($1, FALSE, $2, NULL)
		ON CONFLICT (domain) DO NOTHING
	`, r.tables.MaintenanceLock)
	if _, err := r.pool.Exec(ctx, insert, domainName, now); err != nil {
		return &domain.StoreError{Op: "seed maintenance lock", Err: err}
	}

	claim := fmt.Sprintf(`
		UPDATE %s
		SET in_progress = TRUE, lease_until = $2
		WHERE domain = $1
		  AND (in_progress = FALSE OR lease_until < $3)
		  AND (last_run_at IS NULL OR last_run_at < $4)
	`, r.tables.MaintenanceLock)

	tag, err := r.pool.Exec(ctx, claim, domainName, now.Add(leaseTTL), now, now.Add(-minInterval))
	if err != nil {
		return &domain.StoreError{Op: "acquire maintenance lock", Err: err}
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// The CAS lost; one advisory read distinguishes the skip reason.
	lock, err := r.Get(ctx, domainName)
	if err != nil {
		return domain.ErrLockHeld
	}
	if lock.InProgress && lock.LeaseUntil.After(now) {
		return domain.ErrLockHeld
	}
	return domain.ErrTooRecent
}

// Release clears in_progress and stamps the completion time.
func (r *PostgresMaintenanceLockRepository) Release(ctx context.Context, domainName string, completedAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET in_progress = FALSE, last_run_at = $2
		WHERE domain = $1
	`, r.tables.MaintenanceLock)

	if _, err := r.pool.Exec(ctx, query, domainName, completedAt.UTC()); err != nil {
		return &domain.StoreError{Op: "release maintenance lock", Err: err}
	}
	return nil
}

// Get reads the current lock state.
func (r *PostgresMaintenanceLockRepository) Get(ctx context.Context, domainName string) (*models.MaintenanceLock, error) {
	query := fmt.Sprintf(`
		SELECT domain, in_progress, lease_until, last_run_at
		FROM %s
		WHERE domain = $1
	`, r.tables.MaintenanceLock)

	var lock models.MaintenanceLock
	err := r.pool.QueryRow(ctx, query, domainName).Scan(&lock.Domain, &lock.InProgress, &lock.LeaseUntil, &lock.LastRunAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &domain.NotFoundError{Message: "maintenance lock not found"}
		}
		return nil, &domain.StoreError{Op: "get maintenance lock", Err: err}
	}
	return &lock, nil
}
