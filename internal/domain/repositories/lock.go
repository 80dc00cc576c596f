package repositories

import (
	"context"
	"time"

	"missiondeck/internal/domain/models"
)

// MaintenanceLockRepository is the single cross-process mutual-exclusion
// primitive. Acquire must be a conditional write against the backing store,
// never a read-then-write, so two processes cannot both enter maintenance
// under a race.
type MaintenanceLockRepository interface {
	// Acquire attempts the conditional claim: it succeeds only if no sweep
	// is in progress (or the holder's lease expired) and the last completed
	// run is at least minInterval in the past. On failure it returns
	// domain.ErrLockHeld or domain.ErrTooRecent.
	Acquire(ctx context.Context, domainName string, leaseTTL, minInterval time.Duration) error

	// Release clears in_progress and stamps last_run_at with the completion
	// time. Called on success and on early abort alike.
	Release(ctx context.Context, domainName string, completedAt time.Time) error

	// Get reads the current lock state. Advisory only; Acquire is the guard.
	Get(ctx context.Context, domainName string) (*models.MaintenanceLock, error)
}
