package memory

import (
	"context"
	"sync"
	"time"

	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/repositories"
)

// MaintenanceLockRepository is the in-process lease lock. The mutex stands
// in for the store's conditional write: the check and the claim happen under
// one critical section, matching the Postgres CAS semantics.
type MaintenanceLockRepository struct {
	mu    sync.Mutex
	locks map[string]*models.MaintenanceLock
}

// NewMaintenanceLockRepository creates an empty lock repository.
func NewMaintenanceLockRepository() *MaintenanceLockRepository {
	return &MaintenanceLockRepository{locks: make(map[string]*models.MaintenanceLock)}
}

func (r *MaintenanceLockRepository) Acquire(ctx context.Context, domainName string, leaseTTL, minInterval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	lock, ok := r.locks[domainName]
	if !ok {
		lock = &models.MaintenanceLock{Domain: domainName}
		r.locks[domainName] = lock
	}

	if lock.InProgress && lock.LeaseUntil.After(now) {
		return domain.ErrLockHeld
	}
	if lock.LastRunAt != nil && lock.LastRunAt.After(now.Add(-minInterval)) {
		return domain.ErrTooRecent
	}

	lock.InProgress = true
	lock.LeaseUntil = now.Add(leaseTTL)
	return nil
}

func (r *MaintenanceLockRepository) Release(ctx context.Context, domainName string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[domainName]
	if !ok {
		return &domain.NotFoundError{Message: "maintenance lock not found"}
	}
	lock.InProgress = false
	t := completedAt.UTC()
	lock.LastRunAt = &t
	return nil
}

func (r *MaintenanceLockRepository) Get(ctx context.Context, domainName string) (*models.MaintenanceLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[domainName]
	if !ok {
		return nil, &domain.NotFoundError{Message: "maintenance lock not found"}
	}
	cp := *lock
	return &cp, nil
}

var _ repositories.MaintenanceLockRepository = (*MaintenanceLockRepository)(nil)
