package models

import "time"

// MaintenanceLock is the singleton lease record guarding maintenance sweeps.
// At most one sweep may be in progress across the whole deployment; a holder
// that runs past LeaseUntil is considered abandoned and may be reclaimed.
type MaintenanceLock struct {
	Domain     string     `json:"domain" db:"domain"`
	InProgress bool       `json:"in_progress" db:"in_progress"`
	LeaseUntil time.Time  `json:"lease_until" db:"lease_until"`
	LastRunAt  *time.Time `json:"last_run_at" db:"last_run_at"`
}

// DefaultLockDomain is the deployment-wide maintenance domain.
const DefaultLockDomain = "content-pool"
