// Package maintenance runs the periodic, budget-bounded sweep that keeps
// every (category, role) pool inside its policy, coordinated across
// processes by the lease lock.
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"missiondeck/internal/config"
	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/repositories"
	"missiondeck/internal/service/pool"
)

// Skip reasons reported when a run is a no-op.
const (
	ReasonLocked    = "LOCKED"
	ReasonTooRecent = "TOO_RECENT"
)

// SchedulerConfig carries the sweep policy knobs.
type SchedulerConfig struct {
	Interval       time.Duration // ticker period
	Budget         time.Duration // wall-clock budget per sweep
	TaskCap        int           // max (category, role) tasks per sweep
	MinRunInterval time.Duration // wall-clock gap required between completed runs
	StreakAbort    int           // cross-pair dupe/failure streak that aborts the sweep
	LeaseTTL       time.Duration // how long a sweep may hold the lock before reclaim
	LockDomain     string
}

// Report is the outcome of one RunNow invocation.
type Report struct {
	Ran    bool   `json:"ran"`
	Reason string `json:"reason,omitempty"` // LOCKED or TOO_RECENT when skipped
	Tasks  int    `json:"tasks,omitempty"`
	Abort  string `json:"abort,omitempty"` // budget / streak note when the sweep ended early
}

// Scheduler owns the sweep loop. It never crashes the process: failures are
// logged and counted, a pass simply ends early on budget or streak
// exhaustion.
type Scheduler struct {
	engine  *pool.Engine
	lock    repositories.MaintenanceLockRepository
	catalog *config.Catalog
	cfg     SchedulerConfig
	logger  *slog.Logger
}

// NewScheduler creates a maintenance scheduler.
func NewScheduler(
	engine *pool.Engine,
	lock repositories.MaintenanceLockRepository,
	catalog *config.Catalog,
	cfg SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	if cfg.TaskCap <= 0 {
		cfg.TaskCap = 6
	}
	if cfg.StreakAbort <= 0 {
		cfg.StreakAbort = 2
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 20 * time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}
	if cfg.LockDomain == "" {
		cfg.LockDomain = models.DefaultLockDomain
	}
	return &Scheduler{
		engine:  engine,
		lock:    lock,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start runs a sweep immediately, then on every tick until ctx is cancelled.
// It blocks; run it on its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("maintenance scheduler started", "interval", s.cfg.Interval.String())

	if _, err := s.RunNow(ctx); err != nil {
		s.logger.Error("startup maintenance run failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunNow(ctx); err != nil {
				s.logger.Error("maintenance run failed", "error", err)
			}
		}
	}
}

// RunNow attempts one sweep. A held lock or a too-recent previous run is a
// normal skip outcome, reported in the Report and never as an error.
func (s *Scheduler) RunNow(ctx context.Context) (Report, error) {
	err := s.lock.Acquire(ctx, s.cfg.LockDomain, s.cfg.LeaseTTL, s.cfg.MinRunInterval)
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		s.logger.Info("maintenance skipped", "reason", ReasonLocked)
		return Report{Ran: false, Reason: ReasonLocked}, nil
	case errors.Is(err, domain.ErrTooRecent):
		s.logger.Info("maintenance skipped", "reason", ReasonTooRecent)
		return Report{Ran: false, Reason: ReasonTooRecent}, nil
	case err != nil:
		return Report{}, err
	}

	report := s.sweep(ctx)

	// Release on success and abort alike; the completion stamp is what
	// gates the next run.
	if err := s.lock.Release(ctx, s.cfg.LockDomain, time.Now()); err != nil {
		s.logger.Error("maintenance lock release failed", "error", err)
	}
	return report, nil
}

// sweep iterates all (category, role) pairs in catalog order, cheapest
// categories first, under the wall-clock budget and task cap, aborting on
// a cross-pair failure streak.
func (s *Scheduler) sweep(ctx context.Context) Report {
	report := Report{Ran: true}
	deadline := time.Now().Add(s.cfg.Budget)
	sweepCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	streak := 0
	start := time.Now()

pairs:
	for _, cat := range s.catalog.Categories {
		for _, role := range models.AllRoles() {
			if time.Now().After(deadline) {
				report.Abort = "budget exhausted"
				break pairs
			}
			if report.Tasks >= s.cfg.TaskCap {
				report.Abort = "task cap reached"
				break pairs
			}
			if sweepCtx.Err() != nil {
				report.Abort = "cancelled"
				break pairs
			}

			report.Tasks++
			pr, err := s.engine.EnsurePair(sweepCtx, cat.Name, role)
			switch {
			case err != nil:
				streak++
				s.logger.Warn("maintenance pair failed",
					"category", cat.Name, "role", role,
					"streak", streak, "error", err,
				)
			case pr.Aborted || (pr.Failed > 0 && pr.Generated == 0):
				// The generator is unproductive for this slot right now;
				// count it toward the abort streak.
				streak++
			default:
				streak = 0
			}

			if streak >= s.cfg.StreakAbort {
				report.Abort = "failure streak"
				break pairs
			}
		}
	}

	s.logger.Info("maintenance sweep finished",
		"tasks", report.Tasks,
		"abort", report.Abort,
		"elapsed", time.Since(start).String(),
	)
	return report
}
