// Package jobs defines the closed set of job payloads the surrounding
// system submits, and the single dispatch point that executes them.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/service/maintenance"
	"missiondeck/internal/service/pool"
)

// Job is the closed union of request payloads. Implementations are exactly
// MissionJob, AskJob, PreflightJob and BackfillJob; the sealed marker keeps
// the dispatch switch exhaustive.
type Job interface {
	jobKind() string
}

// MissionJob requests a plan for (category, role) from the pool.
type MissionJob struct {
	Category string      `json:"category"`
	Role     models.Role `json:"role"`
}

// AskJob requests a directly generated plan: it skips the pool lookup and
// goes straight through the gate, with the usual duplicate checks. The
// approved result joins the pool like any other variant.
type AskJob struct {
	Category string      `json:"category"`
	Role     models.Role `json:"role"`
}

// PreflightJob requests an immediate maintenance run.
type PreflightJob struct{}

// BackfillJob requests generation of one or more variants for a pair.
type BackfillJob struct {
	Category string      `json:"category"`
	Role     models.Role `json:"role"`
	Need     int         `json:"need"`
}

func (MissionJob) jobKind() string   { return "mission" }
func (AskJob) jobKind() string       { return "ask" }
func (PreflightJob) jobKind() string { return "preflight" }
func (BackfillJob) jobKind() string  { return "backfill" }

// Decode parses a type-discriminated payload into its Job.
func Decode(kind string, payload []byte) (Job, error) {
	switch kind {
	case "mission":
		var j MissionJob
		if err := json.Unmarshal(payload, &j); err != nil {
			return nil, &domain.ValidationError{Message: "invalid mission payload: " + err.Error()}
		}
		return j, nil
	case "ask":
		var j AskJob
		if err := json.Unmarshal(payload, &j); err != nil {
			return nil, &domain.ValidationError{Message: "invalid ask payload: " + err.Error()}
		}
		return j, nil
	case "preflight":
		return PreflightJob{}, nil
	case "backfill":
		var j BackfillJob
		if err := json.Unmarshal(payload, &j); err != nil {
			return nil, &domain.ValidationError{Message: "invalid backfill payload: " + err.Error()}
		}
		if j.Need <= 0 {
			j.Need = 1
		}
		return j, nil
	default:
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown job type: %q", kind)}
	}
}

// Dispatcher executes jobs against the pool services.
type Dispatcher struct {
	retrieval *pool.Retrieval
	engine    *pool.Engine
	scheduler *maintenance.Scheduler
}

// NewDispatcher creates the job dispatcher.
func NewDispatcher(retrieval *pool.Retrieval, engine *pool.Engine, scheduler *maintenance.Scheduler) *Dispatcher {
	return &Dispatcher{
		retrieval: retrieval,
		engine:    engine,
		scheduler: scheduler,
	}
}

// Dispatch runs one job and returns its JSON-serializable result. This is
// the only place job payloads are matched on; a new Job variant without a
// case here fails loudly at dispatch, not silently somewhere downstream.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) (any, error) {
	switch j := job.(type) {
	case MissionJob:
		return d.retrieval.Get(ctx, j.Category, j.Role)
	case AskJob:
		variant, err := d.engine.GenerateOne(ctx, j.Category, j.Role)
		if err != nil {
			return nil, err
		}
		return variant.Plan, nil
	case PreflightJob:
		return d.scheduler.RunNow(ctx)
	case BackfillJob:
		return d.engine.BackfillRole(ctx, j.Category, j.Role, j.Need)
	default:
		return nil, fmt.Errorf("unhandled job type %T", job)
	}
}
