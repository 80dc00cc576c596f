package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"missiondeck/internal/background"
	"missiondeck/internal/config"
	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/services"
	"missiondeck/internal/gate"
	"missiondeck/internal/repository/memory"
	"missiondeck/internal/service/dedup"
	"missiondeck/internal/service/maintenance"
	"missiondeck/internal/service/pool"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		payload string
		want    Job
		wantErr bool
	}{
		{
			name:    "mission",
			kind:    "mission",
			payload: `{"category":"skyTour","role":"cadet"}`,
			want:    MissionJob{Category: "skyTour", Role: models.RoleCadet},
		},
		{
			name:    "ask",
			kind:    "ask",
			payload: `{"category":"mission","role":"commander"}`,
			want:    AskJob{Category: "mission", Role: models.RoleCommander},
		},
		{
			name:    "preflight ignores payload",
			kind:    "preflight",
			payload: `garbage`,
			want:    PreflightJob{},
		},
		{
			name:    "backfill",
			kind:    "backfill",
			payload: `{"category":"mission","role":"explorer","need":3}`,
			want:    BackfillJob{Category: "mission", Role: models.RoleExplorer, Need: 3},
		},
		{
			name:    "backfill defaults need to one",
			kind:    "backfill",
			payload: `{"category":"mission","role":"explorer"}`,
			want:    BackfillJob{Category: "mission", Role: models.RoleExplorer, Need: 1},
		},
		{
			name:    "malformed payload",
			kind:    "mission",
			payload: `{not json`,
			wantErr: true,
		},
		{
			name:    "unknown kind",
			kind:    "launch",
			payload: `{}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.kind, []byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

type countingGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGenerator) Generate(ctx context.Context, req services.GenerateRequest) (*models.ContentPlan, error) {
	g.mu.Lock()
	call := g.calls
	g.calls++
	g.mu.Unlock()
	return &models.ContentPlan{
		Title:        fmt.Sprintf("Dispatched Mission %d", call),
		Introduction: "Welcome, explorer!",
		Topics:       []models.Topic{{Title: fmt.Sprintf("dispatched topic %d", call)}},
	}, nil
}

func (g *countingGenerator) GenerationHeavy() bool { return false }

type oneGenerator struct{ gen services.ContentGenerator }

func (s oneGenerator) Get(string) (services.ContentGenerator, error) { return s.gen, nil }

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.VariantRepository) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	repo := memory.NewVariantRepository()
	catalog := &config.Catalog{Categories: []models.Category{{
		Name: "mission",
		Kind: models.KindLLM,
		Pool: models.PoolPolicy{Min: 1, Max: 5, FreshTarget: 1},
	}}}
	g := gate.New(2, 32, logger)
	engine := pool.NewEngine(repo, dedup.New(repo, 0, 0, logger), oneGenerator{&countingGenerator{}}, g, catalog, pool.EngineConfig{
		FreshMaxAge:        14 * 24 * time.Hour,
		PerPassCap:         3,
		RetryAttempts:      1,
		QueueBusyThreshold: 2,
	}, logger)
	tasks := background.New(logger)
	t.Cleanup(tasks.Close)
	retrieval := pool.NewRetrieval(repo, engine, g, catalog, tasks, 14*24*time.Hour, 2, logger)
	scheduler := maintenance.NewScheduler(engine, memory.NewMaintenanceLockRepository(), catalog, maintenance.SchedulerConfig{
		TaskCap:        6,
		MinRunInterval: time.Hour,
	}, logger)
	return NewDispatcher(retrieval, engine, scheduler), repo
}

func TestDispatchMission(t *testing.T) {
	d, _ := newTestDispatcher(t)

	result, err := d.Dispatch(context.Background(), MissionJob{Category: "mission", Role: models.RoleCadet})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	plan, ok := result.(*models.ContentPlan)
	if !ok {
		t.Fatalf("result type = %T, want *models.ContentPlan", result)
	}
	if plan.Title == "" {
		t.Error("expected a non-empty plan")
	}
}

func TestDispatchAskPersists(t *testing.T) {
	d, repo := newTestDispatcher(t)

	result, err := d.Dispatch(context.Background(), AskJob{Category: "mission", Role: models.RoleExplorer})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, ok := result.(*models.ContentPlan); !ok {
		t.Fatalf("result type = %T, want *models.ContentPlan", result)
	}
	if got := len(repo.All("mission")); got != 1 {
		t.Errorf("pool holds %d variants, want the asked-for plan persisted", got)
	}
}

func TestDispatchPreflight(t *testing.T) {
	d, repo := newTestDispatcher(t)

	result, err := d.Dispatch(context.Background(), PreflightJob{})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	report, ok := result.(maintenance.Report)
	if !ok {
		t.Fatalf("result type = %T, want maintenance.Report", result)
	}
	if !report.Ran {
		t.Errorf("report = %+v, want a completed run", report)
	}
	if len(repo.All("mission")) == 0 {
		t.Error("preflight should have filled the pool to its floor")
	}
}

func TestDispatchBackfill(t *testing.T) {
	d, repo := newTestDispatcher(t)

	result, err := d.Dispatch(context.Background(), BackfillJob{Category: "mission", Role: models.RoleNavigator, Need: 2})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	br, ok := result.(pool.BackfillResult)
	if !ok {
		t.Fatalf("result type = %T, want pool.BackfillResult", result)
	}
	if !br.OK || br.Committed != 2 {
		t.Errorf("result = %+v, want 2 committed", br)
	}
	if got := len(repo.All("mission")); got != 2 {
		t.Errorf("pool holds %d variants, want 2", got)
	}
}

func TestDispatchValidationErrorsSurface(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if _, err := d.Dispatch(context.Background(), MissionJob{Category: "nope", Role: models.RoleCadet}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want validation error", err)
	}
}
