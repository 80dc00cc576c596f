package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"missiondeck/internal/config"
	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/services"
	"missiondeck/internal/gate"
	"missiondeck/internal/repository/memory"
	"missiondeck/internal/service/dedup"
)

// fakeGenerator scripts Generate via fn, which receives the zero-based call
// number so tests can vary output per call.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	heavy bool
	fn    func(req services.GenerateRequest, call int) (*models.ContentPlan, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, req services.GenerateRequest) (*models.ContentPlan, error) {
	g.mu.Lock()
	call := g.calls
	g.calls++
	g.mu.Unlock()
	return g.fn(req, call)
}

func (g *fakeGenerator) GenerationHeavy() bool { return g.heavy }

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeSource struct{ gen services.ContentGenerator }

func (s fakeSource) Get(string) (services.ContentGenerator, error) { return s.gen, nil }

// uniquePlans yields a distinct plan per call: distinct titles and fully
// disjoint topic sets, so neither dedup tier ever fires.
func uniquePlans(req services.GenerateRequest, call int) (*models.ContentPlan, error) {
	return &models.ContentPlan{
		Title:        fmt.Sprintf("Mission %d", call),
		Introduction: "Welcome, explorer! Generated content.",
		Topics: []models.Topic{
			{Title: fmt.Sprintf("Topic %d-a", call), Summary: "summary a"},
			{Title: fmt.Sprintf("Topic %d-b", call), Summary: "summary b"},
		},
	}, nil
}

func testCatalog(pool models.PoolPolicy, kind models.GenerationKind) *config.Catalog {
	return &config.Catalog{
		Categories: []models.Category{
			{
				Name:  "mission",
				Title: "Deep Space Mission Briefing",
				Kind:  kind,
				Hints: []string{"mars", "luna"},
				Pool:  pool,
			},
		},
	}
}

func newTestEngine(t *testing.T, catalog *config.Catalog, gen services.ContentGenerator, g *gate.Gate) (*Engine, *memory.VariantRepository) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	repo := memory.NewVariantRepository()
	if g == nil {
		g = gate.New(2, 32, logger)
	}
	detector := dedup.New(repo, 0, 0, logger)
	engine := NewEngine(repo, detector, fakeSource{gen}, g, catalog, EngineConfig{
		FreshMaxAge:        14 * 24 * time.Hour,
		PerPassCap:         3,
		RetryAttempts:      3,
		QueueBusyThreshold: 2,
	}, logger)
	return engine, repo
}

func seedVariant(t *testing.T, repo *memory.VariantRepository, category string, role models.Role, plan *models.ContentPlan, age time.Duration) *models.Variant {
	t.Helper()
	v := models.NewVariant(category, role, plan)
	v.GeneratedAt = time.Now().UTC().Add(-age)
	if err := repo.InsertBatch(context.Background(), []*models.Variant{v}); err != nil {
		t.Fatalf("seeding variant: %v", err)
	}
	return v
}

func TestEnsurePairFillsToMin(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)
	gen := &fakeGenerator{fn: uniquePlans}
	engine, repo := newTestEngine(t, catalog, gen, nil)

	report, err := engine.EnsurePair(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("EnsurePair: %v", err)
	}
	if report.Generated != 2 || report.Failed != 0 || report.Aborted {
		t.Errorf("report = %+v, want 2 generated, 0 failed", report)
	}
	if got := len(repo.All("mission")); got != 2 {
		t.Errorf("pool holds %d variants, want 2", got)
	}

	// A second pass over a satisfied pool generates nothing.
	report, err = engine.EnsurePair(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("second EnsurePair: %v", err)
	}
	if report.Generated != 0 {
		t.Errorf("second pass generated %d, want 0", report.Generated)
	}
	if gen.callCount() != 2 {
		t.Errorf("generator called %d times, want 2", gen.callCount())
	}
}

func TestEnsurePairTopsUpFreshness(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)
	gen := &fakeGenerator{fn: uniquePlans}
	engine, repo := newTestEngine(t, catalog, gen, nil)

	// Pool at the floor but entirely stale.
	stale := 30 * 24 * time.Hour
	seedVariant(t, repo, "mission", models.RoleExplorer,
		&models.ContentPlan{Title: "Old One", Topics: []models.Topic{{Title: "old a"}}}, stale)
	seedVariant(t, repo, "mission", models.RoleExplorer,
		&models.ContentPlan{Title: "Old Two", Topics: []models.Topic{{Title: "old b"}}}, stale)

	report, err := engine.EnsurePair(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("EnsurePair: %v", err)
	}
	if report.Generated != 2 {
		t.Errorf("generated %d, want 2 fresh top-ups", report.Generated)
	}
	if got := len(repo.All("mission")); got != 4 {
		t.Errorf("pool holds %d variants, want 4 (stale kept, fresh added)", got)
	}
}

func TestEnsurePairRespectsPerPassCap(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 10, Max: 20, FreshTarget: 10}, models.KindLLM)
	gen := &fakeGenerator{fn: uniquePlans}
	engine, _ := newTestEngine(t, catalog, gen, nil)

	report, err := engine.EnsurePair(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("EnsurePair: %v", err)
	}
	if report.Generated != 3 {
		t.Errorf("generated %d, want per-pass cap of 3", report.Generated)
	}
}

func TestEnsurePairSkipsHeavyWhenGateBusy(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)
	gen := &fakeGenerator{heavy: true, fn: uniquePlans}

	logger := slog.New(slog.DiscardHandler)
	g := gate.New(1, 32, logger)
	engine, _ := newTestEngine(t, catalog, gen, g)

	// Occupy the gate's only slot with interactive-style work. The engine's
	// busy threshold is 2, so enqueue a second task as well.
	block := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gate.Submit(context.Background(), g, func(ctx context.Context) (struct{}, error) {
				started <- struct{}{}
				<-block
				return struct{}{}, nil
			})
		}()
	}
	<-started // running=1, and shortly queued=1

	for g.QueuedCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	report, err := engine.EnsurePair(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("EnsurePair: %v", err)
	}
	if !report.Skipped {
		t.Error("heavy category should be skipped while the gate is busy")
	}
	if gen.callCount() != 0 {
		t.Errorf("generator called %d times during a skipped pass", gen.callCount())
	}

	close(block)
	wg.Wait()
}

func TestEnsurePairZeroBusyThresholdDefaults(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)
	gen := &fakeGenerator{heavy: true, fn: uniquePlans}

	// Busy(0) is always true, so a zero threshold left as-is would skip
	// every heavy pass even on an idle gate.
	logger := slog.New(slog.DiscardHandler)
	repo := memory.NewVariantRepository()
	g := gate.New(2, 32, logger)
	engine := NewEngine(repo, dedup.New(repo, 0, 0, logger), fakeSource{gen}, g, catalog, EngineConfig{
		FreshMaxAge:   14 * 24 * time.Hour,
		PerPassCap:    3,
		RetryAttempts: 3,
	}, logger)

	report, err := engine.EnsurePair(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("EnsurePair: %v", err)
	}
	if report.Skipped {
		t.Fatal("heavy pass skipped on an idle gate")
	}
	if report.Generated != 2 {
		t.Errorf("generated %d, want 2", report.Generated)
	}
}

func TestBackfillStopsOnDuplicateStreak(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)

	// Every call returns the same plan; after seeding it, every attempt is an
	// exact duplicate.
	same := &models.ContentPlan{
		Title:  "The Only Mission",
		Topics: []models.Topic{{Title: "the same topic", Summary: "same"}},
	}
	gen := &fakeGenerator{fn: func(services.GenerateRequest, int) (*models.ContentPlan, error) {
		return same, nil
	}}
	engine, repo := newTestEngine(t, catalog, gen, nil)
	seedVariant(t, repo, "mission", models.RoleExplorer, same, time.Hour)

	result, err := engine.BackfillRole(context.Background(), "mission", models.RoleExplorer, 3)
	if err != nil {
		t.Fatalf("BackfillRole: %v", err)
	}
	if result.OK {
		t.Error("backfill against an exhausted generator must not report OK")
	}
	if result.Committed != 0 {
		t.Errorf("committed %d, want 0", result.Committed)
	}
	if result.Reason != "duplicate streak" {
		t.Errorf("reason = %q, want \"duplicate streak\"", result.Reason)
	}

	// Two failed slots at 3 attempts each: the third slot never runs.
	if gen.callCount() != 6 {
		t.Errorf("generator called %d times, want 6 (2 slots x 3 attempts)", gen.callCount())
	}
	if got := len(repo.All("mission")); got != 1 {
		t.Errorf("pool holds %d variants, want the 1 seeded", got)
	}
}

func TestBackfillRecoversAfterSingleFailure(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)

	// One slot's worth of hard failures, then unique plans: the streak resets
	// and the remaining slots fill.
	gen := &fakeGenerator{}
	gen.fn = func(req services.GenerateRequest, call int) (*models.ContentPlan, error) {
		if call < 3 {
			return nil, errors.New("model unavailable")
		}
		return uniquePlans(req, call)
	}
	engine, _ := newTestEngine(t, catalog, gen, nil)

	result, err := engine.BackfillRole(context.Background(), "mission", models.RoleExplorer, 3)
	if err != nil {
		t.Fatalf("BackfillRole: %v", err)
	}
	if result.OK {
		t.Error("a failed slot means the requested count was not met")
	}
	if result.Committed != 2 {
		t.Errorf("committed %d, want 2", result.Committed)
	}
	if result.Reason != "generation failed" {
		t.Errorf("reason = %q, want \"generation failed\"", result.Reason)
	}
}

func TestEnsurePairEvictsOldestBeyondMax(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 1, Max: 3, FreshTarget: 1}, models.KindLLM)
	gen := &fakeGenerator{fn: uniquePlans}
	engine, repo := newTestEngine(t, catalog, gen, nil)

	var oldest []*models.Variant
	for i := 0; i < 5; i++ {
		v := seedVariant(t, repo, "mission", models.RoleExplorer,
			&models.ContentPlan{
				Title:  fmt.Sprintf("Seeded %d", i),
				Topics: []models.Topic{{Title: fmt.Sprintf("seed topic %d", i)}},
			},
			time.Duration(10-i)*time.Hour) // i=0 is oldest
		if i < 2 {
			oldest = append(oldest, v)
		}
	}

	report, err := engine.EnsurePair(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("EnsurePair: %v", err)
	}
	if report.Evicted != 2 {
		t.Errorf("evicted %d, want 2", report.Evicted)
	}

	remaining := repo.All("mission")
	if len(remaining) != 3 {
		t.Fatalf("pool holds %d variants, want 3", len(remaining))
	}
	for _, v := range remaining {
		for _, old := range oldest {
			if v.ID == old.ID {
				t.Errorf("oldest variant %s survived eviction", v.ID)
			}
		}
	}
}

func TestEnsurePairDropsPlaceholdersOnceRealContentLands(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)
	gen := &fakeGenerator{fn: uniquePlans}
	engine, repo := newTestEngine(t, catalog, gen, nil)

	// A placeholder persisted during an outage. It is still fresh, so only
	// the title-based sweep can remove it.
	seedVariant(t, repo, "mission", models.RoleExplorer,
		&models.ContentPlan{Title: PlaceholderTitle, Introduction: "We're sorry, fresh mission content is still being prepared. Please try again shortly."},
		time.Minute)

	report, err := engine.EnsurePair(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("EnsurePair: %v", err)
	}
	if report.Generated == 0 {
		t.Fatal("expected the pass to generate real content")
	}
	if report.Evicted != 1 {
		t.Errorf("evicted %d, want the 1 placeholder", report.Evicted)
	}
	for _, v := range repo.All("mission") {
		if v.Plan.Title == PlaceholderTitle {
			t.Error("placeholder survived a pass that produced real content")
		}
	}
}

func TestEnsurePairKeepsPlaceholderWhilePoolHasNothingElse(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)
	gen := &fakeGenerator{fn: func(services.GenerateRequest, int) (*models.ContentPlan, error) {
		return nil, errors.New("model unavailable")
	}}
	engine, repo := newTestEngine(t, catalog, gen, nil)

	seedVariant(t, repo, "mission", models.RoleExplorer,
		&models.ContentPlan{Title: PlaceholderTitle}, time.Minute)

	report, err := engine.EnsurePair(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("EnsurePair: %v", err)
	}
	if report.Evicted != 0 {
		t.Errorf("evicted %d, want 0 while no real variant exists", report.Evicted)
	}
	if got := len(repo.All("mission")); got != 1 {
		t.Errorf("pool holds %d variants, want the placeholder kept", got)
	}
}

func TestGenerateOneHardFailure(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)
	gen := &fakeGenerator{fn: func(services.GenerateRequest, int) (*models.ContentPlan, error) {
		return nil, errors.New("model unavailable")
	}}
	engine, _ := newTestEngine(t, catalog, gen, nil)

	_, err := engine.GenerateOne(context.Background(), "mission", models.RoleExplorer)
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("error = %v, want ErrGenerationFailed", err)
	}
	if gen.callCount() != 3 {
		t.Errorf("generator called %d times, want the 3 configured attempts", gen.callCount())
	}
}

func TestGenerateOneRetriesWithRotatedSeed(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)

	var seeds []int
	var mu sync.Mutex
	gen := &fakeGenerator{}
	gen.fn = func(req services.GenerateRequest, call int) (*models.ContentPlan, error) {
		mu.Lock()
		seeds = append(seeds, req.Seed)
		mu.Unlock()
		if call < 2 {
			return nil, errors.New("flaky")
		}
		return uniquePlans(req, call)
	}
	engine, _ := newTestEngine(t, catalog, gen, nil)

	v, err := engine.GenerateOne(context.Background(), "mission", models.RoleExplorer)
	if err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	if v == nil || v.Plan == nil {
		t.Fatal("expected a persisted variant")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{0, 1, 2}
	if len(seeds) != len(want) {
		t.Fatalf("saw seeds %v, want %v", seeds, want)
	}
	for i := range want {
		if seeds[i] != want[i] {
			t.Errorf("attempt %d used seed %d, want %d", i, seeds[i], want[i])
		}
	}
}

func TestEnsurePairUnknownCategory(t *testing.T) {
	catalog := testCatalog(models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 2}, models.KindLLM)
	engine, _ := newTestEngine(t, catalog, &fakeGenerator{fn: uniquePlans}, nil)

	_, err := engine.EnsurePair(context.Background(), "nope", models.RoleExplorer)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want a validation error", err)
	}
}
