package generation

import (
	"fmt"
	"log/slog"
	"sync"

	"missiondeck/internal/config"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/services"
)

// Registry maps category names to their generators. Generators are built
// lazily and cached; the backing model provider is shared across all
// generation-heavy categories.
type Registry struct {
	mu      sync.RWMutex
	cache   map[string]services.ContentGenerator
	catalog *config.Catalog
	factory *ProviderFactory
	cfg     *config.Config
	media   services.MediaSearcher
	logger  *slog.Logger
}

// NewRegistry creates a generator registry over the catalog.
func NewRegistry(catalog *config.Catalog, factory *ProviderFactory, cfg *config.Config, media services.MediaSearcher, logger *slog.Logger) *Registry {
	return &Registry{
		cache:   make(map[string]services.ContentGenerator),
		catalog: catalog,
		factory: factory,
		cfg:     cfg,
		media:   media,
		logger:  logger,
	}
}

// Get returns the generator for a category name.
func (r *Registry) Get(category string) (services.ContentGenerator, error) {
	r.mu.RLock()
	if gen, ok := r.cache[category]; ok {
		r.mu.RUnlock()
		return gen, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen, ok := r.cache[category]; ok {
		return gen, nil
	}

	cat := r.catalog.Get(category)
	if cat == nil {
		return nil, fmt.Errorf("unknown category: %s", category)
	}

	var gen services.ContentGenerator
	switch cat.Kind {
	case models.KindLLM:
		provider, err := r.factory.GetProvider()
		if err != nil {
			return nil, fmt.Errorf("create provider for %s: %w", category, err)
		}
		gen = NewLLMGenerator(cat, provider, r.cfg.GeneratorModel, r.media, r.cfg.GenSoftTimeout, r.cfg.GenHardTimeout, r.logger)
	case models.KindMedia:
		gen = NewMediaGenerator(cat, r.media, r.logger)
	default:
		return nil, fmt.Errorf("category %s has unsupported kind %q", category, cat.Kind)
	}

	r.cache[category] = gen
	return gen, nil
}
