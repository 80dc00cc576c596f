package config

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"missiondeck/internal/domain/models"
)

// Catalog is the ordered list of content categories. File order is cost
// order: maintenance sweeps cheapest categories first.
type Catalog struct {
	Categories []models.Category `yaml:"categories"`
}

// LoadCatalog reads the category catalog from path, or returns the built-in
// default catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &cat, nil
}

// Validate checks every catalog entry for usable pool bounds.
func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog has no categories")
	}
	seen := make(map[string]bool, len(c.Categories))
	for i := range c.Categories {
		cat := &c.Categories[i]
		if seen[cat.Name] {
			return fmt.Errorf("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true

		err := validation.ValidateStruct(cat,
			validation.Field(&cat.Name, validation.Required),
			validation.Field(&cat.Kind, validation.Required, validation.In(models.KindLLM, models.KindMedia)),
			validation.Field(&cat.Pool, validation.By(validatePool)),
		)
		if err != nil {
			return fmt.Errorf("category %q: %w", cat.Name, err)
		}
	}
	return nil
}

// Get returns the catalog entry for name, or nil.
func (c *Catalog) Get(name string) *models.Category {
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			return &c.Categories[i]
		}
	}
	return nil
}

func validatePool(value interface{}) error {
	p, ok := value.(models.PoolPolicy)
	if !ok {
		return fmt.Errorf("not a pool policy")
	}
	if p.Min < 0 || p.Max < 1 {
		return fmt.Errorf("pool bounds must be positive")
	}
	if p.Min > p.Max {
		return fmt.Errorf("pool min %d exceeds max %d", p.Min, p.Max)
	}
	if p.FreshTarget > p.Max {
		return fmt.Errorf("fresh target %d exceeds max %d", p.FreshTarget, p.Max)
	}
	return nil
}

// DefaultCatalog covers the stock mission categories, cheapest first.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Categories: []models.Category{
			{
				Name:  "skyTour",
				Title: "Tonight's Sky Tour",
				Kind:  models.KindMedia,
				Hints: []string{"night sky", "constellations", "planets tonight"},
				Pool:  models.PoolPolicy{Min: 2, Max: 8, FreshTarget: 2},
			},
			{
				Name:  "spacePoster",
				Title: "Space Poster Mission",
				Kind:  models.KindLLM,
				Hints: []string{"nebulae", "galaxies", "space telescopes"},
				Pool:  models.PoolPolicy{Min: 2, Max: 10, FreshTarget: 3},
			},
			{
				Name:  "mission",
				Title: "Deep Space Mission Briefing",
				Kind:  models.KindLLM,
				Hints: []string{"mars exploration", "lunar bases", "asteroid mining", "space probes"},
				Pool:  models.PoolPolicy{Min: 2, Max: 12, FreshTarget: 3},
			},
		},
	}
}
