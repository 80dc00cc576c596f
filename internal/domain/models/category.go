package models

// GenerationKind says how a category's plans are produced.
type GenerationKind string

const (
	// KindLLM marks a generation-heavy category backed by the rate-limited
	// generative model.
	KindLLM GenerationKind = "llm"
	// KindMedia marks a cheap category assembled from media lookups only.
	KindMedia GenerationKind = "media"
)

// PoolPolicy bounds one (category, role) pool.
type PoolPolicy struct {
	Min         int `yaml:"min" json:"min"`                   // hard floor
	Max         int `yaml:"max" json:"max"`                   // hard ceiling, evict oldest beyond
	FreshTarget int `yaml:"fresh_target" json:"fresh_target"` // target count younger than freshness max age
}

// Category is one content template/domain with its own generation logic and
// its own pool. Catalog order is cost order: cheapest, most reliable
// categories come first so a budget-bounded sweep covers them before
// spending on the generative model.
type Category struct {
	Name  string         `yaml:"name" json:"name"`
	Title string         `yaml:"title" json:"title"`
	Kind  GenerationKind `yaml:"kind" json:"kind"`
	Hints []string       `yaml:"hints" json:"hints"` // prompt topic hints / media queries
	Pool  PoolPolicy     `yaml:"pool" json:"pool"`
}

// GenerationHeavy reports whether the category depends on the generative
// model.
func (c *Category) GenerationHeavy() bool {
	return c.Kind == KindLLM
}
