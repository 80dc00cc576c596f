package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/services"
)

// MediaGenerator assembles plans for cheap categories from media lookups
// only, never touching the text model. One topic per catalog hint, rotated
// by seed so consecutive variants lead with different hints.
type MediaGenerator struct {
	category *models.Category
	media    services.MediaSearcher
	logger   *slog.Logger
}

// NewMediaGenerator creates a generator for one media-only category.
func NewMediaGenerator(category *models.Category, media services.MediaSearcher, logger *slog.Logger) *MediaGenerator {
	return &MediaGenerator{
		category: category,
		media:    media,
		logger:   logger,
	}
}

// GenerationHeavy always reports false: no model slot involved.
func (g *MediaGenerator) GenerationHeavy() bool { return false }

// Generate builds a plan whose topics mirror the catalog hints, illustrated
// by search results. A plan with no media at all is a failure; a partially
// illustrated one is fine.
func (g *MediaGenerator) Generate(ctx context.Context, req services.GenerateRequest) (*models.ContentPlan, error) {
	hints := rotate(g.category.Hints, req.Seed)
	if len(hints) == 0 {
		return nil, fmt.Errorf("%w: category %s has no hints", domain.ErrGenerationFailed, g.category.Name)
	}
	// Each seed covers a different slice of the hint list so consecutive
	// variants don't share a topic set and trip the near-duplicate check.
	if len(hints) > 2 {
		hints = hints[:2]
	}

	plan := &models.ContentPlan{
		Title:        fmt.Sprintf("%s: %s", g.category.Title, titleCase(hints[0])),
		Introduction: fmt.Sprintf("Welcome, explorer! Here is a quick look at %s and more.", hints[0]),
	}

	attached := 0
	for _, hint := range hints {
		items, err := g.media.Search(ctx, hint, models.MediaKindImage, mediaPerTopic)
		if err != nil {
			g.logger.Debug("media search failed", "query", hint, "error", err)
			items = nil
		}
		attached += len(items)
		plan.Topics = append(plan.Topics, models.Topic{
			Title:    titleCase(hint),
			Summary:  fmt.Sprintf("A visual tour of %s.", hint),
			Keywords: []string{hint},
			Media:    items,
		})
	}

	if attached == 0 {
		return nil, fmt.Errorf("%w: no media found for %s", domain.ErrGenerationFailed, g.category.Name)
	}
	return plan, nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

var _ services.ContentGenerator = (*MediaGenerator)(nil)
