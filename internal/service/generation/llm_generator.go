package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"golang.org/x/sync/errgroup"

	"missiondeck/internal/domain"
	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/services"
)

const mediaPerTopic = 2

// textModel is the slice of the provider surface the generator uses.
type textModel interface {
	GenerateResponse(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error)
}

// LLMGenerator produces plans with the rate-limited text model and decorates
// topics with illustrative media. Callers submit Generate through the
// concurrency gate; the generator itself never queues.
type LLMGenerator struct {
	category *models.Category
	provider textModel
	model    string
	media    services.MediaSearcher
	soft     time.Duration
	hard     time.Duration
	logger   *slog.Logger
}

// NewLLMGenerator creates a generator for one generation-heavy category.
func NewLLMGenerator(
	category *models.Category,
	provider textModel,
	model string,
	media services.MediaSearcher,
	softTimeout, hardTimeout time.Duration,
	logger *slog.Logger,
) *LLMGenerator {
	return &LLMGenerator{
		category: category,
		provider: provider,
		model:    model,
		media:    media,
		soft:     softTimeout,
		hard:     hardTimeout,
		logger:   logger,
	}
}

// GenerationHeavy always reports true: this generator holds a model slot.
func (g *LLMGenerator) GenerationHeavy() bool { return true }

// Generate calls the model, parses the plan and attaches media. Malformed
// model output is a generation failure, not a panic or a partial plan.
func (g *LLMGenerator) Generate(ctx context.Context, req services.GenerateRequest) (*models.ContentPlan, error) {
	prompt := buildPrompt(g.category, req)

	raw, err := g.callModel(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	plan, err := parsePlan(raw)
	if err != nil {
		g.logger.Warn("model returned malformed plan",
			"category", g.category.Name,
			"role", req.Role,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	g.attachMedia(ctx, plan)
	return plan, nil
}

// callModel runs one provider call under the soft/hard timeout split: past
// the soft limit the call is logged as slow but allowed to continue; past
// the hard limit it is cancelled and treated as stuck.
func (g *LLMGenerator) callModel(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.hard)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		resp, err := g.provider.GenerateResponse(ctx, &llmprovider.GenerateRequest{
			Model: g.model,
			Messages: []llmprovider.Message{
				{
					Role: "user",
					Blocks: []*llmprovider.Block{
						{BlockType: "text", TextContent: &prompt},
					},
				},
			},
		})
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{text: collectText(resp)}
	}()

	soft := time.NewTimer(g.soft)
	defer soft.Stop()

	for {
		select {
		case r := <-done:
			return r.text, r.err
		case <-soft.C:
			g.logger.Warn("model call past soft timeout, still waiting",
				"category", g.category.Name,
				"soft_timeout", g.soft,
			)
		case <-ctx.Done():
			return "", fmt.Errorf("model call aborted: %w", ctx.Err())
		}
	}
}

// attachMedia decorates each topic with search results, fanning out with a
// bounded group. Media is garnish: any failure leaves the topic bare.
func (g *LLMGenerator) attachMedia(ctx context.Context, plan *models.ContentPlan) {
	if g.media == nil {
		return
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for i := range plan.Topics {
		topic := &plan.Topics[i]
		eg.Go(func() error {
			query := topic.Title
			if len(topic.Keywords) > 0 {
				query = topic.Keywords[0]
			}
			items, err := g.media.Search(gctx, query, models.MediaKindImage, mediaPerTopic)
			if err != nil {
				g.logger.Debug("media search failed", "query", query, "error", err)
				return nil
			}
			topic.Media = items
			return nil
		})
	}
	_ = eg.Wait()
}

// collectText concatenates the text blocks of a model response.
func collectText(resp *llmprovider.GenerateResponse) string {
	var out string
	for _, block := range resp.Blocks {
		if block.BlockType == "text" && block.TextContent != nil {
			out += *block.TextContent
		}
	}
	return out
}

var _ services.ContentGenerator = (*LLMGenerator)(nil)
