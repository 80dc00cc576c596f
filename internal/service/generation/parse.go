package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"missiondeck/internal/domain/models"
)

// planPayload is the JSON shape the model is asked to produce.
type planPayload struct {
	Title        string `json:"title"`
	Introduction string `json:"introduction"`
	Topics       []struct {
		Title    string   `json:"title"`
		Summary  string   `json:"summary"`
		Keywords []string `json:"keywords"`
	} `json:"topics"`
}

// parsePlan extracts a ContentPlan from raw model output. Models sometimes
// wrap the JSON in code fences or leading prose despite instructions, so the
// parser cuts to the outermost object before decoding. Anything that still
// fails to decode, or decodes to an unusable plan, is malformed output.
func parsePlan(raw string) (*models.ContentPlan, error) {
	trimmed := extractObject(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	if strings.TrimSpace(payload.Title) == "" {
		return nil, fmt.Errorf("plan has no title")
	}
	if len(payload.Topics) == 0 {
		return nil, fmt.Errorf("plan has no topics")
	}

	plan := &models.ContentPlan{
		Title:        strings.TrimSpace(payload.Title),
		Introduction: strings.TrimSpace(payload.Introduction),
	}
	for _, t := range payload.Topics {
		if strings.TrimSpace(t.Title) == "" {
			continue
		}
		plan.Topics = append(plan.Topics, models.Topic{
			Title:    strings.TrimSpace(t.Title),
			Summary:  strings.TrimSpace(t.Summary),
			Keywords: t.Keywords,
		})
	}
	if len(plan.Topics) == 0 {
		return nil, fmt.Errorf("plan has no usable topics")
	}
	return plan, nil
}

// extractObject returns the substring from the first '{' to the matching
// last '}' of raw, or "" when raw holds no object.
func extractObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
