package generation

import (
	"fmt"
	"strings"

	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/services"
)

// roleVoice is how the introduction should address each audience tier.
var roleVoice = map[models.Role]string{
	models.RoleExplorer:  "a curious newcomer to space science",
	models.RoleCadet:     "a student training for their first mission",
	models.RoleNavigator: "a learner comfortable with the fundamentals",
	models.RoleCommander: "an advanced learner who wants depth and nuance",
}

// buildPrompt constructs the single user message sent to the text model.
// The seed rotates which hints lead and asks for a different angle, so a
// retried slot steers away from content the pool already rejected.
func buildPrompt(cat *models.Category, req services.GenerateRequest) string {
	hints := rotate(cat.Hints, req.Seed)
	voice := roleVoice[req.Role]
	if voice == "" {
		voice = roleVoice[models.DefaultRole]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a short educational mission package for the %q theme.\n", cat.Title)
	fmt.Fprintf(&b, "The audience is %s.\n", voice)
	if len(hints) > 0 {
		fmt.Fprintf(&b, "Draw topic ideas from, but do not limit yourself to: %s.\n", strings.Join(hints, ", "))
	}
	if req.Seed > 0 {
		fmt.Fprintf(&b, "Take angle number %d on this theme: pick a different focus than the most obvious one.\n", req.Seed)
	}
	b.WriteString(`
Respond with ONLY a JSON object, no prose and no code fences, shaped as:
{
  "title": "mission title",
  "introduction": "2-3 sentence introduction addressed to the learner",
  "topics": [
    {"title": "topic title", "summary": "3-4 sentence summary", "keywords": ["k1", "k2"]}
  ]
}
Include 3 to 5 topics. Keywords are short search phrases for illustrative imagery.`)
	return b.String()
}

func rotate(hints []string, seed int) []string {
	if len(hints) == 0 {
		return nil
	}
	offset := seed % len(hints)
	out := make([]string, 0, len(hints))
	out = append(out, hints[offset:]...)
	out = append(out, hints[:offset]...)
	return out
}
