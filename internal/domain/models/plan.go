package models

// MediaKind identifies the type of a media attachment.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// MediaItem is one illustrative attachment on a topic.
type MediaItem struct {
	Title string    `json:"title"`
	Href  string    `json:"href"`
	Kind  MediaKind `json:"kind"`
}

// Topic is one section of a mission package.
type Topic struct {
	Title    string      `json:"title"`
	Summary  string      `json:"summary"`
	Keywords []string    `json:"keywords"`
	Media    []MediaItem `json:"media"`
}

// ContentPlan is the generated mission package: pure value data with no
// back-references, safe to copy and serialize.
type ContentPlan struct {
	Title        string  `json:"title"`
	Introduction string  `json:"introduction"`
	Topics       []Topic `json:"topics"`
}

// Clone returns a deep copy of the plan. Retrieval personalizes the copy so
// pooled variants are never mutated.
func (p *ContentPlan) Clone() *ContentPlan {
	out := &ContentPlan{
		Title:        p.Title,
		Introduction: p.Introduction,
		Topics:       make([]Topic, len(p.Topics)),
	}
	for i, t := range p.Topics {
		ct := Topic{
			Title:    t.Title,
			Summary:  t.Summary,
			Keywords: append([]string(nil), t.Keywords...),
			Media:    append([]MediaItem(nil), t.Media...),
		}
		out.Topics[i] = ct
	}
	return out
}
