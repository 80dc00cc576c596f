package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"missiondeck/internal/domain/models"
	"missiondeck/internal/domain/services"
)

// HTTPMediaSearcher queries an Openverse-compatible media API. The service
// is an external collaborator: errors surface to the caller, which treats
// them as "no media" rather than failing generation.
type HTTPMediaSearcher struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPMediaSearcher creates a searcher against baseURL.
func NewHTTPMediaSearcher(baseURL string, logger *slog.Logger) *HTTPMediaSearcher {
	return &HTTPMediaSearcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type mediaSearchResponse struct {
	Results []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"results"`
}

// Search returns up to limit media items matching query.
func (s *HTTPMediaSearcher) Search(ctx context.Context, query string, kind models.MediaKind, limit int) ([]models.MediaItem, error) {
	endpoint := fmt.Sprintf("%s/%ss/?q=%s&page_size=%s",
		s.baseURL, kind, url.QueryEscape(query), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media search: unexpected status %d", resp.StatusCode)
	}

	var payload mediaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode media response: %w", err)
	}

	items := make([]models.MediaItem, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.URL == "" {
			continue
		}
		title := r.Title
		if title == "" {
			title = query
		}
		items = append(items, models.MediaItem{Title: title, Href: r.URL, Kind: kind})
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

var _ services.MediaSearcher = (*HTTPMediaSearcher)(nil)
