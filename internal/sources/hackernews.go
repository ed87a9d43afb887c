package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sift/internal/models"
)

const (
	hnBaseURL = "https://hacker-news.firebaseio.com/v0"

	// hnStoriesPerList caps how many ids are taken from each story list.
	// Top and show overlap, so the effective pool is usually smaller.
	hnStoriesPerList = 30

	hnMaxConcurrent  = 10
	hnExtractWordCap = 2000
)

// hnStoryLists are the firebase endpoints polled each run.
var hnStoryLists = []string{"topstories", "showstories"}

// HackerNews fetches stories from the firebase API. Link-only stories can
// optionally have their article text extracted so the semantic filters have
// a body to score.
type HackerNews struct {
	baseURL        string
	client         *http.Client
	extractContent bool
}

// NewHackerNews creates the adapter. extractContent enables best-effort
// readability extraction for stories that carry a URL but no text.
func NewHackerNews(extractContent bool) *HackerNews {
	return &HackerNews{
		baseURL:        hnBaseURL,
		client:         newClient(),
		extractContent: extractContent,
	}
}

func (h *HackerNews) Name() string {
	return "HackerNews"
}

// FetchItems pulls the top and show story lists, fetches story details
// concurrently, and keeps stories newer than the lookback window.
func (h *HackerNews) FetchItems(ctx context.Context, lookback time.Duration) ([]models.IngestedItem, error) {
	ids := make(map[int]struct{})
	var listErrs []error

	for _, list := range hnStoryLists {
		listIDs, err := h.fetchIDs(ctx, list)
		if err != nil {
			slog.Warn("failed to fetch story list", "list", list, "error", err)
			listErrs = append(listErrs, err)
			continue
		}
		if len(listIDs) > hnStoriesPerList {
			listIDs = listIDs[:hnStoriesPerList]
		}
		for _, id := range listIDs {
			ids[id] = struct{}{}
		}
	}
	if len(ids) == 0 && len(listErrs) > 0 {
		return nil, fmt.Errorf("fetching story lists: %w", errors.Join(listErrs...))
	}

	cutoff := time.Now().UTC().Add(-lookback)

	var (
		items []models.IngestedItem
		mu    sync.Mutex
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(hnMaxConcurrent)

	for id := range ids {
		g.Go(func() error {
			item, err := h.fetchStory(ctx, id)
			if err != nil {
				slog.Warn("failed to fetch story", "id", id, "error", err)
				return nil
			}
			if item == nil || !item.CreatedAt.After(cutoff) {
				return nil
			}

			if h.extractContent && item.Content == "" {
				h.fillContent(item)
			}

			mu.Lock()
			items = append(items, *item)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching stories: %w", err)
	}

	return items, nil
}

// hnStory is the firebase item payload, reduced to what the adapter reads.
type hnStory struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

// fetchStory retrieves one story. Non-stories (jobs, comments, deleted
// entries) return nil without an error.
func (h *HackerNews) fetchStory(ctx context.Context, id int) (*models.IngestedItem, error) {
	var story hnStory
	if err := h.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), &story); err != nil {
		return nil, err
	}
	if story.Type != "story" || story.Title == "" {
		return nil, nil
	}

	// Ask/Show posts without an external link live on the HN item page.
	url := story.URL
	if url == "" {
		url = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", id)
	}

	return &models.IngestedItem{
		ID:        models.ItemID(url),
		Source:    "HackerNews",
		Title:     story.Title,
		URL:       url,
		Content:   stripHTML(story.Text),
		Author:    story.By,
		CreatedAt: time.Unix(story.Time, 0).UTC(),
		RawScore:  story.Score,
		Metadata: map[string]any{
			"hn_id":    id,
			"comments": story.Descendants,
			"score":    story.Score,
		},
	}, nil
}

// fillContent extracts readable article text for a link-only story. Failures
// are ignored: an empty body only weakens semantic scoring for this item.
func (h *HackerNews) fillContent(item *models.IngestedItem) {
	text, err := extractReadable(item.URL)
	if err != nil {
		slog.Debug("article extraction failed", "url", item.URL, "error", err)
		return
	}
	item.Content = truncateWords(text, hnExtractWordCap)
}

func (h *HackerNews) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("requesting %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
