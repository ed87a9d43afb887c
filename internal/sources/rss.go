package sources

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"sift/internal/models"
)

// RSS fetches the configured feed list. Items are tagged "RSS: <feed title>"
// so the digest names the actual publication.
type RSS struct {
	feeds  []string
	parser *gofeed.Parser
}

// NewRSS creates the adapter over the given feed URLs.
func NewRSS(feedURLs []string) *RSS {
	parser := gofeed.NewParser()
	parser.Client = newClient()
	return &RSS{
		feeds:  feedURLs,
		parser: parser,
	}
}

func (r *RSS) Name() string {
	return "RSS"
}

// FetchItems parses every configured feed. Failing feeds are logged and
// skipped; the adapter only errors when it has no feeds at all.
func (r *RSS) FetchItems(ctx context.Context, lookback time.Duration) ([]models.IngestedItem, error) {
	cutoff := time.Now().UTC().Add(-lookback)

	var items []models.IngestedItem
	for _, feedURL := range r.feeds {
		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			slog.Warn("failed to fetch feed", "url", feedURL, "error", err)
			continue
		}

		tag := "RSS"
		if feed.Title != "" {
			tag = "RSS: " + feed.Title
		}
		metadata := map[string]any{"feed_url": feedURL}

		items = append(items, feedItems(feed, tag, metadata, cutoff)...)
	}
	return items, nil
}
