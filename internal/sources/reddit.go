package sources

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"sift/internal/models"
)

// Reddit fetches subreddit RSS endpoints. Reddit serves these without
// authentication but rejects the default Go user agent, so the adapter
// rides on the browser-header client.
type Reddit struct {
	feeds  []string
	parser *gofeed.Parser
}

// NewReddit creates the adapter over the given subreddit feed URLs.
func NewReddit(feedURLs []string) *Reddit {
	parser := gofeed.NewParser()
	parser.Client = newClient()
	return &Reddit{
		feeds:  feedURLs,
		parser: parser,
	}
}

func (r *Reddit) Name() string {
	return "Reddit"
}

// FetchItems parses every subreddit feed. Failing feeds are logged and
// skipped.
func (r *Reddit) FetchItems(ctx context.Context, lookback time.Duration) ([]models.IngestedItem, error) {
	cutoff := time.Now().UTC().Add(-lookback)

	var items []models.IngestedItem
	for _, feedURL := range r.feeds {
		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			slog.Warn("failed to fetch subreddit", "url", feedURL, "error", err)
			continue
		}

		tag := "Reddit"
		if sub := subredditFromURL(feedURL); sub != "" {
			tag = "Reddit: " + sub
		}
		metadata := map[string]any{
			"feed_url":  feedURL,
			"subreddit": feed.Title,
		}

		items = append(items, feedItems(feed, tag, metadata, cutoff)...)
	}
	return items, nil
}

// subredditFromURL pulls "r/<name>" out of a subreddit feed URL, e.g.
// "https://www.reddit.com/r/MachineLearning/.rss" -> "r/MachineLearning".
func subredditFromURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return "r/" + parts[i+1]
		}
	}
	return ""
}
