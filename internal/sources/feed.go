package sources

import (
	"maps"
	"time"

	"github.com/mmcdole/gofeed"

	"sift/internal/models"
)

// feedItems converts gofeed entries into items, filtering by the lookback
// cutoff. Entries without a title or link are skipped; entries without a
// parseable timestamp are treated as just published.
func feedItems(feed *gofeed.Feed, sourceTag string, metadata map[string]any, cutoff time.Time) []models.IngestedItem {
	now := time.Now().UTC()

	var items []models.IngestedItem
	for _, entry := range feed.Items {
		if entry.Title == "" || entry.Link == "" {
			continue
		}

		published := entryTime(entry, now)
		if !published.After(cutoff) {
			continue
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		items = append(items, models.IngestedItem{
			ID:        models.ItemID(entry.Link),
			Source:    sourceTag,
			Title:     entry.Title,
			URL:       entry.Link,
			Content:   stripHTML(content),
			Author:    entryAuthor(entry),
			CreatedAt: published,
			Metadata:  maps.Clone(metadata),
		})
	}
	return items
}

func entryTime(entry *gofeed.Item, fallback time.Time) time.Time {
	switch {
	case entry.PublishedParsed != nil:
		return entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		return entry.UpdatedParsed.UTC()
	}
	return fallback
}

func entryAuthor(entry *gofeed.Item) string {
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		return entry.Authors[0].Name
	}
	return ""
}
