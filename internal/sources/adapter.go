// Package sources pulls raw content from the outside world: Hacker News,
// RSS feeds, and subreddit feeds. Adapters normalize everything into
// models.IngestedItem; relevance and dedup are downstream concerns.
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sift/internal/models"
)

// maxConcurrent bounds how many adapters fetch at once.
const maxConcurrent = 4

// Adapter is a single content source.
type Adapter interface {
	Name() string
	FetchItems(ctx context.Context, lookback time.Duration) ([]models.IngestedItem, error)
}

// Feed pairs an adapter with its lookback window.
type Feed struct {
	Adapter  Adapter
	Lookback time.Duration
}

// FailedSource records an adapter that could not fetch.
type FailedSource struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// FetchResult contains everything the enabled adapters produced and any
// per-source failures.
type FetchResult struct {
	Items  []models.IngestedItem
	Failed []FailedSource
}

// FetchAll runs every feed concurrently. A failing adapter is recorded in
// FetchResult.Failed and never aborts the batch; the run proceeds with
// whatever the other sources returned.
func FetchAll(ctx context.Context, feeds []Feed) (*FetchResult, error) {
	var (
		result FetchResult
		mu     sync.Mutex
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, feed := range feeds {
		g.Go(func() error {
			items, err := feed.Adapter.FetchItems(ctx, feed.Lookback)
			if err != nil {
				slog.Warn("source fetch failed",
					"source", feed.Adapter.Name(),
					"error", err,
				)

				mu.Lock()
				result.Failed = append(result.Failed, FailedSource{
					Source: feed.Adapter.Name(),
					Error:  err.Error(),
				})
				mu.Unlock()

				return nil // isolate per-source failures
			}

			mu.Lock()
			result.Items = append(result.Items, items...)
			mu.Unlock()

			slog.Info("fetched source",
				"source", feed.Adapter.Name(),
				"items", len(items),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching sources: %w", err)
	}

	return &result, nil
}
