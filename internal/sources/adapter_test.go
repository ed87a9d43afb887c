package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"sift/internal/models"
)

type stubAdapter struct {
	name     string
	items    []models.IngestedItem
	err      error
	lookback time.Duration
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) FetchItems(ctx context.Context, lookback time.Duration) ([]models.IngestedItem, error) {
	s.lookback = lookback
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

func TestFetchAll(t *testing.T) {
	ok := &stubAdapter{
		name: "HackerNews",
		items: []models.IngestedItem{
			{ID: "a", Title: "Story A"},
			{ID: "b", Title: "Story B"},
		},
	}
	broken := &stubAdapter{
		name: "Reddit",
		err:  errors.New("rate limited"),
	}

	result, err := FetchAll(context.Background(), []Feed{
		{Adapter: ok, Lookback: 24 * time.Hour},
		{Adapter: broken, Lookback: time.Hour},
	})
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}

	if len(result.Items) != 2 {
		t.Errorf("got %d items, want 2", len(result.Items))
	}
	if len(result.Failed) != 1 {
		t.Fatalf("got %d failures, want 1", len(result.Failed))
	}
	if result.Failed[0].Source != "Reddit" || result.Failed[0].Error != "rate limited" {
		t.Errorf("failure = %+v", result.Failed[0])
	}

	if ok.lookback != 24*time.Hour {
		t.Errorf("lookback = %v, want 24h", ok.lookback)
	}
	if broken.lookback != time.Hour {
		t.Errorf("lookback = %v, want 1h", broken.lookback)
	}
}

func TestFetchAll_NoFeeds(t *testing.T) {
	result, err := FetchAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if len(result.Items) != 0 || len(result.Failed) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}
