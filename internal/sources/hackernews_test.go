package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sift/internal/models"
)

// newHNServer serves story id lists and item details the way the firebase
// API does: JSON bodies, null for unknown items.
func newHNServer(t *testing.T, top, show []int, stories map[int]map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(top)
	})
	mux.HandleFunc("/showstories.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(show)
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		var id int
		if _, err := fmt.Sscanf(r.URL.Path, "/item/%d.json", &id); err != nil {
			http.NotFound(w, r)
			return
		}
		story, ok := stories[id]
		if !ok {
			w.Write([]byte("null"))
			return
		}
		json.NewEncoder(w).Encode(story)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHackerNews_FetchItems(t *testing.T) {
	recent := time.Now().Add(-2 * time.Hour).Unix()
	stale := time.Now().Add(-48 * time.Hour).Unix()

	stories := map[int]map[string]any{
		1: {
			"type": "story", "title": "New inference engine", "by": "alice",
			"url": "https://example.com/engine", "time": recent,
			"score": 250, "descendants": 42,
		},
		2: {
			"type": "story", "title": "Ask HN: Best GPU for local models?",
			"by": "bob", "text": "<p>Budget is $2k</p>", "time": recent, "score": 80,
		},
		3: {
			"type": "story", "title": "Old story", "url": "https://example.com/old",
			"time": stale, "score": 500,
		},
		4: {
			"type": "job", "title": "Hiring engineers", "time": recent,
		},
	}
	srv := newHNServer(t, []int{1, 2, 3}, []int{2, 4}, stories)

	hn := NewHackerNews(false)
	hn.baseURL = srv.URL

	items, err := hn.FetchItems(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("FetchItems() error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (stale and job filtered): %+v", len(items), items)
	}

	byTitle := make(map[string]models.IngestedItem, len(items))
	for _, it := range items {
		byTitle[it.Title] = it
	}

	engine, ok := byTitle["New inference engine"]
	if !ok {
		t.Fatal("missing linked story")
	}
	if engine.URL != "https://example.com/engine" {
		t.Errorf("URL = %q", engine.URL)
	}
	if engine.ID != models.ItemID(engine.URL) {
		t.Errorf("ID not derived from URL: %q", engine.ID)
	}
	if engine.RawScore != 250 {
		t.Errorf("RawScore = %d, want 250", engine.RawScore)
	}
	if engine.Source != "HackerNews" {
		t.Errorf("Source = %q", engine.Source)
	}
	if engine.Metadata["comments"] != 42 {
		t.Errorf("Metadata[comments] = %v", engine.Metadata["comments"])
	}

	ask, ok := byTitle["Ask HN: Best GPU for local models?"]
	if !ok {
		t.Fatal("missing text story")
	}
	if ask.URL != "https://news.ycombinator.com/item?id=2" {
		t.Errorf("text story URL = %q, want item page fallback", ask.URL)
	}
	if ask.Content != "Budget is $2k" {
		t.Errorf("Content = %q, want tags stripped", ask.Content)
	}
}

func TestHackerNews_ListFailuresTolerated(t *testing.T) {
	recent := time.Now().Add(-time.Hour).Unix()
	stories := map[int]map[string]any{
		1: {"type": "story", "title": "Only story", "url": "https://example.com/1", "time": recent},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]int{1})
	})
	mux.HandleFunc("/showstories.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusInternalServerError)
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(stories[1])
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	hn := NewHackerNews(false)
	hn.baseURL = srv.URL

	items, err := hn.FetchItems(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("FetchItems() error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items, want 1", len(items))
	}
}

func TestHackerNews_AllListsFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	hn := NewHackerNews(false)
	hn.baseURL = srv.URL

	if _, err := hn.FetchItems(context.Background(), 24*time.Hour); err == nil {
		t.Fatal("FetchItems() expected error when every story list fails")
	}
}

func TestHackerNews_ListCap(t *testing.T) {
	recent := time.Now().Add(-time.Hour).Unix()

	// 40 ids in the list; only the first 30 may be fetched.
	var top []int
	stories := make(map[int]map[string]any)
	for id := 1; id <= 40; id++ {
		top = append(top, id)
		stories[id] = map[string]any{
			"type": "story", "title": fmt.Sprintf("Story %d", id),
			"url": fmt.Sprintf("https://example.com/%d", id), "time": recent,
		}
	}
	srv := newHNServer(t, top, nil, stories)

	hn := NewHackerNews(false)
	hn.baseURL = srv.URL

	items, err := hn.FetchItems(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("FetchItems() error: %v", err)
	}
	if len(items) != hnStoriesPerList {
		t.Errorf("got %d items, want %d", len(items), hnStoriesPerList)
	}
}
