package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func rssFeedXML(recent, stale time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>AI Weekly</title>
    <item>
      <title>Fresh story</title>
      <link>https://example.com/fresh</link>
      <description>&lt;p&gt;Body &amp;amp; text&lt;/p&gt;</description>
      <pubDate>%s</pubDate>
    </item>
    <item>
      <title>Stale story</title>
      <link>https://example.com/stale</link>
      <pubDate>%s</pubDate>
    </item>
    <item>
      <title></title>
      <link>https://example.com/untitled</link>
      <pubDate>%s</pubDate>
    </item>
  </channel>
</rss>`,
		recent.Format(time.RFC1123Z),
		stale.Format(time.RFC1123Z),
		recent.Format(time.RFC1123Z))
}

func TestRSS_FetchItems(t *testing.T) {
	now := time.Now()
	xml := rssFeedXML(now.Add(-2*time.Hour), now.Add(-10*24*time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, xml)
	}))
	t.Cleanup(srv.Close)

	rss := NewRSS([]string{srv.URL})

	items, err := rss.FetchItems(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("FetchItems() error: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (stale and untitled filtered): %+v", len(items), items)
	}

	it := items[0]
	if it.Title != "Fresh story" {
		t.Errorf("Title = %q", it.Title)
	}
	if it.Source != "RSS: AI Weekly" {
		t.Errorf("Source = %q, want feed-titled tag", it.Source)
	}
	if it.Content != "Body & text" {
		t.Errorf("Content = %q, want tags stripped and entities unescaped", it.Content)
	}
	if it.Metadata["feed_url"] != srv.URL {
		t.Errorf("Metadata[feed_url] = %v", it.Metadata["feed_url"])
	}
	if it.RawScore != 0 {
		t.Errorf("RawScore = %d, want 0 for feed items", it.RawScore)
	}
}

func TestRSS_FailingFeedSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	rss := NewRSS([]string{srv.URL})

	items, err := rss.FetchItems(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("FetchItems() error: %v, want failing feeds skipped", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items from a failing feed", len(items))
	}
}
