package sources

import (
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const httpTimeout = 30 * time.Second

// newClient returns an HTTP client with browser-like headers. Reddit and a
// few RSS hosts reject requests carrying the default Go user agent.
func newClient() *http.Client {
	return &http.Client{
		Timeout: httpTimeout,
		Transport: &browserTransport{
			base: http.DefaultTransport,
		},
	}
}

// browserTransport wraps an http.RoundTripper to inject browser-like headers
// on every request.
type browserTransport struct {
	base http.RoundTripper
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return t.base.RoundTrip(req)
}

// browserHeaders sets browser-like request headers for readability fetches.
func browserHeaders(r *http.Request) {
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
}

// extractReadable fetches the page at url and returns its main readable text.
func extractReadable(url string) (string, error) {
	article, err := readability.FromURL(url, httpTimeout, browserHeaders)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

// truncateWords returns the first maxWords whitespace-delimited words of s.
func truncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}

var htmlTagPattern = regexp.MustCompile("<[^>]*>")

// stripHTML removes HTML tags from s and unescapes HTML entities.
func stripHTML(s string) string {
	clean := htmlTagPattern.ReplaceAllString(s, "")
	return html.UnescapeString(strings.TrimSpace(clean))
}
