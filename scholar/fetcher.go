package scholar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Browser-like request headers. Scholar serves a stripped-down page
// (or an immediate challenge) to clients that look like bots.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:70.0) Gecko/20100101 Firefox/70.0",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
}

// HTTPFetcher retrieves scholar pages over plain HTTP GET requests.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher initializes and returns a new HTTPFetcher instance.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch performs an HTTP GET request for the provided URL and returns
// the retrieved document. A bot-detection interstitial is reported as
// ErrChallengeDetected so callers can pause rather than retry.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", pageURL, err)
	}

	for name, value := range defaultHeaders {
		req.Header.Set(name, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Scholar serves its challenge pages with a 429 status.
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrChallengeDetected
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %q: unexpected status %d", pageURL, resp.StatusCode)
	}

	if contentType := resp.Header.Get("Content-Type"); !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("fetch %q: unexpected content type %q", pageURL, contentType)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", pageURL, err)
	}

	if isChallenge(content) {
		return nil, ErrChallengeDetected
	}

	return &Document{URL: pageURL, Content: content}, nil
}
