package scholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	check "gopkg.in/check.v1"
)

// Initialize and register an instance of the HTTPFetcherTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(HTTPFetcherTestSuite))

type HTTPFetcherTestSuite struct{}

func (s *HTTPFetcherTestSuite) TestFetch(c *check.C) {
	var gotUserAgent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>profile</body></html>"))
	}))
	defer srv.Close()

	doc, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	c.Assert(err, check.IsNil)
	c.Assert(doc.URL, check.Equals, srv.URL)
	c.Assert(string(doc.Content), check.Equals, "<html><body>profile</body></html>")
	c.Assert(gotUserAgent, check.Matches, "Mozilla.*Firefox.*")
}

func (s *HTTPFetcherTestSuite) TestFetchChallengeStatus(c *check.C) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	c.Assert(err, check.Equals, ErrChallengeDetected)
}

func (s *HTTPFetcherTestSuite) TestFetchChallengeBody(c *check.C) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Please show you're not a robot</body></html>"))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	c.Assert(err, check.Equals, ErrChallengeDetected)
}

func (s *HTTPFetcherTestSuite) TestFetchWithWrongStatusCode(c *check.C) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	c.Assert(err, check.ErrorMatches, ".*unexpected status 404.*")
}

func (s *HTTPFetcherTestSuite) TestFetchWithNonHTMLContent(c *check.C) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"not": "html"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	c.Assert(err, check.ErrorMatches, `.*unexpected content type "application/json".*`)
}
