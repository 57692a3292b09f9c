package crawler

import (
	"context"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
	"github.com/jamespreed/scholar-crawler/authorindex/index"
	"github.com/jamespreed/scholar-crawler/scholar"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/jamespreed/scholar-crawler/crawler Fetcher,GraphAPI,IndexAPI

// Fetcher should be implemented by objects that retrieve scholar pages,
// typically through a browser session. Implementations return
// scholar.ErrChallengeDetected when the retrieved page is a
// bot-detection interstitial.
type Fetcher interface {
	// Fetch retrieves the document at the provided URL.
	Fetch(ctx context.Context, url string) (*scholar.Document, error)
}

// GraphAPI defines a minimum set of API methods for accessing the
// author graph store.
type GraphAPI interface {
	// UpsertAuthor creates a new or updates an existing author.
	UpsertAuthor(author *graph.Author) error

	// UpsertEdge creates a new or updates an existing co-authorship edge.
	UpsertEdge(edge *graph.Edge) error

	// Authors returns an iterator over all authors in the graph.
	Authors() (graph.AuthorIterator, error)

	// Edges returns an iterator over all edges in the graph.
	Edges() (graph.EdgeIterator, error)
}

// IndexAPI defines a minimum set of API methods for indexing crawled
// author profiles.
type IndexAPI interface {
	// Index adds a new document or updates an existing index entry
	// in case of an existing document.
	Index(doc *index.Document) error
}
