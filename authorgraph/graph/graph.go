/*
	graph package defines the co-authorship graph model and the behavior
	expected of graph data stores.
*/

package graph

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Graph should be implemented by co-authorship graph data stores.
type Graph interface {
	// UpsertAuthor creates a new author node or merges the provided data
	// into an existing node with the same canonical key. Non-empty scalar
	// fields overwrite existing values (last write wins) while the
	// interests list is merged as a set union. FirstSeenAt is preserved
	// from the first insertion.
	UpsertAuthor(author *Author) error

	// FindAuthor performs an author lookup by canonical key.
	FindAuthor(key string) (*Author, error)

	// Authors returns an iterator over all author nodes in the graph.
	Authors() (AuthorIterator, error)

	// UpsertEdge creates a new or updates an existing co-authorship edge.
	// Edges are undirected: the (A, B) endpoint pair is normalized before
	// storage and repeated upserts of the same pair accumulate evidence
	// as a set union instead of creating duplicate edges.
	UpsertEdge(edge *Edge) error

	// FindEdge performs an edge lookup by its (unordered) endpoint pair.
	FindEdge(a, b string) (*Edge, error)

	// Edges returns an iterator over all edges in the graph.
	Edges() (EdgeIterator, error)
}

// AuthorIterator is implemented by types that iterate graph author nodes.
type AuthorIterator interface {
	Iterator

	// Author returns the currently fetched author object.
	Author() *Author
}

// EdgeIterator is implemented by types that iterate graph edges.
type EdgeIterator interface {
	Iterator

	// Edge returns the currently fetched edge object.
	Edge() *Edge
}

// Iterator should be embedded / implemented by types that require
// iteration functionality.
type Iterator interface {
	// Next loads the next item, returns false when no more items
	// are available or when an error occurs.
	Next() bool

	// Error returns the last error encountered by the iterator.
	Error() error

	// Close releases any resources allocated to the iterator.
	Close() error
}

// Author represents a discovered author identity. it serves as a
// model / schema object. Nodes are created on first mention, possibly
// with partial data, and enriched as more pages are fetched. They are
// never deleted.
type Author struct {
	Key         string    // Canonical deduplication key
	SiteID      string    // Site-assigned author id, if known
	Name        string    // Display name
	ProfileURL  string    // Profile page URL, if known
	Affiliation string    // Institution / affiliation
	EmailDomain string    // Verified email domain, if published
	Interests   []string  // Declared research interests
	CitedBy     int       // Total citation count, if published
	Ambiguous   bool      // Identity could not be confidently resolved
	FirstSeenAt time.Time // First extraction mention
	UpdatedAt   time.Time // Last merge timestamp
}

// Edge represents an undirected co-authorship relation between the author
// nodes identified by the canonical keys A and B, where A < B. it serves
// as a model / schema object.
type Edge struct {
	ID          uuid.UUID // Edge unique identifier
	A           string    // Canonical key of the first endpoint (A < B)
	B           string    // Canonical key of the second endpoint
	Evidence    []string  // Sorted set of shared publication identifiers
	FirstSeenAt time.Time // First discovery timestamp
	UpdatedAt   time.Time // Last evidence merge timestamp
}

// NormalizeEndpoints orders an unordered endpoint pair into the canonical
// (A < B) storage order used by all graph implementations.
func NormalizeEndpoints(a, b string) (string, string) {
	if strings.Compare(a, b) > 0 {
		return b, a
	}

	return a, b
}
