package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
)

// Static and compile-time check to ensure InMemoryGraph implements
// Graph interface.
var _ graph.Graph = (*InMemoryGraph)(nil)

// edgeKey identifies an undirected edge by its normalized endpoint pair.
type edgeKey struct {
	a, b string
}

// InMemoryGraph implements an in-memory co-authorship graph that can be
// concurrently accessed by multiple clients.
type InMemoryGraph struct {
	mu        sync.RWMutex
	authors   map[string]*graph.Author
	edges     map[uuid.UUID]*graph.Edge
	edgeIndex map[edgeKey]*graph.Edge
}

// NewInMemoryGraph creates a new in-memory co-authorship graph.
func NewInMemoryGraph() *InMemoryGraph {
	return &InMemoryGraph{
		authors:   make(map[string]*graph.Author),
		edges:     make(map[uuid.UUID]*graph.Edge),
		edgeIndex: make(map[edgeKey]*graph.Edge),
	}
}

// UpsertAuthor creates a new author node or merges the provided data into
// an existing node with the same canonical key.
func (s *InMemoryGraph) UpsertAuthor(author *graph.Author) error {
	if author.Key == "" {
		return fmt.Errorf("upsert author: %w", graph.ErrMissingKey)
	}

	// Acquire a general lock to avoid data races while mutating graph data.
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if existing, exists := s.authors[author.Key]; exists {
		mergeAuthor(existing, author)
		existing.UpdatedAt = now

		// Copy the merged contents back into the provided author so the
		// caller observes the post-merge state of the node.
		*author = *existing

		return nil
	}

	if author.FirstSeenAt.IsZero() {
		author.FirstSeenAt = now
	}
	author.UpdatedAt = now
	author.Interests = graph.MergeStringSet(nil, author.Interests)

	// Make a new local pointer to the author provided by the caller.
	// This step protects the stored node from side-effects triggered
	// outside this method.
	aCopy := new(graph.Author)
	*aCopy = *author

	s.authors[aCopy.Key] = aCopy

	return nil
}

// FindAuthor performs an author lookup by canonical key.
func (s *InMemoryGraph) FindAuthor(key string) (*graph.Author, error) {
	// Read lock allows other processes or goroutines to perform reads by
	// concurrently acquiring other read locks.
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.authors[key]
	if !exists {
		return nil, fmt.Errorf("find author: %w", graph.ErrNotFound)
	}

	aCopy := new(graph.Author)
	*aCopy = *a

	return aCopy, nil
}

// Authors returns an iterator over all author nodes in the graph.
func (s *InMemoryGraph) Authors() (graph.AuthorIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*graph.Author, 0, len(s.authors))
	for _, a := range s.authors {
		list = append(list, a)
	}

	return &authorIterator{store: s, authors: list}, nil
}

// UpsertEdge creates a new or updates an existing co-authorship edge.
func (s *InMemoryGraph) UpsertEdge(edge *graph.Edge) error {
	// Acquire a general lock to avoid data races while mutating graph data.
	s.mu.Lock()
	defer s.mu.Unlock()

	a, b := graph.NormalizeEndpoints(edge.A, edge.B)
	if a == b {
		return fmt.Errorf("upsert edge: %w", graph.ErrSelfEdge)
	}

	_, isAExists := s.authors[a]
	_, isBExists := s.authors[b]
	if !isAExists || !isBExists {
		return fmt.Errorf("upsert edge: %w", graph.ErrUnknownEdgeAuthors)
	}

	edge.A, edge.B = a, b

	// A repeated discovery of the same endpoint pair accumulates evidence
	// on the existing edge instead of creating a duplicate.
	if existing, exists := s.edgeIndex[edgeKey{a, b}]; exists {
		existing.Evidence = graph.MergeStringSet(existing.Evidence, edge.Evidence)
		existing.UpdatedAt = time.Now()

		// Copy the updated contents of the matching edge to the provided
		// edge. ie: the provided edge now has the ID from the existing edge.
		*edge = *existing

		return nil
	}

	// Try to assign a random ID to a new edge. in case the generated ID
	// is already used, run the ID generator until a unique ID is found.
	for {
		edge.ID = uuid.New()
		if _, exists := s.edges[edge.ID]; !exists {
			break
		}
	}

	edge.Evidence = graph.MergeStringSet(nil, edge.Evidence)
	edge.UpdatedAt = time.Now()
	if edge.FirstSeenAt.IsZero() {
		edge.FirstSeenAt = edge.UpdatedAt
	}

	eCopy := new(graph.Edge)
	*eCopy = *edge

	s.edges[eCopy.ID] = eCopy
	s.edgeIndex[edgeKey{a, b}] = eCopy

	return nil
}

// FindEdge performs an edge lookup by its (unordered) endpoint pair.
func (s *InMemoryGraph) FindEdge(a, b string) (*graph.Edge, error) {
	na, nb := graph.NormalizeEndpoints(a, b)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.edgeIndex[edgeKey{na, nb}]
	if !exists {
		return nil, fmt.Errorf("find edge: %w", graph.ErrNotFound)
	}

	eCopy := new(graph.Edge)
	*eCopy = *e

	return eCopy, nil
}

// Edges returns an iterator over all edges in the graph.
func (s *InMemoryGraph) Edges() (graph.EdgeIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*graph.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		list = append(list, e)
	}

	return &edgeIterator{store: s, edges: list}, nil
}

// mergeAuthor merges the incoming author data into the existing node.
// Non-empty scalar fields overwrite existing values while the interests
// list is merged as a set union. A node stays flagged as ambiguous until
// it is manually reconciled.
func mergeAuthor(existing, incoming *graph.Author) {
	if incoming.SiteID != "" {
		existing.SiteID = incoming.SiteID
	}
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	if incoming.ProfileURL != "" {
		existing.ProfileURL = incoming.ProfileURL
	}
	if incoming.Affiliation != "" {
		existing.Affiliation = incoming.Affiliation
	}
	if incoming.EmailDomain != "" {
		existing.EmailDomain = incoming.EmailDomain
	}
	if incoming.CitedBy > 0 {
		existing.CitedBy = incoming.CitedBy
	}

	existing.Ambiguous = existing.Ambiguous || incoming.Ambiguous
	existing.Interests = graph.MergeStringSet(existing.Interests, incoming.Interests)

	if existing.FirstSeenAt.IsZero() {
		existing.FirstSeenAt = incoming.FirstSeenAt
	}
}
