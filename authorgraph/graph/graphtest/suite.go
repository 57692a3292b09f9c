/*
Package graphtest contains re-usable test suites that can be imported
and run against any object that implements the graph.Graph interface.
*/
package graphtest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	check "gopkg.in/check.v1"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
)

// BaseSuite defines a set of re-usable graph-related tests that can
// be executed against any concrete type that implements the graph.Graph
// interface.
type BaseSuite struct {
	g graph.Graph
}

// SetGraph configures the test-suite to run all tests against an instance
// of graph.Graph.
func (s *BaseSuite) SetGraph(g graph.Graph) {
	s.g = g
}

// TestUpsertAuthor verifies the author upsert and merge logic.
func (s *BaseSuite) TestUpsertAuthor(c *check.C) {
	newAuthor := &graph.Author{
		Key:       "id:A1",
		SiteID:    "A1",
		Name:      "Jane Doe",
		Interests: []string{"graphs", "crawling"},
	}

	err := s.g.UpsertAuthor(newAuthor)
	c.Assert(err, check.IsNil)
	c.Assert(newAuthor.FirstSeenAt.IsZero(), check.Equals, false, check.Commentf("expected a first-seen timestamp to be assigned"))

	firstSeen := newAuthor.FirstSeenAt

	// Re-upsert the same key with partially overlapping data. Scalars are
	// last-write-wins for non-empty values, interests are a set union and
	// the first-seen timestamp is preserved.
	update := &graph.Author{
		Key:         "id:A1",
		Affiliation: "Example University",
		Interests:   []string{"crawling", "identity resolution"},
	}

	err = s.g.UpsertAuthor(update)
	c.Assert(err, check.IsNil)

	stored, err := s.g.FindAuthor("id:A1")
	c.Assert(err, check.IsNil)
	c.Assert(stored.Name, check.Equals, "Jane Doe", check.Commentf("empty incoming scalar must not clear an existing value"))
	c.Assert(stored.Affiliation, check.Equals, "Example University")
	c.Assert(stored.Interests, check.DeepEquals, []string{"crawling", "graphs", "identity resolution"})
	c.Assert(stored.FirstSeenAt.Equal(firstSeen), check.Equals, true, check.Commentf("first-seen timestamp must survive merges"))

	// An upsert without a canonical key must be rejected.
	err = s.g.UpsertAuthor(&graph.Author{Name: "No Key"})
	c.Assert(errors.Is(err, graph.ErrMissingKey), check.Equals, true)
}

// TestUpsertAuthorIdempotence verifies that re-ingesting identical author
// data leaves the node unchanged.
func (s *BaseSuite) TestUpsertAuthorIdempotence(c *check.C) {
	author := &graph.Author{
		Key:         "id:A2",
		SiteID:      "A2",
		Name:        "John Roe",
		Affiliation: "Example Institute",
		Interests:   []string{"networks"},
	}

	c.Assert(s.g.UpsertAuthor(author), check.IsNil)

	first, err := s.g.FindAuthor("id:A2")
	c.Assert(err, check.IsNil)

	c.Assert(s.g.UpsertAuthor(&graph.Author{
		Key:         "id:A2",
		SiteID:      "A2",
		Name:        "John Roe",
		Affiliation: "Example Institute",
		Interests:   []string{"networks"},
	}), check.IsNil)

	second, err := s.g.FindAuthor("id:A2")
	c.Assert(err, check.IsNil)

	second.UpdatedAt = first.UpdatedAt
	c.Assert(second, check.DeepEquals, first)
}

// TestFindAuthor verifies the author lookup logic.
func (s *BaseSuite) TestFindAuthor(c *check.C) {
	author := &graph.Author{
		Key:  "id:A3",
		Name: "Jane Doe",
	}

	c.Assert(s.g.UpsertAuthor(author), check.IsNil)

	stored, err := s.g.FindAuthor("id:A3")
	c.Assert(err, check.IsNil)
	c.Assert(stored.Name, check.Equals, "Jane Doe")

	_, err = s.g.FindAuthor("id:unknown")
	c.Assert(errors.Is(err, graph.ErrNotFound), check.Equals, true)
}

// TestUpsertEdge verifies the edge upsert and evidence merge logic.
func (s *BaseSuite) TestUpsertEdge(c *check.C) {
	c.Assert(s.g.UpsertAuthor(&graph.Author{Key: "id:X"}), check.IsNil)
	c.Assert(s.g.UpsertAuthor(&graph.Author{Key: "id:Y"}), check.IsNil)

	// Endpoints are normalized, so pushing (Y, X) stores (X, Y).
	edge := &graph.Edge{A: "id:Y", B: "id:X", Evidence: []string{"pub-2", "pub-1"}}
	c.Assert(s.g.UpsertEdge(edge), check.IsNil)
	c.Assert(edge.ID, check.Not(check.Equals), uuid.Nil, check.Commentf("expected an ID to be assigned to the new edge"))
	c.Assert(edge.A, check.Equals, "id:X")
	c.Assert(edge.B, check.Equals, "id:Y")
	c.Assert(edge.Evidence, check.DeepEquals, []string{"pub-1", "pub-2"})

	// A repeat discovery with overlapping evidence accumulates instead of
	// duplicating.
	repeat := &graph.Edge{A: "id:X", B: "id:Y", Evidence: []string{"pub-2", "pub-3"}}
	c.Assert(s.g.UpsertEdge(repeat), check.IsNil)
	c.Assert(repeat.ID, check.Equals, edge.ID, check.Commentf("expected the existing edge to be updated, not duplicated"))

	stored, err := s.g.FindEdge("id:Y", "id:X")
	c.Assert(err, check.IsNil)
	c.Assert(stored.Evidence, check.DeepEquals, []string{"pub-1", "pub-2", "pub-3"})
	c.Assert(stored.FirstSeenAt.Equal(edge.FirstSeenAt), check.Equals, true)

	// Edges with unknown endpoints or identical endpoints are rejected.
	err = s.g.UpsertEdge(&graph.Edge{A: "id:X", B: "id:unknown"})
	c.Assert(errors.Is(err, graph.ErrUnknownEdgeAuthors), check.Equals, true)

	err = s.g.UpsertEdge(&graph.Edge{A: "id:X", B: "id:X"})
	c.Assert(errors.Is(err, graph.ErrSelfEdge), check.Equals, true)
}

// TestUpsertEdgeIdempotence verifies that re-ingesting an identical edge
// extraction leaves the edge set and evidence unchanged.
func (s *BaseSuite) TestUpsertEdgeIdempotence(c *check.C) {
	c.Assert(s.g.UpsertAuthor(&graph.Author{Key: "id:P"}), check.IsNil)
	c.Assert(s.g.UpsertAuthor(&graph.Author{Key: "id:Q"}), check.IsNil)

	c.Assert(s.g.UpsertEdge(&graph.Edge{A: "id:P", B: "id:Q", Evidence: []string{"pub-9"}}), check.IsNil)

	first, err := s.g.FindEdge("id:P", "id:Q")
	c.Assert(err, check.IsNil)

	c.Assert(s.g.UpsertEdge(&graph.Edge{A: "id:P", B: "id:Q", Evidence: []string{"pub-9"}}), check.IsNil)

	second, err := s.g.FindEdge("id:P", "id:Q")
	c.Assert(err, check.IsNil)

	second.UpdatedAt = first.UpdatedAt
	c.Assert(second, check.DeepEquals, first)

	it, err := s.g.Edges()
	c.Assert(err, check.IsNil)
	defer func() { c.Assert(it.Close(), check.IsNil) }()

	count := 0
	for it.Next() {
		count++
	}
	c.Assert(it.Error(), check.IsNil)
	c.Assert(count, check.Equals, 1)
}

// TestFindEdge verifies the edge lookup logic.
func (s *BaseSuite) TestFindEdge(c *check.C) {
	c.Assert(s.g.UpsertAuthor(&graph.Author{Key: "id:M"}), check.IsNil)
	c.Assert(s.g.UpsertAuthor(&graph.Author{Key: "id:N"}), check.IsNil)
	c.Assert(s.g.UpsertEdge(&graph.Edge{A: "id:M", B: "id:N"}), check.IsNil)

	_, err := s.g.FindEdge("id:N", "id:M")
	c.Assert(err, check.IsNil)

	_, err = s.g.FindEdge("id:M", "id:missing")
	c.Assert(errors.Is(err, graph.ErrNotFound), check.Equals, true)
}

// TestConcurrentIterators verifies that multiple clients can concurrently
// iterate the store while it is being read.
func (s *BaseSuite) TestConcurrentIterators(c *check.C) {
	var (
		wg           sync.WaitGroup
		numIterators = 10
		numAuthors   = 100
	)

	for i := 0; i < numAuthors; i++ {
		author := &graph.Author{Key: fmt.Sprintf("id:%04d", i)}
		c.Assert(s.g.UpsertAuthor(author), check.IsNil)
	}

	wg.Add(numIterators)
	for i := 0; i < numIterators; i++ {
		go func(id int) {
			defer wg.Done()

			cc := check.Commentf("iterator %d", id)
			seen := make(map[string]bool)

			it, err := s.g.Authors()
			c.Assert(err, check.IsNil, cc)
			defer func() {
				c.Assert(it.Close(), check.IsNil, cc)
			}()

			for it.Next() {
				author := it.Author()
				c.Assert(seen[author.Key], check.Equals, false, check.Commentf("iterator %d saw the same author twice", id))
				seen[author.Key] = true
			}

			c.Assert(seen, check.HasLen, numAuthors, cc)
			c.Assert(it.Error(), check.IsNil, cc)
		}(i)
	}

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for concurrent iterators to complete")
	}
}

// TestEdgeIteratorIsolation verifies that mutating an edge returned by the
// iterator does not affect stored graph state.
func (s *BaseSuite) TestEdgeIteratorIsolation(c *check.C) {
	c.Assert(s.g.UpsertAuthor(&graph.Author{Key: "id:U"}), check.IsNil)
	c.Assert(s.g.UpsertAuthor(&graph.Author{Key: "id:V"}), check.IsNil)
	c.Assert(s.g.UpsertEdge(&graph.Edge{A: "id:U", B: "id:V", Evidence: []string{"pub-1"}}), check.IsNil)

	it, err := s.g.Edges()
	c.Assert(err, check.IsNil)
	c.Assert(it.Next(), check.Equals, true)

	e := it.Edge()
	e.Evidence[0] = "mutated"
	c.Assert(it.Close(), check.IsNil)

	stored, err := s.g.FindEdge("id:U", "id:V")
	c.Assert(err, check.IsNil)
	c.Assert(stored.Evidence, check.DeepEquals, []string{"pub-1"})
}
