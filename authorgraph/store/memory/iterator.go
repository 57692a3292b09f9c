package memory

import "github.com/jamespreed/scholar-crawler/authorgraph/graph"

// Static and compile-time check to ensure authorIterator implements
// graph.Iterator interface.
var _ graph.Iterator = (*authorIterator)(nil)

// authorIterator is a graph.AuthorIterator implementation for the
// in-memory graph.
type authorIterator struct {
	// Pointer to an InMemoryGraph instance. it's used here to provide
	// access to the store's mutex object.
	store        *InMemoryGraph
	authors      []*graph.Author
	currentIndex int
}

// Next loads the next item, returns false when no more authors
// are available or when an error occurs.
func (i *authorIterator) Next() bool {
	if i.currentIndex >= len(i.authors) {
		return false
	}

	i.currentIndex++

	return true
}

// Error returns the last error encountered by the iterator.
func (i *authorIterator) Error() error {
	return nil
}

// Close releases any resources allocated to the iterator.
func (i *authorIterator) Close() error {
	return nil
}

// Author returns the currently fetched author object.
func (i *authorIterator) Author() *graph.Author {
	// The author pointer contents may be overwritten by a graph update
	// outside this method. To avoid data-races, we acquire the read lock
	// first and clone creating a local pointer to the queried author.
	i.store.mu.RLock()
	defer i.store.mu.RUnlock()

	a := new(graph.Author)
	*a = *i.authors[i.currentIndex-1]

	return a
}

// edgeIterator is a graph.EdgeIterator implementation for the in-memory
// graph.
type edgeIterator struct {
	store        *InMemoryGraph // Provides access to the store mutex object.
	edges        []*graph.Edge
	currentIndex int
}

// Next advances the iterator. When no edges are available or when an
// error occurs, calls to Next() return false.
func (i *edgeIterator) Next() bool {
	if i.currentIndex >= len(i.edges) {
		return false
	}

	i.currentIndex++

	return true
}

// Error returns the last error recorded by the iterator.
func (i *edgeIterator) Error() error {
	return nil
}

// Close releases any resources linked to the iterator.
func (i *edgeIterator) Close() error {
	return nil
}

// Edge returns the currently fetched edge object.
func (i *edgeIterator) Edge() *graph.Edge {
	// The edge pointer contents may be overwritten by a graph update
	// outside this method. To avoid data-races, we acquire the read lock
	// first and clone creating a local pointer to the queried edge.
	i.store.mu.RLock()
	defer i.store.mu.RUnlock()

	e := new(graph.Edge)
	*e = *i.edges[i.currentIndex-1]

	// Clone the evidence slice so callers cannot mutate stored state.
	e.Evidence = append([]string(nil), e.Evidence...)

	return e
}
