package graph

import "errors"

var (
	// ErrNotFound is returned when an Author or Edge object lookup fails.
	ErrNotFound = errors.New("not found")

	// ErrUnknownEdgeAuthors is returned when we attempt to create an Edge
	// object whose endpoints are not present in the graph.
	ErrUnknownEdgeAuthors = errors.New("unknown author for edge endpoint")

	// ErrSelfEdge is returned when we attempt to create an Edge object
	// whose endpoints share the same canonical key.
	ErrSelfEdge = errors.New("edge endpoints refer to the same author")

	// ErrMissingKey is returned when an author object without a canonical
	// key is passed to an upsert operation.
	ErrMissingKey = errors.New("author canonical key is required")
)
