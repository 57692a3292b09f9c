package index

import "errors"

var (
	// ErrNotFound is returned by the indexer when it attempts to look up
	// a document that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingKey is returned when an indexer attempts to index a
	// document with a missing canonical key.
	ErrMissingKey = errors.New("document has missing key")
)
