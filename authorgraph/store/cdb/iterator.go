package cdb

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
)

// Static and compile-time check to ensure authorIterator implements
// graph.Iterator interface.
var _ graph.Iterator = (*authorIterator)(nil)

// authorIterator is a graph.AuthorIterator implementation for the
// cockroachDB backed graph. It wraps the [database/sql] Rows type that
// serves as an iterator for the returned query data.
type authorIterator struct {
	rows    *sql.Rows
	lastErr error
	author  *graph.Author
}

// Next loads the next item, returns false when no more rows
// are available or when an error occurs.
func (i *authorIterator) Next() bool {
	// Check if an error occurred during the most recent [rows.Scan]
	// operation or if there are no more rows data to return.
	if i.lastErr != nil || !i.rows.Next() {
		return false
	}

	a := new(graph.Author)
	if i.lastErr = i.rows.Scan(
		&a.Key, &a.SiteID, &a.Name, &a.ProfileURL, &a.Affiliation,
		&a.EmailDomain, pq.Array(&a.Interests), &a.CitedBy, &a.Ambiguous,
		&a.FirstSeenAt, &a.UpdatedAt,
	); i.lastErr != nil {
		return false
	}

	// Re-assign the timestamp fields to .UTC time values to cater for
	// cases where the retrieved time is reverted back to a non UTC value
	// during the Scan / parsing process.
	a.FirstSeenAt = a.FirstSeenAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	i.author = a

	return true
}

// Error returns the last error encountered by the iterator.
func (i *authorIterator) Error() error {
	return i.lastErr
}

// Close releases any resources allocated to the iterator.
func (i *authorIterator) Close() error {
	if err := i.rows.Close(); err != nil {
		return fmt.Errorf("author iterator: %w", err)
	}

	return nil
}

// Author returns the currently fetched author object.
func (i *authorIterator) Author() *graph.Author {
	return i.author
}

// edgeIterator is a graph.EdgeIterator implementation for the cockroachDB
// backed graph.
type edgeIterator struct {
	rows    *sql.Rows
	lastErr error
	edge    *graph.Edge
}

// Next advances the iterator. When no items are available or when an
// error occurs, calls to Next() return false.
func (i *edgeIterator) Next() bool {
	if i.lastErr != nil || !i.rows.Next() {
		return false
	}

	e := new(graph.Edge)
	if i.lastErr = i.rows.Scan(
		&e.ID, &e.A, &e.B, pq.Array(&e.Evidence), &e.FirstSeenAt, &e.UpdatedAt,
	); i.lastErr != nil {
		return false
	}

	e.FirstSeenAt = e.FirstSeenAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	i.edge = e

	return true
}

// Error returns the last error recorded by the iterator.
func (i *edgeIterator) Error() error {
	return i.lastErr
}

// Close releases any resources linked to the iterator.
func (i *edgeIterator) Close() error {
	if err := i.rows.Close(); err != nil {
		return fmt.Errorf("edge iterator: %w", err)
	}

	return nil
}

// Edge returns the currently fetched edge object.
func (i *edgeIterator) Edge() *graph.Edge {
	return i.edge
}
