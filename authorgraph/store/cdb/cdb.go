package cdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
)

var (
	upsertAuthorQuery = `
					INSERT INTO authors (
						key, site_id, name, profile_url, affiliation,
						email_domain, interests, cited_by, ambiguous,
						first_seen_at, updated_at
					)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
					ON CONFLICT (key)
					DO UPDATE SET
						site_id=COALESCE(NULLIF($2, ''), authors.site_id),
						name=COALESCE(NULLIF($3, ''), authors.name),
						profile_url=COALESCE(NULLIF($4, ''), authors.profile_url),
						affiliation=COALESCE(NULLIF($5, ''), authors.affiliation),
						email_domain=COALESCE(NULLIF($6, ''), authors.email_domain),
						interests=(
							SELECT ARRAY(
								SELECT DISTINCT i
								FROM unnest(authors.interests || $7::STRING[]) AS i
								ORDER BY i
							)
						),
						cited_by=CASE WHEN $8 > 0 THEN $8 ELSE authors.cited_by END,
						ambiguous=authors.ambiguous OR $9,
						updated_at=NOW()
					RETURNING site_id, name, profile_url, affiliation,
						email_domain, interests, cited_by, ambiguous,
						first_seen_at, updated_at
					`

	findAuthorQuery = `
					SELECT key, site_id, name, profile_url, affiliation,
						email_domain, interests, cited_by, ambiguous,
						first_seen_at, updated_at
					FROM authors WHERE key=$1
					`

	allAuthorsQuery = `
					SELECT key, site_id, name, profile_url, affiliation,
						email_domain, interests, cited_by, ambiguous,
						first_seen_at, updated_at
					FROM authors
					`

	upsertEdgeQuery = `
					INSERT INTO edges (a, b, evidence, first_seen_at, updated_at)
					VALUES ($1, $2, $3, NOW(), NOW())
					ON CONFLICT (a, b)
					DO UPDATE SET
						evidence=(
							SELECT ARRAY(
								SELECT DISTINCT e
								FROM unnest(edges.evidence || $3::STRING[]) AS e
								ORDER BY e
							)
						),
						updated_at=NOW()
					RETURNING id, evidence, first_seen_at, updated_at
					`

	findEdgeQuery = `
					SELECT id, a, b, evidence, first_seen_at, updated_at
					FROM edges WHERE a=$1 AND b=$2
					`

	allEdgesQuery = "SELECT id, a, b, evidence, first_seen_at, updated_at FROM edges"
)

// Static and compile-time check to ensure CockroachDBGraph implements
// Graph interface.
var _ graph.Graph = (*CockroachDBGraph)(nil)

// CockroachDBGraph implements a persistent co-authorship graph using a
// CockroachDB instance.
type CockroachDBGraph struct {
	db *sql.DB
}

// NewCockroachDBGraph returns a CockroachDBGraph instance.
func NewCockroachDBGraph(dsn string) (*CockroachDBGraph, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	return &CockroachDBGraph{db}, nil
}

// Close terminates the connection to the cockroachDB instance.
func (s *CockroachDBGraph) Close() error {
	return s.db.Close()
}

// UpsertAuthor creates a new author node or merges the provided data into
// an existing node with the same canonical key.
func (s *CockroachDBGraph) UpsertAuthor(author *graph.Author) error {
	if author.Key == "" {
		return fmt.Errorf("upsert author: %w", graph.ErrMissingKey)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	interests := graph.MergeStringSet(nil, author.Interests)

	err := s.db.QueryRowContext(
		ctx, upsertAuthorQuery,
		author.Key, author.SiteID, author.Name, author.ProfileURL,
		author.Affiliation, author.EmailDomain, pq.Array(interests),
		author.CitedBy, author.Ambiguous,
	).Scan(
		&author.SiteID, &author.Name, &author.ProfileURL, &author.Affiliation,
		&author.EmailDomain, pq.Array(&author.Interests), &author.CitedBy,
		&author.Ambiguous, &author.FirstSeenAt, &author.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert author: %w", err)
	}

	author.FirstSeenAt = author.FirstSeenAt.UTC()
	author.UpdatedAt = author.UpdatedAt.UTC()

	return nil
}

// FindAuthor performs an author lookup by canonical key.
func (s *CockroachDBGraph) FindAuthor(key string) (*graph.Author, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	a := new(graph.Author)

	err := s.db.QueryRowContext(ctx, findAuthorQuery, key).Scan(
		&a.Key, &a.SiteID, &a.Name, &a.ProfileURL, &a.Affiliation,
		&a.EmailDomain, pq.Array(&a.Interests), &a.CitedBy, &a.Ambiguous,
		&a.FirstSeenAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("find author: %w", graph.ErrNotFound)
		}

		return nil, fmt.Errorf("find author: %w", err)
	}

	a.FirstSeenAt = a.FirstSeenAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()

	return a, nil
}

// Authors returns an iterator over all author nodes in the graph.
func (s *CockroachDBGraph) Authors() (graph.AuthorIterator, error) {
	rows, err := s.db.Query(allAuthorsQuery)
	if err != nil {
		return nil, fmt.Errorf("authors: %w", err)
	}

	return &authorIterator{rows: rows}, nil
}

// UpsertEdge creates a new or updates an existing co-authorship edge.
func (s *CockroachDBGraph) UpsertEdge(edge *graph.Edge) error {
	a, b := graph.NormalizeEndpoints(edge.A, edge.B)
	if a == b {
		return fmt.Errorf("upsert edge: %w", graph.ErrSelfEdge)
	}

	edge.A, edge.B = a, b

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	evidence := graph.MergeStringSet(nil, edge.Evidence)

	err := s.db.QueryRowContext(
		ctx, upsertEdgeQuery, edge.A, edge.B, pq.Array(evidence),
	).Scan(&edge.ID, pq.Array(&edge.Evidence), &edge.FirstSeenAt, &edge.UpdatedAt)
	if err != nil {
		if isForeignKeyViolationError(err) {
			err = graph.ErrUnknownEdgeAuthors
		}

		return fmt.Errorf("upsert edge: %w", err)
	}

	edge.FirstSeenAt = edge.FirstSeenAt.UTC()
	edge.UpdatedAt = edge.UpdatedAt.UTC()

	return nil
}

// FindEdge performs an edge lookup by its (unordered) endpoint pair.
func (s *CockroachDBGraph) FindEdge(a, b string) (*graph.Edge, error) {
	na, nb := graph.NormalizeEndpoints(a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	e := new(graph.Edge)

	err := s.db.QueryRowContext(ctx, findEdgeQuery, na, nb).Scan(
		&e.ID, &e.A, &e.B, pq.Array(&e.Evidence), &e.FirstSeenAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("find edge: %w", graph.ErrNotFound)
		}

		return nil, fmt.Errorf("find edge: %w", err)
	}

	e.FirstSeenAt = e.FirstSeenAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()

	return e, nil
}

// Edges returns an iterator over all edges in the graph.
func (s *CockroachDBGraph) Edges() (graph.EdgeIterator, error) {
	rows, err := s.db.Query(allEdgesQuery)
	if err != nil {
		return nil, fmt.Errorf("edges: %w", err)
	}

	return &edgeIterator{rows: rows}, nil
}

// isForeignKeyViolationError returns true if error is a foreign key
// constraint violation error.
func isForeignKeyViolationError(err error) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}

	return pqErr.Code.Name() == "foreign_key_violation"
}
