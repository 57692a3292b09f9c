package index

import (
	"time"
)

// Document defines an author profile whose fields have been successfully
// indexed for full-text search.
type Document struct {
	// Key is the canonical key of the author node this entry indexes.
	Key string

	// SiteID is the author's scholar profile identifier (if available).
	SiteID string

	// Name of the author.
	Name string

	// Affiliation line from the author's profile (if available).
	Affiliation string

	// EmailDomain is the verified email domain (if available).
	EmailDomain string

	// Interests lists the research interests from the author's profile.
	Interests []string

	// CitedBy is the author's all-time citation count.
	CitedBy int

	// Last time the document was indexed.
	IndexedAt time.Time
}
