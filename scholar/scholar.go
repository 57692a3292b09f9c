// Package scholar interprets Google Scholar HTML pages into structured
// author data. It knows nothing about fetching or scheduling: callers
// hand it retrieved documents and receive profile fields, co-author
// hints and pagination links back.
package scholar

import (
	"errors"
)

var (
	// ErrChallengeDetected is returned when a retrieved page contains a
	// bot-detection interstitial instead of scholar content. The page
	// that triggered it has not been consumed and may be re-fetched
	// once the challenge has been cleared.
	ErrChallengeDetected = errors.New("challenge page detected")

	// ErrMalformedPage is returned when a page is missing the structural
	// markers the interpreter relies on. Missing optional fields do not
	// trigger it.
	ErrMalformedPage = errors.New("malformed scholar page")
)

// Document is a retrieved scholar page awaiting interpretation.
type Document struct {
	// URL the document was retrieved from. Profile identifiers are
	// recovered from its query string.
	URL string

	// Content is the raw HTML body.
	Content []byte
}

// AuthorHint describes an author entry from a search-results page. Only
// Name is guaranteed to be present.
type AuthorHint struct {
	SiteID      string
	Name        string
	Affiliation string
	EmailDomain string
	CitedBy     int
	Interests   []string
	ProfileURL  string
}

// SearchResults holds the interpreted contents of an author-search page.
type SearchResults struct {
	Authors []AuthorHint

	// NextPageURL points at the following page of results, or is empty
	// when the current page is the last one.
	NextPageURL string
}

// AuthorProfile holds the fields interpreted from an author's profile
// page.
type AuthorProfile struct {
	SiteID      string
	Name        string
	Affiliation string
	EmailDomain string
	Interests   []string
	CitedBy     int
	ProfileURL  string
}

// CoauthorHint describes a co-author relationship discovered on a
// profile page, either from the listed co-author sidebar or from the
// author strings of publication rows. Evidence carries one entry per
// observation that supports the relationship.
type CoauthorHint struct {
	SiteID      string
	Name        string
	Affiliation string
	ProfileURL  string
	Evidence    []string
}

// EvidenceListedCoauthor marks a co-author relationship taken from the
// profile's listed co-author sidebar rather than a publication row.
const EvidenceListedCoauthor = "coauthor-list"
