/*
	dedup package implements canonical key derivation for author
	identities together with the seen-key store used to filter already
	discovered identities out of the crawl frontier.

	Canonicalization policy:
		- identities carrying a site-assigned author id are keyed as
		  "id:<site id>". The site id is authoritative and the same
		  real-world author always maps to the same key.
		- identities without a site id are keyed from a hash of the
		  normalized display name combined with the normalized
		  affiliation ("name:<hash>").
		- identities whose name lacks an affiliation are keyed from the
		  normalized name alone and reported as ambiguous, since authors
		  sharing a name cannot be told apart.
		- identities with neither a site id nor a usable name receive a
		  best-effort "anon:<hash>" key derived from whatever fields
		  remain and are reported as ambiguous. They are never dropped.

	Normalization lowercases, folds diacritic marks and collapses runs of
	whitespace so that spelling variations of the same name produce the
	same key across separate page fetches.
*/

package dedup

import (
	"crypto/md5"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrAmbiguousIdentity is returned alongside a best-effort canonical key
// when an identity could not be confidently resolved. Callers must keep
// the key and flag the resulting node for later manual reconciliation.
var ErrAmbiguousIdentity = errors.New("identity could not be confidently resolved")

// Identity carries the raw fields extracted for an author mention from
// which a canonical key is derived.
type Identity struct {
	SiteID      string
	Name        string
	Affiliation string
	ProfileURL  string
}

// foldMarks strips diacritic marks after canonical decomposition so that
// accented and unaccented spellings of a name normalize identically.
var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CanonicalKey derives the deterministic deduplication key for the
// provided identity. A non-nil error is always ErrAmbiguousIdentity and
// is returned together with a usable best-effort key.
func CanonicalKey(identity Identity) (string, error) {
	if identity.SiteID != "" {
		return "id:" + identity.SiteID, nil
	}

	name := Normalize(identity.Name)
	affiliation := Normalize(identity.Affiliation)

	switch {
	case name != "" && affiliation != "":
		return "name:" + hash(name+"|"+affiliation), nil
	case name != "":
		return "name:" + hash(name), ErrAmbiguousIdentity
	case identity.ProfileURL != "":
		return "anon:" + hash(identity.ProfileURL), ErrAmbiguousIdentity
	default:
		return "anon:" + hash(affiliation), ErrAmbiguousIdentity
	}
}

// Normalize lowercases the provided value, folds diacritic marks and
// collapses runs of whitespace into single spaces.
func Normalize(value string) string {
	folded, _, err := transform.String(foldMarks, value)
	if err != nil {
		// Fall back to the raw value: a failed fold still yields a
		// deterministic, if less collision-resistant, key.
		folded = value
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

func hash(value string) string {
	sum := md5.Sum([]byte(value))

	return fmt.Sprintf("%x", sum)[:16]
}

// Store tracks the set of canonical keys that have already been fetched,
// queued or permanently failed. It is safe for concurrent use by
// multiple crawl controller instances.
type Store struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewStore creates an empty seen-key store.
func NewStore() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// HasSeen returns true when the provided key has already been marked.
func (s *Store) HasSeen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.seen[key]

	return exists
}

// MarkSeen records the provided key. Marking an already seen key is a
// no-op.
func (s *Store) MarkSeen(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[key] = struct{}{}
}

// Len returns the number of marked keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.seen)
}

// Keys returns a snapshot of all marked keys for checkpointing.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.seen))
	for k := range s.seen {
		keys = append(keys, k)
	}

	return keys
}

// Restore replaces the store contents with the provided key set. It is
// used when resuming a crawl from a checkpoint.
func (s *Store) Restore(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s.seen[k] = struct{}{}
	}
}
