package dedup

import (
	"errors"
	"testing"

	check "gopkg.in/check.v1"
)

// Initialize and register an instance of the dedupTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(dedupTestSuite))

// Test registers the [check] library with the go testing library and enables
// the running of the test suite using the go testing library.
func Test(t *testing.T) {
	check.TestingT(t)
}

type dedupTestSuite struct{}

func (s *dedupTestSuite) TestCanonicalKeyPrefersSiteID(c *check.C) {
	key, err := CanonicalKey(Identity{SiteID: "AbC123", Name: "Jane Doe"})
	c.Assert(err, check.IsNil)
	c.Assert(key, check.Equals, "id:AbC123")

	// The site id wins no matter how the rest of the identity varies.
	other, err := CanonicalKey(Identity{SiteID: "AbC123", Name: "J. Doe", Affiliation: "Elsewhere"})
	c.Assert(err, check.IsNil)
	c.Assert(other, check.Equals, key)
}

func (s *dedupTestSuite) TestCanonicalKeyIsDeterministic(c *check.C) {
	identity := Identity{Name: "Jane Doe", Affiliation: "Example University"}

	first, err := CanonicalKey(identity)
	c.Assert(err, check.IsNil)

	second, err := CanonicalKey(identity)
	c.Assert(err, check.IsNil)
	c.Assert(second, check.Equals, first)
}

func (s *dedupTestSuite) TestCanonicalKeyFoldsSpellingVariations(c *check.C) {
	base, err := CanonicalKey(Identity{Name: "Jose Garcia", Affiliation: "Example University"})
	c.Assert(err, check.IsNil)

	variants := []Identity{
		{Name: "José García", Affiliation: "Example University"},
		{Name: "  jose   garcia ", Affiliation: "EXAMPLE UNIVERSITY"},
	}

	for _, v := range variants {
		key, err := CanonicalKey(v)
		c.Assert(err, check.IsNil)
		c.Assert(key, check.Equals, base, check.Commentf("identity %+v", v))
	}
}

func (s *dedupTestSuite) TestCanonicalKeyDistinguishesAffiliations(c *check.C) {
	first, err := CanonicalKey(Identity{Name: "Jane Doe", Affiliation: "Example University"})
	c.Assert(err, check.IsNil)

	second, err := CanonicalKey(Identity{Name: "Jane Doe", Affiliation: "Other Institute"})
	c.Assert(err, check.IsNil)
	c.Assert(second, check.Not(check.Equals), first)
}

func (s *dedupTestSuite) TestCanonicalKeyAmbiguousIdentities(c *check.C) {
	// A name without an affiliation yields a usable key but is flagged.
	key, err := CanonicalKey(Identity{Name: "Jane Doe"})
	c.Assert(errors.Is(err, ErrAmbiguousIdentity), check.Equals, true)
	c.Assert(key, check.Matches, "name:[0-9a-f]{16}")

	// An identity with nothing but a profile URL still gets a key.
	key, err = CanonicalKey(Identity{ProfileURL: "https://example.com/profile?user=x"})
	c.Assert(errors.Is(err, ErrAmbiguousIdentity), check.Equals, true)
	c.Assert(key, check.Matches, "anon:[0-9a-f]{16}")

	// Even an empty identity maps to a deterministic key.
	first, err := CanonicalKey(Identity{})
	c.Assert(errors.Is(err, ErrAmbiguousIdentity), check.Equals, true)

	second, _ := CanonicalKey(Identity{})
	c.Assert(second, check.Equals, first)
}

func (s *dedupTestSuite) TestStoreMarkAndRestore(c *check.C) {
	store := NewStore()

	c.Assert(store.HasSeen("id:A"), check.Equals, false)

	store.MarkSeen("id:A")
	store.MarkSeen("id:B")
	store.MarkSeen("id:A")

	c.Assert(store.HasSeen("id:A"), check.Equals, true)
	c.Assert(store.Len(), check.Equals, 2)

	restored := NewStore()
	restored.Restore(store.Keys())

	c.Assert(restored.HasSeen("id:A"), check.Equals, true)
	c.Assert(restored.HasSeen("id:B"), check.Equals, true)
	c.Assert(restored.Len(), check.Equals, 2)
}
