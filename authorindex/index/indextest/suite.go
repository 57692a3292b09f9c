package indextest

import (
	"errors"
	"fmt"
	"time"

	check "gopkg.in/check.v1"

	"github.com/jamespreed/scholar-crawler/authorindex/index"
)

// BaseSuite defines a set of re-usable index related tests that can
// be executed against any concrete type that implements the
// index.Indexer interface.
type BaseSuite struct {
	idx index.Indexer
}

// SetIndex sets BaseSuite's index field.
func (s *BaseSuite) SetIndex(index index.Indexer) {
	s.idx = index
}

// TestIndexingDocument verifies the indexing logic for new and existing
// documents.
func (s *BaseSuite) TestIndexingDocument(c *check.C) {
	// Upsert new document.
	doc := &index.Document{
		Key:         "id:AbCdEf123456",
		SiteID:      "AbCdEf123456",
		Name:        "Jane Doe",
		Affiliation: "Stanford University",
		Interests:   []string{"machine learning"},
		CitedBy:     10,
		IndexedAt:   time.Now().Add(-12 * time.Hour).UTC(),
	}

	err := s.idx.Index(doc)
	c.Assert(
		err, check.IsNil,
		check.Commentf("++++Index insert++++: %v", err),
	)

	// Update existing document.
	updatedDoc := &index.Document{
		Key:         doc.Key,
		SiteID:      doc.SiteID,
		Name:        "Jane A Doe",
		Affiliation: "MIT",
		Interests:   []string{"machine learning", "robotics"},
		CitedBy:     25,
		IndexedAt:   time.Now().UTC(),
	}

	err = s.idx.Index(updatedDoc)
	c.Assert(
		err, check.IsNil,
		check.Commentf("++++Index update++++: %v", err),
	)

	// Query the index to verify the update process.
	d, err := s.idx.FindByKey(updatedDoc.Key)
	c.Assert(err, check.IsNil)
	c.Assert(d, check.DeepEquals, updatedDoc)

	// Insert a document without a key.
	docWithoutKey := &index.Document{
		Name: "Nameless",
	}

	err = s.idx.Index(docWithoutKey)
	c.Assert(
		errors.Is(err, index.ErrMissingKey), check.Equals, true,
		check.Commentf("++++Index insert++++: %v", err),
	)
}

// TestFindByKey verifies the document lookup logic.
func (s *BaseSuite) TestFindByKey(c *check.C) {
	doc := &index.Document{
		Key:  "id:AbCdEf123456",
		Name: "Jane Doe",
	}

	err := s.idx.Index(doc)
	c.Assert(err, check.IsNil)

	d, err := s.idx.FindByKey(doc.Key)
	c.Assert(err, check.IsNil)
	c.Assert(d, check.DeepEquals, doc)

	_, err = s.idx.FindByKey("id:missing")
	c.Assert(errors.Is(err, index.ErrNotFound), check.Equals, true)
}

// TestMatchSearch verifies keyword matches against indexed profiles and
// the citation-count result ordering.
func (s *BaseSuite) TestMatchSearch(c *check.C) {
	for i, d := range []index.Document{
		{
			Key:         "id:a",
			Name:        "Jane Doe",
			Affiliation: "Department of Robotics",
			CitedBy:     50,
		},
		{
			Key:         "id:b",
			Name:        "John Roe",
			Affiliation: "Institute of Robotics",
			CitedBy:     500,
		},
		{
			Key:         "id:c",
			Name:        "Ann Poe",
			Affiliation: "Department of History",
			CitedBy:     5,
		},
	} {
		doc := d
		err := s.idx.Index(&doc)
		c.Assert(err, check.IsNil, check.Commentf("doc %d", i))
	}

	it, err := s.idx.Search(index.Query{
		Type:       index.QueryTypeMatch,
		Expression: "robotics",
	})
	c.Assert(err, check.IsNil)

	var keys []string
	for it.Next() {
		keys = append(keys, it.Document().Key)
	}

	c.Assert(it.Error(), check.IsNil)
	c.Assert(it.Close(), check.IsNil)
	c.Assert(it.TotalCount(), check.Equals, uint64(2))

	// Higher cited-by counts sort first.
	c.Assert(keys, check.DeepEquals, []string{"id:b", "id:a"})
}

// TestPhraseSearch verifies full phrase matches against indexed profiles.
func (s *BaseSuite) TestPhraseSearch(c *check.C) {
	for i := 0; i < 3; i++ {
		doc := &index.Document{
			Key:         fmt.Sprintf("id:%d", i),
			Name:        fmt.Sprintf("Author %d", i),
			Affiliation: "Department of Computer Science",
		}
		if i == 1 {
			doc.Affiliation = "School of Computer Engineering"
		}

		err := s.idx.Index(doc)
		c.Assert(err, check.IsNil, check.Commentf("doc %d", i))
	}

	it, err := s.idx.Search(index.Query{
		Type:       index.QueryTypePhrase,
		Expression: "department of computer science",
	})
	c.Assert(err, check.IsNil)

	var count int
	for it.Next() {
		count++
	}

	c.Assert(it.Error(), check.IsNil)
	c.Assert(it.Close(), check.IsNil)
	c.Assert(count, check.Equals, 2)
}
