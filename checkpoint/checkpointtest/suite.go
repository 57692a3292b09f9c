// Package checkpointtest provides a re-usable test suite that runs
// against any concrete checkpoint.Store implementation.
package checkpointtest

import (
	"errors"
	"time"

	"github.com/google/uuid"
	check "gopkg.in/check.v1"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
	"github.com/jamespreed/scholar-crawler/checkpoint"
	"github.com/jamespreed/scholar-crawler/frontier"
)

// BaseSuite defines a set of re-usable checkpoint store tests. Concrete
// store test suites embed it and call SetStore with a fresh store
// before each test.
type BaseSuite struct {
	store checkpoint.Store
}

// SetStore configures the test suite to run all test cases against
// the provided store instance.
func (s *BaseSuite) SetStore(store checkpoint.Store) {
	s.store = store
}

func (s *BaseSuite) TestLoadWithoutCheckpoint(c *check.C) {
	_, err := s.store.Load()
	c.Assert(errors.Is(err, checkpoint.ErrNoCheckpoint), check.Equals, true)
}

func (s *BaseSuite) TestSaveLoadRoundTrip(c *check.C) {
	state := sampleState(c)

	c.Assert(s.store.Save(state), check.IsNil)

	loaded, err := s.store.Load()
	c.Assert(err, check.IsNil)

	c.Assert(loaded.CrawlID, check.Equals, state.CrawlID)
	c.Assert(loaded.SavedAt.Equal(state.SavedAt), check.Equals, true)
	c.Assert(loaded.Frontier, check.DeepEquals, state.Frontier)
	c.Assert(loaded.SeenKeys, check.DeepEquals, state.SeenKeys)
	c.Assert(loaded.Edges, check.DeepEquals, state.Edges)
	c.Assert(loaded.Authors, check.HasLen, len(state.Authors))
	c.Assert(loaded.Authors[0].Key, check.Equals, state.Authors[0].Key)
	c.Assert(loaded.Authors[0].Interests, check.DeepEquals, state.Authors[0].Interests)
}

func (s *BaseSuite) TestSaveReplacesPreviousCheckpoint(c *check.C) {
	first := sampleState(c)
	c.Assert(s.store.Save(first), check.IsNil)

	second := sampleState(c)
	second.SeenKeys = append(second.SeenKeys, "id:extra")
	c.Assert(s.store.Save(second), check.IsNil)

	loaded, err := s.store.Load()
	c.Assert(err, check.IsNil)
	c.Assert(loaded.CrawlID, check.Equals, second.CrawlID)
	c.Assert(loaded.SeenKeys, check.DeepEquals, second.SeenKeys)
}

func (s *BaseSuite) TestSavedStateIsolatedFromCallerMutation(c *check.C) {
	state := sampleState(c)
	c.Assert(s.store.Save(state), check.IsNil)

	state.SeenKeys[0] = "mutated"
	state.Frontier[0].Key = "mutated"

	loaded, err := s.store.Load()
	c.Assert(err, check.IsNil)
	c.Assert(loaded.SeenKeys[0], check.Equals, "id:AbCdEf123456")
	c.Assert(loaded.Frontier[0].Key, check.Equals, "id:AbCdEf123456")
}

func sampleState(c *check.C) *checkpoint.State {
	crawlID, err := uuid.NewRandom()
	c.Assert(err, check.IsNil)

	now := time.Now().UTC().Truncate(time.Millisecond)

	return &checkpoint.State{
		CrawlID: crawlID,
		SavedAt: now,
		Frontier: []frontier.Target{
			{
				Key:    "id:AbCdEf123456",
				Kind:   frontier.KindProfile,
				URL:    "https://scholar.google.com/citations?user=AbCdEf123456",
				Depth:  1,
				Status: frontier.StatusPending,
				Seq:    3,
			},
			{
				Key:    "search:jane doe",
				Kind:   frontier.KindSearch,
				Query:  "jane doe",
				Status: frontier.StatusDone,
				Seq:    0,
			},
		},
		SeenKeys: []string{"id:AbCdEf123456", "id:ZyXwVu654321"},
		Authors: []graph.Author{
			{
				Key:         "id:AbCdEf123456",
				SiteID:      "AbCdEf123456",
				Name:        "Jane Doe",
				Affiliation: "Stanford University",
				Interests:   []string{"Machine Learning", "Robotics"},
				CitedBy:     15210,
				FirstSeenAt: now,
				UpdatedAt:   now,
			},
			{
				Key:         "id:ZyXwVu654321",
				SiteID:      "ZyXwVu654321",
				Name:        "John Roe",
				FirstSeenAt: now,
				UpdatedAt:   now,
			},
		},
		Edges: []graph.Edge{
			{
				ID:          uuid.New(),
				A:           "id:AbCdEf123456",
				B:           "id:ZyXwVu654321",
				Evidence:    []string{"coauthor-list"},
				FirstSeenAt: now,
				UpdatedAt:   now,
			},
		},
	}
}
