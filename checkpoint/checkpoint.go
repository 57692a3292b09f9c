// Package checkpoint defines the persisted crawl state and the store
// contract used to save and restore it. A checkpoint captures enough of
// a crawl to resume it after a shutdown: the frontier's targets, the
// set of canonical keys already seen, and the graph accumulated so far.
package checkpoint

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jamespreed/scholar-crawler/authorgraph/graph"
	"github.com/jamespreed/scholar-crawler/frontier"
)

// ErrNoCheckpoint is returned by Load when the store holds no saved
// state.
var ErrNoCheckpoint = errors.New("no checkpoint available")

// State is a point-in-time snapshot of a crawl.
type State struct {
	// CrawlID identifies the crawl the snapshot belongs to. It is
	// assigned when the crawl starts and preserved across resumes.
	CrawlID uuid.UUID `json:"crawl_id"`

	// SavedAt records when the snapshot was taken.
	SavedAt time.Time `json:"saved_at"`

	Frontier []frontier.Target `json:"frontier"`
	SeenKeys []string          `json:"seen_keys"`
	Authors  []graph.Author    `json:"authors"`
	Edges    []graph.Edge      `json:"edges"`
}

// Store is implemented by checkpoint persistence back-ends.
type Store interface {
	// Save persists the state, replacing any previous checkpoint.
	Save(state *State) error

	// Load returns the most recently saved state or ErrNoCheckpoint
	// when none exists.
	Load() (*State, error)
}
