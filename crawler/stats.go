package crawler

import (
	"sync"
	"time"
)

// StatsSnapshot is a point-in-time copy of a crawl's counters.
type StatsSnapshot struct {
	// FetchedPages counts successfully fetched and interpreted pages.
	FetchedPages int

	// FailedPermanent counts targets abandoned after exhausting their
	// fetch attempts.
	FailedPermanent int

	// DepthLimited counts discovered targets dropped by the depth limit.
	DepthLimited int

	// NodeLimited counts discovered targets dropped by the node limit.
	NodeLimited int

	// Challenges counts bot-detection challenges encountered.
	Challenges int

	// LastFetchAt records the completion time of the most recent
	// successful fetch.
	LastFetchAt time.Time
}

// Stats accumulates crawl counters. All methods are safe for concurrent
// use so several sessions can share one instance.
type Stats struct {
	mu       sync.Mutex
	snapshot StatsSnapshot
}

// NewStats creates a zeroed counter set.
func NewStats() *Stats {
	return new(Stats)
}

// Snapshot returns a copy of the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot
}

func (s *Stats) incFetched(at time.Time) {
	s.mu.Lock()
	s.snapshot.FetchedPages++
	s.snapshot.LastFetchAt = at
	s.mu.Unlock()
}

func (s *Stats) incFailedPermanent() {
	s.mu.Lock()
	s.snapshot.FailedPermanent++
	s.mu.Unlock()
}

func (s *Stats) incDepthLimited() {
	s.mu.Lock()
	s.snapshot.DepthLimited++
	s.mu.Unlock()
}

func (s *Stats) incNodeLimited() {
	s.mu.Lock()
	s.snapshot.NodeLimited++
	s.mu.Unlock()
}

func (s *Stats) incChallenges() {
	s.mu.Lock()
	s.snapshot.Challenges++
	s.mu.Unlock()
}
