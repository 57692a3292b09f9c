/*
	frontier package implements the crawl frontier: a breadth-first
	scheduler of pending fetch targets with per-target retry state and
	crawl-depth bookkeeping.

	Targets are processed strictly by depth tier (all depth-N targets
	before any depth-N+1 target) and FIFO by discovery order within a
	tier, which bounds fan-out growth predictably. Completed targets are
	retained for deduplication and audit purposes and never re-enqueued.
*/

package frontier

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"
)

var (
	// ErrAlreadyTracked is returned when pushing a target whose canonical
	// key is already tracked by the frontier, regardless of its status.
	ErrAlreadyTracked = errors.New("target already tracked")

	// ErrDepthLimitReached is returned when a pushed target lies beyond
	// the configured depth limit. The target is dropped, not enqueued.
	ErrDepthLimitReached = errors.New("depth limit reached")

	// ErrNodeLimitReached is returned when the configured node-count
	// limit prevents another profile target from being enqueued.
	ErrNodeLimitReached = errors.New("node limit reached")

	// ErrDrained is returned by PopReady when no pending or in-flight
	// targets remain. The crawl is complete.
	ErrDrained = errors.New("frontier drained")

	// ErrNotYetEligible is returned by PopReady when pending targets
	// exist but none is currently eligible (all are backing off or held
	// in flight elsewhere). The caller should idle and retry.
	ErrNotYetEligible = errors.New("no target eligible yet")

	// ErrUnknownTarget is returned when rescheduling or completing a
	// target the frontier does not track.
	ErrUnknownTarget = errors.New("unknown target")
)

// Kind enumerates the two kinds of fetch targets.
type Kind uint8

const (
	// KindSearch targets fetch an author-search result page.
	KindSearch Kind = iota

	// KindProfile targets fetch an author profile page.
	KindProfile
)

// String implements fmt.Stringer for Kind.
func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// Status enumerates the lifecycle states of a crawl target.
type Status uint8

const (
	// StatusPending marks a target waiting to be fetched.
	StatusPending Status = iota

	// StatusInFlight marks a target that has been popped and is being
	// fetched.
	StatusInFlight

	// StatusDone marks a successfully processed target.
	StatusDone

	// StatusFailedPermanent marks a target that exhausted its retry
	// budget. It is retained but never re-enqueued.
	StatusFailedPermanent
)

// String implements fmt.Stringer for Status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "in-flight"
	case StatusDone:
		return "done"
	case StatusFailedPermanent:
		return "failed-permanent"
	default:
		return "unknown"
	}
}

// Target represents a pending unit of crawl work: either an author
// search query or an author profile fetch.
type Target struct {
	Key       string    // Canonical deduplication key
	Kind      Kind      // Search or profile fetch
	Query     string    // Search text, for search targets
	URL       string    // URL to fetch
	Page      int       // Result page number, for paginated searches
	Depth     int       // Distance from the original seed
	Attempts  int       // Failed fetch attempts so far
	NotBefore time.Time // Next-eligible time, for backoff
	Status    Status    // Current lifecycle status
	Seq       uint64    // Discovery order within the frontier
}

// Config holds the frontier limit and clock configuration.
type Config struct {
	// MaxDepth rejects targets whose depth exceeds it. A negative value
	// disables the limit.
	MaxDepth int

	// MaxNodes caps the number of profile targets accepted into the
	// frontier. A value <= 0 disables the limit.
	MaxNodes int

	// Clock is used for backoff eligibility checks. Defaults to the
	// wall clock.
	Clock clock.Clock
}

// Frontier is a breadth-first, FIFO-within-tier scheduler of crawl
// targets. All methods are safe for concurrent use so a frontier may be
// shared across crawl controller instances.
type Frontier struct {
	mu sync.Mutex

	maxDepth int
	maxNodes int
	clk      clock.Clock

	targets     map[string]*Target
	tiers       map[int][]*Target // pending targets per depth, FIFO
	nextSeq     uint64
	numPending  int
	numInFlight int
	numProfiles int
}

// New creates an empty frontier with the provided configuration.
func New(config Config) *Frontier {
	clk := config.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	return &Frontier{
		maxDepth: config.MaxDepth,
		maxNodes: config.MaxNodes,
		clk:      clk,
		targets:  make(map[string]*Target),
		tiers:    make(map[int][]*Target),
	}
}

// Push enqueues a newly discovered target. Targets beyond the configured
// depth or node limits are dropped with the matching sentinel error so
// callers can record the drop in crawl statistics. Pushing a key the
// frontier already tracks (in any status) returns ErrAlreadyTracked.
func (f *Frontier) Push(target *Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.targets[target.Key]; exists {
		return ErrAlreadyTracked
	}

	if f.maxDepth >= 0 && target.Depth > f.maxDepth {
		return ErrDepthLimitReached
	}

	if target.Kind == KindProfile && f.maxNodes > 0 && f.numProfiles >= f.maxNodes {
		return ErrNodeLimitReached
	}

	t := new(Target)
	*t = *target
	t.Status = StatusPending
	t.Seq = f.nextSeq
	f.nextSeq++

	f.track(t)

	return nil
}

// PopReady returns the next eligible target in breadth-first order and
// marks it in flight. It returns ErrDrained when the frontier holds no
// more work and ErrNotYetEligible when pending targets exist but none
// has reached its next-eligible time.
func (f *Frontier) PopReady() (*Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.numPending == 0 {
		if f.numInFlight > 0 {
			// Another controller instance may still discover new targets.
			return nil, ErrNotYetEligible
		}

		return nil, ErrDrained
	}

	now := f.clk.Now()

	for _, depth := range f.sortedTierDepths() {
		tier := f.tiers[depth]

		for i, t := range tier {
			if t.NotBefore.After(now) {
				continue
			}

			f.tiers[depth] = append(tier[:i:i], tier[i+1:]...)
			if len(f.tiers[depth]) == 0 {
				delete(f.tiers, depth)
			}

			t.Status = StatusInFlight
			f.numPending--
			f.numInFlight++

			tCopy := new(Target)
			*tCopy = *t

			return tCopy, nil
		}

		// Strict breadth-first ordering: a deeper tier must not be
		// drained ahead of a shallower one that is merely backing off.
		return nil, ErrNotYetEligible
	}

	return nil, ErrNotYetEligible
}

// NextWakeup returns the earliest next-eligible time among pending
// targets in the shallowest tier. The boolean result is false when the
// frontier holds no pending targets.
func (f *Frontier) NextWakeup() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depths := f.sortedTierDepths()
	if len(depths) == 0 {
		return time.Time{}, false
	}

	var earliest time.Time
	for _, t := range f.tiers[depths[0]] {
		if earliest.IsZero() || t.NotBefore.Before(earliest) {
			earliest = t.NotBefore
		}
	}

	return earliest, true
}

// Reschedule counts a failed attempt against the target and returns it
// to the pending queue, eligible again after the provided delay.
func (f *Frontier) Reschedule(key string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, exists := f.targets[key]
	if !exists {
		return ErrUnknownTarget
	}

	// Terminal targets are never re-enqueued.
	if t.Status == StatusDone || t.Status == StatusFailedPermanent {
		return nil
	}

	if t.Status == StatusInFlight {
		f.numInFlight--
	} else if t.Status == StatusPending {
		// Already queued: only the backoff bookkeeping changes.
		f.untrackPending(t)
	}

	t.Attempts++
	t.NotBefore = f.clk.Now().Add(delay)
	t.Status = StatusPending

	f.track(t)

	return nil
}

// Release returns an in-flight target to the pending queue without an
// attempt penalty. It is used when a fetch was interrupted through no
// fault of the target, such as a bot-detection challenge.
func (f *Frontier) Release(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, exists := f.targets[key]
	if !exists {
		return ErrUnknownTarget
	}

	if t.Status != StatusInFlight {
		return nil
	}

	f.numInFlight--
	t.Status = StatusPending

	f.track(t)

	return nil
}

// Complete transitions a target to a terminal status (StatusDone or
// StatusFailedPermanent). Completed targets are retained for dedup and
// audit purposes.
func (f *Frontier) Complete(key string, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, exists := f.targets[key]
	if !exists {
		return ErrUnknownTarget
	}

	switch t.Status {
	case StatusInFlight:
		f.numInFlight--
	case StatusPending:
		f.untrackPending(t)
	}

	t.Status = status

	return nil
}

// NumPending returns the number of targets waiting to be fetched.
func (f *Frontier) NumPending() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.numPending
}

// Len returns the total number of tracked targets in any status.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.targets)
}

// Snapshot returns a copy of every tracked target ordered by discovery
// sequence, for inclusion in a crawl checkpoint.
func (f *Frontier) Snapshot() []Target {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := make([]Target, 0, len(f.targets))
	for _, t := range f.targets {
		snapshot = append(snapshot, *t)
	}

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Seq < snapshot[j].Seq
	})

	return snapshot
}

// Restore replaces the frontier contents with the provided targets. Any
// target persisted as in-flight is demoted to pending so an interrupted
// crawl re-fetches it.
func (f *Frontier) Restore(targets []Target) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.targets = make(map[string]*Target, len(targets))
	f.tiers = make(map[int][]*Target)
	f.nextSeq = 0
	f.numPending = 0
	f.numInFlight = 0
	f.numProfiles = 0

	restored := append([]Target(nil), targets...)
	sort.Slice(restored, func(i, j int) bool {
		return restored[i].Seq < restored[j].Seq
	})

	for i := range restored {
		t := new(Target)
		*t = restored[i]

		if t.Status == StatusInFlight {
			t.Status = StatusPending
		}
		if t.Seq >= f.nextSeq {
			f.nextSeq = t.Seq + 1
		}

		f.track(t)
	}
}

// track registers the target and, when pending, appends it to its depth
// tier. Callers must hold the frontier mutex.
func (f *Frontier) track(t *Target) {
	if _, exists := f.targets[t.Key]; !exists {
		f.targets[t.Key] = t

		if t.Kind == KindProfile {
			f.numProfiles++
		}
	}

	if t.Status == StatusPending {
		f.tiers[t.Depth] = append(f.tiers[t.Depth], t)
		f.numPending++
	}
}

// untrackPending removes a pending target from its depth tier. Callers
// must hold the frontier mutex.
func (f *Frontier) untrackPending(t *Target) {
	tier := f.tiers[t.Depth]
	for i, queued := range tier {
		if queued.Key != t.Key {
			continue
		}

		f.tiers[t.Depth] = append(tier[:i:i], tier[i+1:]...)
		if len(f.tiers[t.Depth]) == 0 {
			delete(f.tiers, t.Depth)
		}
		f.numPending--

		return
	}
}

// sortedTierDepths returns the depths of non-empty pending tiers in
// ascending order. Callers must hold the frontier mutex.
func (f *Frontier) sortedTierDepths() []int {
	depths := make([]int, 0, len(f.tiers))
	for depth := range f.tiers {
		depths = append(depths, depth)
	}

	sort.Ints(depths)

	return depths
}
