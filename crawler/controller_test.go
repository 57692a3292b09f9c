package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	check "gopkg.in/check.v1"

	memgraph "github.com/jamespreed/scholar-crawler/authorgraph/store/memory"
	"github.com/jamespreed/scholar-crawler/checkpoint"
	memcheckpoint "github.com/jamespreed/scholar-crawler/checkpoint/store/memory"
	"github.com/jamespreed/scholar-crawler/dedup"
	"github.com/jamespreed/scholar-crawler/frontier"
	"github.com/jamespreed/scholar-crawler/scholar"
)

// Initialize and register an instance of the controllerTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(controllerTestSuite))

type controllerTestSuite struct{}

// Profile ids used across the controller scenarios.
const (
	idA = "AAAA11112222"
	idB = "BBBB11112222"
	idC = "CCCC11112222"
)

func (s *controllerTestSuite) TestDepthLimitedCrawl(c *check.C) {
	// Seeded with a search that reveals profiles A and B. A's profile
	// lists B and C as co-authors. With a depth limit of 1, C sits at
	// depth 2 and must be dropped while remaining a graph node.
	fetcher := newScriptedFetcher()
	fetcher.script(scholar.SearchURL("Jane Doe"), searchBody([]searchEntry{
		{id: idA, name: "Jane Doe"},
		{id: idB, name: "John Roe"},
	}))
	fetcher.script(scholar.ProfileURL(idA), profileBody("Jane Doe", []coauthorEntry{
		{id: idB, name: "John Roe"},
		{id: idC, name: "Ann Poe"},
	}))
	fetcher.script(scholar.ProfileURL(idB), profileBody("John Roe", []coauthorEntry{
		{id: idA, name: "Jane Doe"},
	}))

	env := newTestEnv(c, fetcher, frontier.Config{MaxDepth: 1})
	c.Assert(env.controller.SeedSearch("Jane Doe"), check.IsNil)

	c.Assert(env.controller.Run(context.Background()), check.IsNil)
	c.Assert(env.controller.State(), check.Equals, StateStopped)

	stats := env.controller.Stats()
	c.Assert(stats.FetchedPages, check.Equals, 3)
	c.Assert(stats.DepthLimited, check.Equals, 1)
	c.Assert(stats.NodeLimited, check.Equals, 0)
	c.Assert(stats.FailedPermanent, check.Equals, 0)

	// All three authors exist as nodes even though C was never fetched.
	c.Assert(countAuthors(c, env.graph), check.Equals, 3)

	edge, err := env.graph.FindEdge("id:"+idA, "id:"+idB)
	c.Assert(err, check.IsNil)
	c.Assert(edge.Evidence, check.DeepEquals, []string{scholar.EvidenceListedCoauthor})

	_, err = env.graph.FindEdge("id:"+idA, "id:"+idC)
	c.Assert(err, check.IsNil)

	// C never made it into the frontier.
	for _, target := range env.frontier.Snapshot() {
		c.Assert(target.Key, check.Not(check.Equals), "id:"+idC)
	}
}

func (s *controllerTestSuite) TestNodeLimitedCrawl(c *check.C) {
	fetcher := newScriptedFetcher()
	fetcher.script(scholar.SearchURL("Jane Doe"), searchBody([]searchEntry{
		{id: idA, name: "Jane Doe"},
		{id: idB, name: "John Roe"},
	}))
	fetcher.script(scholar.ProfileURL(idA), profileBody("Jane Doe", nil))

	env := newTestEnv(c, fetcher, frontier.Config{MaxDepth: -1, MaxNodes: 1})
	c.Assert(env.controller.SeedSearch("Jane Doe"), check.IsNil)

	c.Assert(env.controller.Run(context.Background()), check.IsNil)

	stats := env.controller.Stats()
	c.Assert(stats.NodeLimited, check.Equals, 1)
	c.Assert(stats.FetchedPages, check.Equals, 2)
}

func (s *controllerTestSuite) TestChallengePausesUntilResumed(c *check.C) {
	// B's first fetch hits a challenge; after the resume signal the
	// retry succeeds.
	fetcher := newScriptedFetcher()
	fetcher.script(scholar.ProfileURL(idA), profileBody("Jane Doe", []coauthorEntry{
		{id: idB, name: "John Roe"},
	}))
	fetcher.script(
		scholar.ProfileURL(idB),
		challengeBody(),
		profileBody("John Roe", []coauthorEntry{{id: idA, name: "Jane Doe"}}),
	)

	env := newTestEnv(c, fetcher, frontier.Config{MaxDepth: -1})
	c.Assert(env.controller.SeedProfile(idA), check.IsNil)

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	done := make(chan error, 1)
	go func() { done <- env.controller.Run(ctx) }()

	waitForState(c, env.controller, StatePausedChallenge)

	select {
	case event := <-env.controller.Challenges():
		c.Assert(event.TargetKey, check.Equals, "id:"+idB)
	case <-time.After(5 * time.Second):
		c.Fatal("timed out waiting for challenge event")
	}

	// The challenged target is back to pending with no attempt penalty.
	target := findTarget(c, env.frontier, "id:"+idB)
	c.Assert(target.Status, check.Equals, frontier.StatusPending)
	c.Assert(target.Attempts, check.Equals, 0)

	env.controller.Resume()

	select {
	case err := <-done:
		c.Assert(err, check.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("timed out waiting for crawl to finish")
	}

	c.Assert(env.controller.State(), check.Equals, StateStopped)

	stats := env.controller.Stats()
	c.Assert(stats.Challenges, check.Equals, 1)
	c.Assert(stats.FetchedPages, check.Equals, 2)
	c.Assert(stats.FailedPermanent, check.Equals, 0)

	target = findTarget(c, env.frontier, "id:"+idB)
	c.Assert(target.Status, check.Equals, frontier.StatusDone)
}

func (s *controllerTestSuite) TestAttemptCapMarksTargetFailedPermanent(c *check.C) {
	fetcher := newScriptedFetcher()
	fetcher.scriptErr(scholar.ProfileURL(idA), fmt.Errorf("connection timed out"))

	env := newTestEnv(c, fetcher, frontier.Config{MaxDepth: -1})
	env.config.MaxAttempts = 2
	env.config.BackoffBase = time.Millisecond
	env.rebuild(c)

	c.Assert(env.controller.SeedProfile(idA), check.IsNil)
	c.Assert(env.controller.Run(context.Background()), check.IsNil)

	stats := env.controller.Stats()
	c.Assert(stats.FailedPermanent, check.Equals, 1)
	c.Assert(stats.FetchedPages, check.Equals, 0)
	c.Assert(fetcher.callCount(scholar.ProfileURL(idA)), check.Equals, 2)

	target := findTarget(c, env.frontier, "id:"+idA)
	c.Assert(target.Status, check.Equals, frontier.StatusFailedPermanent)
}

func (s *controllerTestSuite) TestResumeFidelityAcrossCheckpoint(c *check.C) {
	pageA := profileBody("Jane Doe", []coauthorEntry{{id: idB, name: "John Roe"}})
	pageB := profileBody("John Roe", []coauthorEntry{{id: idA, name: "Jane Doe"}})

	// Uninterrupted reference run.
	refFetcher := newScriptedFetcher()
	refFetcher.script(scholar.ProfileURL(idA), pageA)
	refFetcher.script(scholar.ProfileURL(idB), pageB)

	refEnv := newTestEnv(c, refFetcher, frontier.Config{MaxDepth: -1})
	c.Assert(refEnv.controller.SeedProfile(idA), check.IsNil)
	c.Assert(refEnv.controller.Run(context.Background()), check.IsNil)

	// Interrupted run: B's fetch hits a challenge and the crawl is
	// cancelled mid-pause, leaving B pending in the final checkpoint.
	fetcher1 := newScriptedFetcher()
	fetcher1.script(scholar.ProfileURL(idA), pageA)
	fetcher1.script(scholar.ProfileURL(idB), challengeBody())

	env1 := newTestEnv(c, fetcher1, frontier.Config{MaxDepth: -1})
	c.Assert(env1.controller.SeedProfile(idA), check.IsNil)

	ctx, cancelFn := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env1.controller.Run(ctx) }()

	waitForState(c, env1.controller, StatePausedChallenge)
	cancelFn()

	select {
	case err := <-done:
		c.Assert(err, check.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("timed out waiting for interrupted crawl to stop")
	}

	saved, err := env1.checkpoints.Load()
	c.Assert(err, check.IsNil)
	c.Assert(findSnapshotTarget(c, saved.Frontier, "id:"+idB).Status,
		check.Equals, frontier.StatusPending)

	// Fresh collaborators restored from the checkpoint finish the crawl.
	fetcher2 := newScriptedFetcher()
	fetcher2.script(scholar.ProfileURL(idB), pageB)

	env2 := newTestEnv(c, fetcher2, frontier.Config{MaxDepth: -1})
	env2.checkpoints = env1.checkpoints
	env2.config.Checkpoints = env1.checkpoints
	env2.config.CrawlID = saved.CrawlID
	c.Assert(Restore(saved, env2.graph, env2.frontier, env2.dedup), check.IsNil)
	env2.rebuild(c)

	c.Assert(env2.controller.Run(context.Background()), check.IsNil)

	// Only B is fetched on resume.
	c.Assert(env2.controller.Stats().FetchedPages, check.Equals, 1)
	c.Assert(fetcher2.callCount(scholar.ProfileURL(idA)), check.Equals, 0)

	// The resumed crawl converges to the reference run's graph.
	c.Assert(graphFingerprint(c, env2.graph), check.DeepEquals,
		graphFingerprint(c, refEnv.graph))

	final, err := env2.checkpoints.Load()
	c.Assert(err, check.IsNil)
	c.Assert(final.CrawlID, check.Equals, saved.CrawlID)
	c.Assert(findSnapshotTarget(c, final.Frontier, "id:"+idB).Status,
		check.Equals, frontier.StatusDone)
}

func (s *controllerTestSuite) TestCheckpointWriteFailureIsFatal(c *check.C) {
	fetcher := newScriptedFetcher()
	fetcher.script(scholar.ProfileURL(idA), profileBody("Jane Doe", nil))

	env := newTestEnv(c, fetcher, frontier.Config{MaxDepth: -1})
	env.config.Checkpoints = failingCheckpointStore{}
	env.rebuild(c)

	c.Assert(env.controller.SeedProfile(idA), check.IsNil)

	err := env.controller.Run(context.Background())
	c.Assert(err, check.ErrorMatches, ".*checkpoint.*disk full.*")
}

// -------------------- test environment --------------------

type testEnv struct {
	graph       *memgraph.InMemoryGraph
	dedup       *dedup.Store
	frontier    *frontier.Frontier
	checkpoints *memcheckpoint.InMemoryStore
	config      Config
	controller  *Controller
}

func newTestEnv(c *check.C, fetcher Fetcher, frontierConfig frontier.Config) *testEnv {
	env := &testEnv{
		graph:       memgraph.NewInMemoryGraph(),
		dedup:       dedup.NewStore(),
		frontier:    frontier.New(frontierConfig),
		checkpoints: memcheckpoint.NewInMemoryStore(),
	}

	env.config = Config{
		GraphAPI:    env.graph,
		Fetcher:     fetcher,
		Dedup:       env.dedup,
		Frontier:    env.frontier,
		Checkpoints: env.checkpoints,
		RateLimiter: rate.NewLimiter(rate.Inf, 1),
		Logger:      discardLogger(),
	}

	env.rebuild(c)

	return env
}

// rebuild recreates the controller after config tweaks.
func (env *testEnv) rebuild(c *check.C) {
	controller, err := New(env.config)
	c.Assert(err, check.IsNil)

	env.controller = controller
}

func waitForState(c *check.C, controller *Controller, want State) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if controller.State() == want {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	c.Fatalf("timed out waiting for controller state %q", want)
}

func findTarget(c *check.C, front *frontier.Frontier, key string) frontier.Target {
	return findSnapshotTarget(c, front.Snapshot(), key)
}

func findSnapshotTarget(c *check.C, targets []frontier.Target, key string) frontier.Target {
	for _, target := range targets {
		if target.Key == key {
			return target
		}
	}

	c.Fatalf("target %q not found in frontier snapshot", key)

	return frontier.Target{}
}

// graphFingerprint reduces a graph to a comparable shape: author keys
// and edge endpoint pairs with their evidence.
func graphFingerprint(c *check.C, g GraphAPI) map[string][]string {
	fingerprint := make(map[string][]string)

	authorIt, err := g.Authors()
	c.Assert(err, check.IsNil)
	for authorIt.Next() {
		author := authorIt.Author()
		fingerprint["author/"+author.Key] = []string{author.Name}
	}
	c.Assert(authorIt.Error(), check.IsNil)
	c.Assert(authorIt.Close(), check.IsNil)

	edgeIt, err := g.Edges()
	c.Assert(err, check.IsNil)
	for edgeIt.Next() {
		edge := edgeIt.Edge()
		fingerprint["edge/"+edge.A+"/"+edge.B] = edge.Evidence
	}
	c.Assert(edgeIt.Error(), check.IsNil)
	c.Assert(edgeIt.Close(), check.IsNil)

	return fingerprint
}

type failingCheckpointStore struct{}

func (failingCheckpointStore) Save(*checkpoint.State) error {
	return fmt.Errorf("disk full")
}

func (failingCheckpointStore) Load() (*checkpoint.State, error) {
	return nil, checkpoint.ErrNoCheckpoint
}

// -------------------- scripted fetcher --------------------

type fetchStep struct {
	body string
	err  error
}

// scriptedFetcher returns canned responses per URL. Multiple steps for
// the same URL are consumed in order; the last step repeats.
type scriptedFetcher struct {
	mu      sync.Mutex
	scripts map[string][]fetchStep
	calls   map[string]int
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		scripts: make(map[string][]fetchStep),
		calls:   make(map[string]int),
	}
}

func (f *scriptedFetcher) script(url string, bodies ...string) {
	for _, body := range bodies {
		f.scripts[url] = append(f.scripts[url], fetchStep{body: body})
	}
}

func (f *scriptedFetcher) scriptErr(url string, err error) {
	f.scripts[url] = append(f.scripts[url], fetchStep{err: err})
}

func (f *scriptedFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[url]
}

func (f *scriptedFetcher) Fetch(_ context.Context, url string) (*scholar.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[url]++

	steps := f.scripts[url]
	if len(steps) == 0 {
		return nil, fmt.Errorf("no scripted response for %s", url)
	}

	step := steps[0]
	if len(steps) > 1 {
		f.scripts[url] = steps[1:]
	}

	if step.err != nil {
		return nil, step.err
	}

	return &scholar.Document{URL: url, Content: []byte(step.body)}, nil
}

// -------------------- page builders --------------------

type searchEntry struct {
	id   string
	name string
}

type coauthorEntry struct {
	id   string
	name string
}

func searchBody(entries []searchEntry) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="gsc_sa_ccl">`)

	for _, e := range entries {
		fmt.Fprintf(&b,
			`<div class="gs_ai_t"><h3 class="gs_ai_name">`+
				`<a href="/citations?hl=en&amp;user=%s&amp;view_op=list_works">%s</a>`+
				`</h3></div>`,
			e.id, e.name,
		)
	}

	b.WriteString(`</div></body></html>`)

	return b.String()
}

func profileBody(name string, coauthors []coauthorEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><div id="gsc_prf_in">%s</div>`, name)

	b.WriteString(`<ul id="gsc_rsb_co">`)
	for _, co := range coauthors {
		fmt.Fprintf(&b,
			`<li><span class="gsc_rsb_a_desc">`+
				`<a href="/citations?hl=en&amp;user=%s&amp;view_op=list_works">%s</a>`+
				`</span></li>`,
			co.id, co.name,
		)
	}
	b.WriteString(`</ul></body></html>`)

	return b.String()
}

func challengeBody() string {
	return `<html><body>` +
		`Our systems have detected unusual traffic from your computer network` +
		`</body></html>`
}
