// Package crawler implements the crawl controller: it drives the fetch,
// interpret and ingest cycle for every target the frontier schedules,
// pausing on bot-detection challenges and checkpointing its progress so
// an interrupted crawl can resume where it left off.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jamespreed/scholar-crawler/checkpoint"
	"github.com/jamespreed/scholar-crawler/dedup"
	"github.com/jamespreed/scholar-crawler/frontier"
	"github.com/jamespreed/scholar-crawler/scholar"
)

// State represents the life-cycle phase of a crawl controller.
type State uint8

const (
	// StateIdle marks a controller that has not started running yet.
	StateIdle State = iota

	// StateRunning marks a controller actively processing targets.
	StateRunning

	// StatePausedChallenge marks a controller waiting for a
	// bot-detection challenge to be cleared via Resume.
	StatePausedChallenge

	// StatePausedBackoff marks a controller waiting for the next target
	// to become eligible.
	StatePausedBackoff

	// StateDraining marks a controller writing its final checkpoint.
	StateDraining

	// StateStopped marks a controller that has finished running.
	StateStopped
)

// String implements the fmt.Stringer interface for the State type.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePausedChallenge:
		return "paused-challenge"
	case StatePausedBackoff:
		return "paused-backoff"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ChallengeEvent notifies listeners that a crawl session hit a
// bot-detection challenge and paused until it is resolved.
type ChallengeEvent struct {
	SessionName string
	TargetKey   string
	URL         string
	OccurredAt  time.Time
}

// How long to wait before re-polling the frontier when another session
// holds the only remaining in-flight work.
const inFlightPollInterval = 500 * time.Millisecond

// Controller runs a single crawl session. It satisfies the
// service.Service interface so several sessions can execute as a group
// against a shared frontier, dedup store and graph.
type Controller struct {
	config   Config
	ingestor *ingestor
	stats    *Stats
	logger   *logrus.Entry

	mu    sync.RWMutex
	state State

	resumeCh    chan struct{}
	challengeCh chan ChallengeEvent
}

// New creates and returns a fully configured crawl controller instance.
func New(config Config) (*Controller, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("crawl controller: config validation failed: %w", err)
	}

	logger := config.Logger.WithField("session", config.SessionName)

	return &Controller{
		config: config,
		ingestor: &ingestor{
			graph:  config.GraphAPI,
			index:  config.IndexAPI,
			logger: logger,
		},
		stats:       NewStats(),
		logger:      logger,
		state:       StateIdle,
		resumeCh:    make(chan struct{}, 1),
		challengeCh: make(chan ChallengeEvent, 8),
	}, nil
}

// Name returns the name of the service.
func (svc *Controller) Name() string { return svc.config.SessionName }

// State returns the controller's current life-cycle state.
func (svc *Controller) State() State {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return svc.state
}

// Stats returns a snapshot of the session's crawl counters.
func (svc *Controller) Stats() StatsSnapshot {
	return svc.stats.Snapshot()
}

// Challenges returns the channel the controller publishes challenge
// events on. Events are dropped when no listener keeps up.
func (svc *Controller) Challenges() <-chan ChallengeEvent {
	return svc.challengeCh
}

// Resume signals a challenge-paused controller that the challenge has
// been cleared and crawling may continue. Calling it in any other state
// is a no-op.
func (svc *Controller) Resume() {
	select {
	case svc.resumeCh <- struct{}{}:
	default:
	}
}

// SeedSearch enqueues an author-search query as a crawl root. Seeding
// the same query twice is a no-op.
func (svc *Controller) SeedSearch(query string) error {
	err := svc.config.Frontier.Push(&frontier.Target{
		Key:   "search:" + dedup.Normalize(query),
		Kind:  frontier.KindSearch,
		Query: query,
		URL:   scholar.SearchURL(query),
		Depth: 0,
		Page:  1,
	})
	if err != nil && !errors.Is(err, frontier.ErrAlreadyTracked) {
		return err
	}

	return nil
}

// SeedProfile enqueues a known profile identifier as a crawl root.
func (svc *Controller) SeedProfile(siteID string) error {
	key, _ := dedup.CanonicalKey(dedup.Identity{SiteID: siteID})

	err := svc.config.Frontier.Push(&frontier.Target{
		Key:   key,
		Kind:  frontier.KindProfile,
		URL:   scholar.ProfileURL(siteID),
		Depth: 0,
	})
	if err != nil {
		if errors.Is(err, frontier.ErrAlreadyTracked) {
			return nil
		}

		return err
	}

	svc.config.Dedup.MarkSeen(key)

	return nil
}

// Restore rebuilds the frontier, dedup store and author graph from a
// previously saved checkpoint. It must run before any session using
// those collaborators starts.
func Restore(
	state *checkpoint.State,
	graphAPI GraphAPI,
	front *frontier.Frontier,
	seen *dedup.Store,
) error {

	front.Restore(state.Frontier)
	seen.Restore(state.SeenKeys)

	for i := range state.Authors {
		if err := graphAPI.UpsertAuthor(&state.Authors[i]); err != nil {
			return fmt.Errorf("restore author: %w", err)
		}
	}

	for i := range state.Edges {
		if err := graphAPI.UpsertEdge(&state.Edges[i]); err != nil {
			return fmt.Errorf("restore edge: %w", err)
		}
	}

	return nil
}

// Run executes the crawl session and blocks until the frontier drains,
// the context gets cancelled or a checkpoint write fails. A cancelled
// context is not an error: the session finishes its in-flight target,
// writes a final checkpoint and stops cleanly.
func (svc *Controller) Run(ctx context.Context) error {
	logger := svc.logger.WithField("crawl_id", svc.config.CrawlID.String())
	logger.Info("starting crawl session")
	defer logger.Info("stopped crawl session")

	svc.setState(StateRunning)
	lastCheckpoint := svc.config.Clock.Now()

	for {
		if ctx.Err() != nil {
			return svc.drain()
		}

		target, err := svc.config.Frontier.PopReady()
		switch {
		case errors.Is(err, frontier.ErrDrained):
			return svc.drain()
		case errors.Is(err, frontier.ErrNotYetEligible):
			if err := svc.waitForEligible(ctx); err != nil {
				return svc.drain()
			}

			continue
		case err != nil:
			return fmt.Errorf("crawl controller: %w", err)
		}

		svc.process(ctx, target)

		if svc.config.Clock.Now().Sub(lastCheckpoint) >= svc.config.CheckpointInterval {
			if err := svc.saveCheckpoint(); err != nil {
				svc.setState(StateStopped)

				return fmt.Errorf("crawl controller: checkpoint: %w", err)
			}

			lastCheckpoint = svc.config.Clock.Now()
		}
	}
}

// process fetches, interprets and ingests a single target and settles
// its frontier status.
func (svc *Controller) process(ctx context.Context, target *frontier.Target) {
	logger := svc.logger.WithFields(logrus.Fields{
		"target": target.Key,
		"kind":   target.Kind.String(),
		"depth":  target.Depth,
	})

	if err := svc.config.RateLimiter.Wait(ctx); err != nil {
		// Cancelled while pacing: the target has not been attempted, so
		// hand it back untouched for the next session or resume.
		_ = svc.config.Frontier.Release(target.Key)

		return
	}

	doc, err := svc.config.Fetcher.Fetch(ctx, target.URL)
	if err != nil {
		svc.settleFailure(ctx, target, logger, err)

		return
	}

	switch target.Kind {
	case frontier.KindSearch:
		err = svc.processSearch(target, doc)
	case frontier.KindProfile:
		err = svc.processProfile(target, doc)
	}

	if err != nil {
		svc.settleFailure(ctx, target, logger, err)

		return
	}

	_ = svc.config.Frontier.Complete(target.Key, frontier.StatusDone)
	svc.stats.incFetched(svc.config.Clock.Now())

	logger.Debug("processed target")
}

func (svc *Controller) processSearch(
	target *frontier.Target, doc *scholar.Document,
) error {

	results, err := scholar.InterpretSearchResults(doc)
	if err != nil {
		return err
	}

	now := svc.config.Clock.Now()

	for _, hint := range results.Authors {
		d, err := svc.ingestor.ingestSearchHint(hint, now)
		if err != nil {
			return err
		}

		if d != nil {
			svc.pushDiscovery(*d, target.Depth+1)
		}
	}

	if results.NextPageURL != "" && target.Page < svc.config.MaxSearchPages {
		svc.pushTracked(&frontier.Target{
			Key: fmt.Sprintf(
				"search:%s:page:%d", dedup.Normalize(target.Query), target.Page+1,
			),
			Kind:  frontier.KindSearch,
			Query: target.Query,
			URL:   results.NextPageURL,
			Depth: target.Depth,
			Page:  target.Page + 1,
		})
	}

	return nil
}

func (svc *Controller) processProfile(
	target *frontier.Target, doc *scholar.Document,
) error {

	profile, hints, err := scholar.InterpretProfile(doc)
	if err != nil {
		return err
	}

	_, discoveries, err := svc.ingestor.ingestProfile(
		profile, hints, svc.config.Clock.Now(),
	)
	if err != nil {
		return err
	}

	for _, d := range discoveries {
		svc.pushDiscovery(d, target.Depth+1)
	}

	return nil
}

// pushDiscovery schedules a newly discovered profile unless its
// canonical key has already been seen.
func (svc *Controller) pushDiscovery(d discovery, depth int) {
	if svc.config.Dedup.HasSeen(d.key) {
		return
	}
	svc.config.Dedup.MarkSeen(d.key)

	url := d.url
	if url == "" {
		url = scholar.ProfileURL(d.siteID)
	}

	svc.pushTracked(&frontier.Target{
		Key:   d.key,
		Kind:  frontier.KindProfile,
		URL:   url,
		Depth: depth,
	})
}

// pushTracked pushes a target and records limit drops in the crawl
// counters.
func (svc *Controller) pushTracked(target *frontier.Target) {
	err := svc.config.Frontier.Push(target)
	switch {
	case err == nil, errors.Is(err, frontier.ErrAlreadyTracked):
	case errors.Is(err, frontier.ErrDepthLimitReached):
		svc.stats.incDepthLimited()
	case errors.Is(err, frontier.ErrNodeLimitReached):
		svc.stats.incNodeLimited()
	default:
		svc.logger.WithField("target", target.Key).WithError(err).Warn(
			"failed to enqueue discovered target",
		)
	}
}

// settleFailure decides what happens to a target whose fetch or
// interpretation failed: challenges pause the session, cancellations
// hand the target back, anything else retries with exponential backoff
// until the attempt cap marks it permanently failed.
func (svc *Controller) settleFailure(
	ctx context.Context,
	target *frontier.Target,
	logger *logrus.Entry,
	err error,
) {

	if errors.Is(err, scholar.ErrChallengeDetected) {
		_ = svc.config.Frontier.Release(target.Key)
		svc.stats.incChallenges()
		svc.awaitResume(ctx, target)

		return
	}

	if ctx.Err() != nil {
		// The fetch was aborted by cancellation, not refused by the
		// site: no attempt penalty.
		_ = svc.config.Frontier.Release(target.Key)

		return
	}

	attempts := target.Attempts + 1
	if attempts >= svc.config.MaxAttempts {
		_ = svc.config.Frontier.Complete(target.Key, frontier.StatusFailedPermanent)
		svc.stats.incFailedPermanent()

		logger.WithError(err).WithField("attempts", attempts).Warn(
			"abandoning target after repeated failures",
		)

		return
	}

	delay := svc.backoffDelay(target.Attempts)
	_ = svc.config.Frontier.Reschedule(target.Key, delay)

	logger.WithError(err).WithFields(logrus.Fields{
		"attempts": attempts,
		"delay":    delay.String(),
	}).Info("rescheduling target after transient failure")
}

// awaitResume pauses the session after a challenge until Resume is
// called or the context gets cancelled.
func (svc *Controller) awaitResume(ctx context.Context, target *frontier.Target) {
	event := ChallengeEvent{
		SessionName: svc.config.SessionName,
		TargetKey:   target.Key,
		URL:         target.URL,
		OccurredAt:  svc.config.Clock.Now(),
	}

	select {
	case svc.challengeCh <- event:
	default:
	}

	svc.setState(StatePausedChallenge)
	svc.logger.WithField("target", target.Key).Warn(
		"challenge detected, pausing until resumed",
	)

	select {
	case <-ctx.Done():
	case <-svc.resumeCh:
		svc.logger.Info("challenge cleared, resuming crawl")
	}

	svc.setState(StateRunning)
}

// waitForEligible sleeps until the frontier's next target becomes
// eligible or the context gets cancelled.
func (svc *Controller) waitForEligible(ctx context.Context) error {
	svc.setState(StatePausedBackoff)
	defer svc.setState(StateRunning)

	wait := inFlightPollInterval
	if wakeup, ok := svc.config.Frontier.NextWakeup(); ok {
		if d := wakeup.Sub(svc.config.Clock.Now()); d > 0 {
			wait = d
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-svc.config.Clock.After(wait):
		return nil
	}
}

// backoffDelay computes the retry delay for a target that has already
// failed the provided number of times.
func (svc *Controller) backoffDelay(attempts int) time.Duration {
	delay := svc.config.BackoffBase
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= svc.config.BackoffCap {
			return svc.config.BackoffCap
		}
	}

	return delay
}

// drain writes the final checkpoint and stops the session.
func (svc *Controller) drain() error {
	svc.setState(StateDraining)

	err := svc.saveCheckpoint()
	svc.setState(StateStopped)

	if err != nil {
		return fmt.Errorf("crawl controller: final checkpoint: %w", err)
	}

	return nil
}

// saveCheckpoint captures the shared crawl state and persists it.
func (svc *Controller) saveCheckpoint() error {
	state := &checkpoint.State{
		CrawlID:  svc.config.CrawlID,
		SavedAt:  svc.config.Clock.Now(),
		Frontier: svc.config.Frontier.Snapshot(),
		SeenKeys: svc.config.Dedup.Keys(),
	}

	authorIt, err := svc.config.GraphAPI.Authors()
	if err != nil {
		return err
	}
	for authorIt.Next() {
		state.Authors = append(state.Authors, *authorIt.Author())
	}
	if err := firstError(authorIt.Error(), authorIt.Close()); err != nil {
		return err
	}

	edgeIt, err := svc.config.GraphAPI.Edges()
	if err != nil {
		return err
	}
	for edgeIt.Next() {
		state.Edges = append(state.Edges, *edgeIt.Edge())
	}
	if err := firstError(edgeIt.Error(), edgeIt.Close()); err != nil {
		return err
	}

	if err := svc.config.Checkpoints.Save(state); err != nil {
		return err
	}

	svc.logger.WithFields(logrus.Fields{
		"frontier_targets": len(state.Frontier),
		"seen_keys":        len(state.SeenKeys),
		"authors":          len(state.Authors),
		"edges":            len(state.Edges),
	}).Info("saved checkpoint")

	return nil
}

func (svc *Controller) setState(next State) {
	svc.mu.Lock()
	prev := svc.state
	svc.state = next
	svc.mu.Unlock()

	if prev != next {
		svc.logger.WithFields(logrus.Fields{
			"from": prev.String(),
			"to":   next.String(),
		}).Debug("state transition")
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}
