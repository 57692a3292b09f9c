package crawler

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jamespreed/scholar-crawler/checkpoint"
	"github.com/jamespreed/scholar-crawler/dedup"
	"github.com/jamespreed/scholar-crawler/frontier"
)

// Config defines configurations for a crawl controller.
type Config struct {
	// API for interacting with the author graph store.
	GraphAPI GraphAPI

	// API for communicating with the author index store. Optional: when
	// not provided, profiles are not indexed.
	IndexAPI IndexAPI

	// An API for retrieving scholar pages.
	Fetcher Fetcher

	// Dedup tracks the canonical keys the crawl has already scheduled.
	// Shared between sessions working the same frontier.
	Dedup *dedup.Store

	// Frontier holds the targets awaiting a fetch. Shared between
	// sessions.
	Frontier *frontier.Frontier

	// Checkpoints persists crawl state for later resumption.
	Checkpoints checkpoint.Store

	// CrawlID identifies the crawl across checkpoints. If not specified,
	// a random ID is assigned.
	CrawlID uuid.UUID

	// SessionName names the controller for logs and service groups. If
	// not specified, "crawler" is used.
	SessionName string

	// MaxAttempts is the number of fetch attempts before a target is
	// marked permanently failed. If not specified, 4 is used.
	MaxAttempts int

	// BackoffBase is the delay before the first retry of a transiently
	// failed target. Each further retry doubles it up to BackoffCap.
	// If not specified, 30 seconds and 8 minutes are used.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// MaxSearchPages caps how many pages of a single author search are
	// followed. If not specified, 3 is used.
	MaxSearchPages int

	// RateLimiter paces requests to stay under the radar. If not
	// specified, one request every 3 seconds is allowed.
	RateLimiter *rate.Limiter

	// CheckpointInterval is the duration between periodic checkpoint
	// saves. If not specified, 1 minute is used.
	CheckpointInterval time.Duration

	// A clock instance for generating time-related events. If not
	// specified, the default wall-clock will be used instead.
	Clock clock.Clock

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.GraphAPI == nil {
		err = multierror.Append(err, fmt.Errorf("graph API not provided"))
	}

	if config.Fetcher == nil {
		err = multierror.Append(err, fmt.Errorf("fetcher not provided"))
	}

	if config.Dedup == nil {
		err = multierror.Append(err, fmt.Errorf("dedup store not provided"))
	}

	if config.Frontier == nil {
		err = multierror.Append(err, fmt.Errorf("frontier not provided"))
	}

	if config.Checkpoints == nil {
		err = multierror.Append(err, fmt.Errorf("checkpoint store not provided"))
	}

	if config.CrawlID == uuid.Nil {
		config.CrawlID = uuid.New()
	}

	if config.SessionName == "" {
		config.SessionName = "crawler"
	}

	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 4
	}

	if config.BackoffBase <= 0 {
		config.BackoffBase = 30 * time.Second
	}

	if config.BackoffCap <= 0 {
		config.BackoffCap = 8 * time.Minute
	}

	if config.MaxSearchPages <= 0 {
		config.MaxSearchPages = 3
	}

	if config.RateLimiter == nil {
		config.RateLimiter = rate.NewLimiter(rate.Every(3*time.Second), 1)
	}

	if config.CheckpointInterval <= 0 {
		config.CheckpointInterval = time.Minute
	}

	if config.Clock == nil {
		config.Clock = clock.WallClock
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}
