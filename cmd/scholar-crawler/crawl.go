package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/jamespreed/scholar-crawler/authorindex/store/memory"
	"github.com/jamespreed/scholar-crawler/checkpoint"
	"github.com/jamespreed/scholar-crawler/checkpoint/store/badgerstore"
	"github.com/jamespreed/scholar-crawler/crawler"
	"github.com/jamespreed/scholar-crawler/dedup"
	"github.com/jamespreed/scholar-crawler/frontier"
	"github.com/jamespreed/scholar-crawler/scholar"
	"github.com/jamespreed/scholar-crawler/service"
)

const fetchTimeout = 30 * time.Second

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [query]...",
		Short: "Crawl the co-authorship graph from seed searches or profiles",
		Long: `Crawl walks the Google Scholar co-authorship graph breadth-first from
the provided seed author searches and --profile identifiers. Progress is
checkpointed periodically; re-run with --resume to continue an
interrupted crawl.`,
		RunE: runCrawl,
	}

	cmd.Flags().StringSlice("profile", nil, "Seed profile identifiers (scholar user ids)")
	cmd.Flags().Int("max-depth", 2, "Maximum hop distance from the seeds. Negative disables the limit")
	cmd.Flags().Int("max-nodes", 0, "Maximum number of profiles to crawl. Zero disables the limit")
	cmd.Flags().Int("max-attempts", 4, "Fetch attempts before a target is marked permanently failed")
	cmd.Flags().Int("max-search-pages", 3, "Maximum result pages followed per author search")
	cmd.Flags().Duration("request-interval", 3*time.Second, "Minimum time between requests")
	cmd.Flags().Duration("checkpoint-interval", time.Minute, "Time between periodic checkpoint saves")
	cmd.Flags().Duration("challenge-cooldown", 10*time.Minute, "Time to wait before resuming after a bot challenge")
	cmd.Flags().String("graph-uri", "in-memory://", "URI for connecting to an author graph store."+
		" [supported URI's: in-memory://, postgresql://user@host:26257/authorgraph?sslmode=disable]")
	cmd.Flags().String("checkpoint-dir", "checkpoints", "Directory for the badger checkpoint store")
	cmd.Flags().Bool("resume", false, "Resume from the latest checkpoint in --checkpoint-dir")
	cmd.Flags().Int("sessions", 1, "Number of concurrent crawl sessions sharing the frontier")

	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	logger := newLogger(cmd)

	profiles := viper.GetStringSlice("profile")
	resume := viper.GetBool("resume")
	if len(args) == 0 && len(profiles) == 0 && !resume {
		return fmt.Errorf("at least one seed query, --profile or --resume must be provided")
	}

	authorGraph, err := getAuthorGraph(viper.GetString("graph-uri"), logger)
	if err != nil {
		return err
	}

	checkpoints, err := badgerstore.NewBadgerStore(viper.GetString("checkpoint-dir"))
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	defer func() { _ = checkpoints.Close() }()

	front := frontier.New(frontier.Config{
		MaxDepth: viper.GetInt("max-depth"),
		MaxNodes: viper.GetInt("max-nodes"),
	})
	seen := dedup.NewStore()

	crawlID := uuid.New()
	if resume {
		state, err := checkpoints.Load()
		switch {
		case errors.Is(err, checkpoint.ErrNoCheckpoint):
			logger.Info("no checkpoint found, starting a fresh crawl")
		case err != nil:
			return fmt.Errorf("failed to load checkpoint: %w", err)
		default:
			if err := crawler.Restore(state, authorGraph, front, seen); err != nil {
				return fmt.Errorf("failed to restore checkpoint: %w", err)
			}

			crawlID = state.CrawlID
			logger.WithFields(logrus.Fields{
				"crawl_id": crawlID.String(),
				"saved_at": state.SavedAt,
				"pending":  front.NumPending(),
			}).Info("resuming from checkpoint")
		}
	}

	authorIndex, err := memory.NewInMemoryIndex()
	if err != nil {
		return fmt.Errorf("failed to open author index: %w", err)
	}

	limiter := rate.NewLimiter(rate.Every(viper.GetDuration("request-interval")), 1)
	fetcher := scholar.NewHTTPFetcher(fetchTimeout)

	var svcGroup service.Group
	var controllers []*crawler.Controller
	for i := 0; i < viper.GetInt("sessions"); i++ {
		sessionName := fmt.Sprintf("session-%d", i+1)
		ctrl, err := crawler.New(crawler.Config{
			GraphAPI:           authorGraph,
			IndexAPI:           authorIndex,
			Fetcher:            fetcher,
			Dedup:              seen,
			Frontier:           front,
			Checkpoints:        checkpoints,
			CrawlID:            crawlID,
			SessionName:        sessionName,
			MaxAttempts:        viper.GetInt("max-attempts"),
			MaxSearchPages:     viper.GetInt("max-search-pages"),
			RateLimiter:        limiter,
			CheckpointInterval: viper.GetDuration("checkpoint-interval"),
			Logger:             logger.WithField("service", sessionName),
		})
		if err != nil {
			return err
		}

		controllers = append(controllers, ctrl)
		svcGroup = append(svcGroup, ctrl)
	}

	for _, query := range args {
		if err := controllers[0].SeedSearch(query); err != nil {
			return fmt.Errorf("failed to seed search %q: %w", query, err)
		}
	}
	for _, siteID := range profiles {
		if err := controllers[0].SeedProfile(siteID); err != nil {
			return fmt.Errorf("failed to seed profile %q: %w", siteID, err)
		}
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	// Launch a separate process to listen and respond to os signals
	// and trigger a graceful shutdown.
	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, syscall.SIGINT, syscall.SIGHUP)

		select {
		case s := <-signalChan:
			logger.WithField("signal", s.String()).Info("shutting down due to os signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	cooldown := viper.GetDuration("challenge-cooldown")
	for _, ctrl := range controllers {
		go watchChallenges(ctx, ctrl, cooldown, logger)
	}

	if err := svcGroup.Execute(ctx); err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")

		return err
	}

	logCrawlStats(logger, controllers)
	logger.Info("shutdown complete")

	return nil
}

// watchChallenges resumes a challenge-paused session after the cooldown
// period elapses, giving the operator a window to clear the challenge
// manually.
func watchChallenges(ctx context.Context, ctrl *crawler.Controller, cooldown time.Duration, logger *logrus.Entry) {
	for {
		select {
		case event := <-ctrl.Challenges():
			logger.WithFields(logrus.Fields{
				"service": event.SessionName,
				"url":     event.URL,
			}).Warnf("bot challenge detected, resuming in %s", cooldown)

			select {
			case <-time.After(cooldown):
				ctrl.Resume()
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func logCrawlStats(logger *logrus.Entry, controllers []*crawler.Controller) {
	for _, ctrl := range controllers {
		stats := ctrl.Stats()
		logger.WithFields(logrus.Fields{
			"service":          ctrl.Name(),
			"fetched_pages":    stats.FetchedPages,
			"failed_permanent": stats.FailedPermanent,
			"depth_limited":    stats.DepthLimited,
			"node_limited":     stats.NodeLimited,
			"challenges":       stats.Challenges,
		}).Info("session finished")
	}
}
