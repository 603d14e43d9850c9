// Package watch implements the single-pass watch pipeline.
package watch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedwatch/feedwatch/internal/extract"
	"github.com/feedwatch/feedwatch/internal/feed"
	"github.com/feedwatch/feedwatch/internal/match"
	"github.com/feedwatch/feedwatch/internal/metrics"
	"github.com/feedwatch/feedwatch/internal/notify"
)

// Config controls one run of the pipeline.
type Config struct {
	Sources   []feed.Source
	Keyword   string
	Marker    string
	PostLimit int
}

// Runner executes one complete pass over the configured sources. Sources
// are processed sequentially in configured order; a failure on one source
// never blocks the rest, and only the final state write can fail the run.
type Runner struct {
	cfg     Config
	fetcher feed.Fetcher
	machine *notify.Machine
	store   feed.StateStore
	logger  *zap.Logger
}

// NewRunner wires the pipeline together.
func NewRunner(cfg Config, fetcher feed.Fetcher, machine *notify.Machine, store feed.StateStore, logger *zap.Logger) *Runner {
	if cfg.PostLimit <= 0 {
		cfg.PostLimit = 25
	}
	return &Runner{
		cfg:     cfg,
		fetcher: fetcher,
		machine: machine,
		store:   store,
		logger:  logger,
	}
}

// Run processes every source, finalizes the aggregate decision, and
// persists the updated state. The returned error is fatal: it only occurs
// when the state cannot be written back.
func (r *Runner) Run(ctx context.Context, st *feed.State) error {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))
	logger.Info("Run starting",
		zap.Int("sources", len(r.cfg.Sources)),
		zap.String("keyword", r.cfg.Keyword))

	for _, source := range r.cfg.Sources {
		r.processSource(ctx, source, logger)
	}

	r.machine.Finalize(ctx)

	if err := r.store.Save(ctx, st); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	logger.Info("Run finished")
	return nil
}

// processSource runs fetch → extract → match → update for one source.
// Every failure here is converted into "no posts this cycle" and logged.
func (r *Runner) processSource(ctx context.Context, source feed.Source, logger *zap.Logger) {
	log := logger.With(zap.String("source", string(source)))

	page, err := r.fetcher.Fetch(ctx, source)
	if err != nil {
		log.Warn("Fetch failed, skipping source this cycle", zap.Error(err))
		metrics.ObserveFetch(string(source), "error")
		return
	}
	metrics.ObserveFetch(string(source), "ok")

	blob, err := extract.FindBlob(page, r.cfg.Marker)
	if err != nil {
		if errors.Is(err, extract.ErrBlobNotFound) {
			log.Info("No data blob found, skipping source this cycle")
		} else {
			log.Warn("Blob extraction failed, skipping source this cycle", zap.Error(err))
		}
		metrics.ObserveBlobMiss(string(source))
		return
	}

	posts := extract.FindPosts(blob, r.cfg.PostLimit)
	metrics.ObservePosts(string(source), len(posts))
	if len(posts) == 0 {
		log.Info("Blob contained no posts")
		return
	}

	newest := posts[0]
	if newest.ID == "" {
		newest.ID = extract.DeriveID(newest.Text, newest.Published)
	}
	log.Info("Newest post selected",
		zap.String("post_id", newest.ID),
		zap.String("published", newest.Published),
		zap.Int("posts_found", len(posts)))

	r.machine.Update(ctx, feed.Verdict{
		Source:  source,
		Post:    newest,
		Matched: match.Matches(newest, r.cfg.Keyword),
	})
}
