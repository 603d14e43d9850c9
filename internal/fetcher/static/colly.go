// Package static fetches feed pages without executing JavaScript. It
// covers page variants that inline the data blob directly, and it is the
// cheap path for development.
package static

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/feedwatch/feedwatch/internal/feed"
)

// Config controls the static fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements feed.Fetcher over plain HTTP via colly. The returned
// content never carries a pre-materialized global; the blob, if present,
// sits in one of the raw script bodies.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a static fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// Fetch downloads the page and returns its inline script bodies in
// document order.
func (f *Fetcher) Fetch(ctx context.Context, source feed.Source) (feed.PageContent, error) {
	opts := []colly.CollectorOption{colly.Async(false)}
	if f.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(f.cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(f.cfg.Timeout)

	var scripts []string
	c.OnHTML("script", func(e *colly.HTMLElement) {
		if e.Text != "" {
			scripts = append(scripts, e.Text)
		}
	})

	var fetchErr error
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := f.visit(ctx, c, string(source)); err != nil {
		return feed.PageContent{}, err
	}
	if fetchErr != nil {
		return feed.PageContent{}, fmt.Errorf("fetch %s: %w", source, fetchErr)
	}

	f.logger.Debug("Page fetched",
		zap.String("source", string(source)),
		zap.Int("scripts", len(scripts)))
	return feed.PageContent{Scripts: scripts}, nil
}

func (f *Fetcher) visit(ctx context.Context, c *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- c.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}
