// Package headless fetches feed pages with a real browser so that inline
// scripts execute and the page's data globals materialize.
package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feedwatch/feedwatch/internal/feed"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	MaxParallel       int
	DomainQPS         float64
	// Marker is the name of the page global holding the pre-parsed data
	// blob, evaluated after render.
	Marker string
}

// Fetcher implements feed.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg            Config
	logger         *zap.Logger
	allocator      context.Context
	allocCancel    context.CancelFunc
	sem            chan struct{}
	domainLimiters sync.Map
}

// New creates a headless fetcher backed by chromedp.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var sem chan struct{}
	if cfg.MaxParallel > 0 {
		sem = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		sem:         sem,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch renders the page and returns the materialized data global (if the
// page exposes one) plus every inline script body in document order.
func (f *Fetcher) Fetch(ctx context.Context, source feed.Source) (feed.PageContent, error) {
	if err := f.acquire(ctx); err != nil {
		return feed.PageContent{}, err
	}
	defer f.release()

	if err := f.waitDomainBudget(ctx, string(source)); err != nil {
		return feed.PageContent{}, fmt.Errorf("fetch rate limit: %w", err)
	}

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	var (
		html string
		raw  json.RawMessage
	)
	actions := []chromedp.Action{
		chromedp.Navigate(string(source)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Evaluate(globalProbe(f.cfg.Marker), &raw),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return feed.PageContent{}, fmt.Errorf("chromedp run: %w", err)
	}

	content := feed.PageContent{Scripts: scriptBodies(html)}
	if global := decodeGlobal(raw); global != nil {
		content.Global = global
	}
	f.logger.Debug("Page rendered",
		zap.String("source", string(source)),
		zap.Int("scripts", len(content.Scripts)),
		zap.Bool("global_present", content.Global != nil))
	return content, nil
}

// globalProbe builds an expression that reads the named window global and
// degrades to null when it is absent or not serializable.
func globalProbe(marker string) string {
	if marker == "" {
		return "null"
	}
	return fmt.Sprintf(
		`(() => { try { const v = window[%q]; return v === undefined ? null : v; } catch (e) { return null; } })()`,
		marker,
	)
}

func decodeGlobal(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// scriptBodies collects inline script text from the rendered DOM in
// document order.
func scriptBodies(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var scripts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if text := s.Text(); text != "" {
			scripts = append(scripts, text)
		}
	})
	return scripts
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.sem == nil {
		return nil
	}
	select {
	case f.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.sem == nil {
		return
	}
	select {
	case <-f.sem:
	default:
	}
}

func (f *Fetcher) waitDomainBudget(ctx context.Context, rawURL string) error {
	if f.cfg.DomainQPS <= 0 {
		return nil
	}
	host := hostOf(rawURL)
	value, _ := f.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(f.cfg.DomainQPS), 1))
	limiter, ok := value.(*rate.Limiter)
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

func hostOf(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.ToLower(trimmed)
}
