// Package metrics exposes Prometheus collectors for the watcher.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal       *prometheus.CounterVec
	postsTotal         *prometheus.CounterVec
	blobMissesTotal    *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedwatch_fetches_total",
				Help: "Total page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)
		postsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedwatch_posts_discovered_total",
				Help: "Total posts discovered in data blobs, labeled by site.",
			},
			[]string{"site"},
		)
		blobMissesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedwatch_blob_misses_total",
				Help: "Pages where no data blob could be extracted, labeled by site.",
			},
			[]string{"site"},
		)
		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedwatch_notifications_total",
				Help: "Notification decisions, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)
	})
}

// SanitizeSite reduces a source URL to a lowercase hostname for labels.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one fetch attempt outcome.
func ObserveFetch(site, status string) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObservePosts records how many posts a page yielded.
func ObservePosts(site string, count int) {
	if postsTotal == nil || count <= 0 {
		return
	}
	postsTotal.WithLabelValues(SanitizeSite(site)).Add(float64(count))
}

// ObserveBlobMiss records a page without an extractable data blob.
func ObserveBlobMiss(site string) {
	if blobMissesTotal == nil {
		return
	}
	blobMissesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveNotification records a notification decision outcome.
func ObserveNotification(kind, outcome string) {
	if notificationsTotal == nil {
		return
	}
	notificationsTotal.WithLabelValues(kind, outcome).Inc()
}

// Serve exposes /metrics and /healthz on addr until ctx is canceled.
// Meant for debugging a run; callers skip it when addr is empty.
func Serve(ctx context.Context, addr string) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
