package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_fetches_total",
			Help: "Total number of article page fetches by outcome",
		},
		[]string{"domain", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digest_fetch_duration_seconds",
			Help:    "Duration of article page fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_fetch_bytes_total",
			Help: "Total bytes downloaded across all article fetches",
		},
		[]string{"domain"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_search_requests_total",
			Help: "Total number of news search requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	SearchResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digest_search_results",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 3, 5, 10, 20},
		},
		[]string{"provider"},
	)

	SummarizeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_summarize_requests_total",
			Help: "Total number of summarization calls by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	SummarizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digest_summarize_duration_seconds",
			Help:    "Duration of summarization calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 60},
		},
		[]string{"backend"},
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_pipeline_runs_total",
			Help: "Total number of digest pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_pipeline_duration_seconds",
			Help:    "End to end duration of digest pipeline runs",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 90},
		},
	)
)

// RecordFetch updates the fetch metrics for one page. outcome is "ok" or a
// failure reason.
func RecordFetch(domain, outcome string, d time.Duration, bytes int) {
	FetchesTotal.WithLabelValues(domain, outcome).Inc()
	FetchDuration.WithLabelValues(domain).Observe(d.Seconds())
	if bytes > 0 {
		FetchBytesTotal.WithLabelValues(domain).Add(float64(bytes))
	}
}

// RecordSearch updates the search metrics for one provider call.
func RecordSearch(provider, outcome string, results int) {
	SearchRequestsTotal.WithLabelValues(provider, outcome).Inc()
	if outcome == "ok" {
		SearchResults.WithLabelValues(provider).Observe(float64(results))
	}
}

// RecordSummarize updates the summarizer metrics for one call.
func RecordSummarize(backend, outcome string, d time.Duration) {
	SummarizeRequestsTotal.WithLabelValues(backend, outcome).Inc()
	SummarizeDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordPipeline updates the pipeline metrics for one run.
func RecordPipeline(outcome string, d time.Duration) {
	PipelineRunsTotal.WithLabelValues(outcome).Inc()
	PipelineDuration.Observe(d.Seconds())
}

// Handler exposes the default registry, for mounting on an existing mux.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on addr and exposes /metrics.
func Start(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
