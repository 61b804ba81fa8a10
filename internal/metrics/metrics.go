// Package metrics exposes Prometheus counters for transcription runs and an
// optional /metrics endpoint.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subline/internal/logging"
)

const namespace = "subline"

// Recorder holds the run metrics. It satisfies the observer interfaces of
// the transcription and translation stages.
type Recorder struct {
	registry *prometheus.Registry

	chunksProcessed     prometheus.Counter
	recognitionFailures *prometheus.CounterVec
	chunkSeconds        prometheus.Histogram
	translations        *prometheus.CounterVec
	runs                *prometheus.CounterVec
	activeRuns          prometheus.Gauge
}

// New registers the run metrics on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		chunksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      "Audio chunks recognized successfully.",
		}),
		recognitionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_failures_total",
			Help:      "Chunk recognition failures by kind.",
		}, []string{"kind"}),
		chunkSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_recognition_seconds",
			Help:      "Wall time spent recognizing one chunk.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		translations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_attempts_total",
			Help:      "Translation provider calls by provider and result.",
		}, []string{"provider", "result"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by status.",
		}, []string{"status"}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently in progress.",
		}),
	}
}

// Registry returns the registry backing r.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ChunkRecognized records one successful chunk.
func (r *Recorder) ChunkRecognized(elapsed time.Duration) {
	r.chunksProcessed.Inc()
	r.chunkSeconds.Observe(elapsed.Seconds())
}

// RecognitionFailed records a failed chunk.
func (r *Recorder) RecognitionFailed(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	r.recognitionFailures.WithLabelValues(kind).Inc()
}

// TranslationAttempt records one provider call.
func (r *Recorder) TranslationAttempt(provider string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.translations.WithLabelValues(provider, result).Inc()
}

// RunStarted marks a run active and returns the function that ends it with
// the run's final status.
func (r *Recorder) RunStarted() func(status string) {
	r.activeRuns.Inc()
	return func(status string) {
		r.activeRuns.Dec()
		r.runs.WithLabelValues(status).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics on a bind address.
type Server struct {
	srv      *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// Listen binds addr and prepares a /metrics server for r.
func Listen(addr string, r *Recorder, logger *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return &Server{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		logger:   logging.NewComponentLogger(logger, "metrics"),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve blocks until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.listener)
	}()
	s.logger.Info("metrics endpoint listening", logging.String("addr", "http://"+s.Addr()+"/metrics"))
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
