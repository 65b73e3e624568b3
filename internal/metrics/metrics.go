package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Harness counters and histograms, partitioned by handle mode
// ("shared" or "per_worker").

var (
	HarnessIterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reprojcheck",
		Subsystem: "harness",
		Name:      "iterations_total",
		Help:      "Total worker iterations started",
	}, []string{"mode"})

	HarnessViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reprojcheck",
		Subsystem: "harness",
		Name:      "violations_total",
		Help:      "Total consistency violations detected",
	}, []string{"mode"})

	HarnessHandlesConstructed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reprojcheck",
		Subsystem: "harness",
		Name:      "handles_constructed_total",
		Help:      "Total transformation handles constructed",
	}, []string{"mode"})

	HarnessWorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reprojcheck",
		Subsystem: "harness",
		Name:      "workers_active",
		Help:      "Workers currently running",
	})

	HarnessRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reprojcheck",
		Subsystem: "harness",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a harness run",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"mode", "outcome"})
)

// Handler returns the HTTP handler exposing /metrics.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}()

	logger.Info("metrics server started", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
