// Package metrics exposes the daemon's Prometheus instruments and the
// optional listener that serves them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"monad/internal/logging"
)

// Registry holds the daemon's instruments. A nil *Registry is valid and
// records nothing.
type Registry struct {
	reg             *prometheus.Registry
	loopIterations  prometheus.Counter
	statusRequests  *prometheus.CounterVec
	shutdownSignals prometheus.Counter
	running         prometheus.Gauge
}

// New creates a registry with process and Go runtime collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		loopIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad",
			Name:      "loop_iterations_total",
			Help:      "Idle loop iterations completed.",
		}),
		statusRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monad",
			Name:      "status_requests_total",
			Help:      "Requests handled by the status service, by response code.",
		}, []string{"code"}),
		shutdownSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "monad",
			Name:      "shutdown_signals_total",
			Help:      "Stop requests accepted by the shutdown coordinator.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "monad",
			Name:      "running",
			Help:      "1 while a run mode is active.",
		}),
	}
	r.reg.MustRegister(
		r.loopIterations,
		r.statusRequests,
		r.shutdownSignals,
		r.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveIteration counts one idle loop iteration.
func (r *Registry) ObserveIteration() {
	if r == nil {
		return
	}
	r.loopIterations.Inc()
}

// ObserveRequest counts one status service response.
func (r *Registry) ObserveRequest(code int) {
	if r == nil {
		return
	}
	r.statusRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveShutdown counts an accepted stop request.
func (r *Registry) ObserveShutdown() {
	if r == nil {
		return
	}
	r.shutdownSignals.Inc()
}

// SetRunning flips the running gauge.
func (r *Registry) SetRunning(running bool) {
	if r == nil {
		return
	}
	if running {
		r.running.Set(1)
		return
	}
	r.running.Set(0)
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}

// Serve exposes /metrics on bind until ctx is done. An empty bind disables the
// listener and Serve returns nil immediately.
func Serve(ctx context.Context, bind string, r *Registry, logger *slog.Logger) error {
	if bind == "" {
		return nil
	}
	log := logging.NewComponentLogger(logger, "metrics")

	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", r.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	log.Info("metrics listening", logging.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	return nil
}
