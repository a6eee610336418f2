// Package metrics exposes hub counters in Prometheus format.
//
// Engine packages record through small interfaces they declare
// themselves; *Metrics satisfies all of them. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "grayhub_"

	// Result label values shared by the counters below.
	ResultSuccess = "success"
	ResultError   = "error"

	// Heartbeat outcomes.
	HeartbeatOK              = "ok"
	HeartbeatReconnected     = "reconnected"
	HeartbeatReconnectFailed = "reconnect_failed"

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Metrics owns a private registry and the hub's collectors.
type Metrics struct {
	registry *prometheus.Registry

	schedulerPasses   prometheus.Counter
	schedulerDuration prometheus.Histogram
	scheduleFirings   *prometheus.CounterVec
	actionExecutions  *prometheus.CounterVec
	heartbeats        *prometheus.CounterVec
	monitorSamples    *prometheus.CounterVec
}

// New creates and registers the hub collectors plus Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		schedulerPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "scheduler_passes_total",
			Help: "Total scheduler passes started",
		}),
		schedulerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "scheduler_pass_duration_seconds",
			Help:    "Scheduler pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		scheduleFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "schedule_firings_total",
			Help: "Total schedules fired by result",
		}, []string{"result"}),
		actionExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "action_executions_total",
			Help: "Total action executions by type and result",
		}, []string{"type", "result"}),
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "device_heartbeats_total",
			Help: "Device heartbeats by device and outcome",
		}, []string{"device", "outcome"}),
		monitorSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "monitor_samples_total",
			Help: "Monitor polls by element kind and result",
		}, []string{"kind", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.schedulerPasses,
		m.schedulerDuration,
		m.scheduleFirings,
		m.actionExecutions,
		m.heartbeats,
		m.monitorSamples,
	)
	return m
}

// Result maps an error to ResultSuccess or ResultError.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// SchedulerPass records one completed scheduler pass.
func (m *Metrics) SchedulerPass(d time.Duration) {
	if m == nil {
		return
	}
	m.schedulerPasses.Inc()
	m.schedulerDuration.Observe(d.Seconds())
}

// ScheduleFired records a schedule firing outcome.
func (m *Metrics) ScheduleFired(result string) {
	if m == nil {
		return
	}
	m.scheduleFirings.WithLabelValues(result).Inc()
}

// ActionExecuted records one action execution.
func (m *Metrics) ActionExecuted(actionType, result string) {
	if m == nil {
		return
	}
	m.actionExecutions.WithLabelValues(actionType, result).Inc()
}

// Heartbeat records a device heartbeat outcome.
func (m *Metrics) Heartbeat(device, outcome string) {
	if m == nil {
		return
	}
	m.heartbeats.WithLabelValues(device, outcome).Inc()
}

// MonitorSample records one monitor poll.
func (m *Metrics) MonitorSample(kind, result string) {
	if m == nil {
		return
	}
	m.monitorSamples.WithLabelValues(kind, result).Inc()
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HealthFunc reports whether the hub's infrastructure is usable.
type HealthFunc func(ctx context.Context) error

// Router returns the ops router: GET /metrics, and GET /healthz when
// health is non-nil. /healthz answers 200 "ok" or 503 with the error text.
func (m *Metrics) Router(health HealthFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", m.Handler())
	if health != nil {
		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			if err := health(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintln(w, err.Error())
				return
			}
			fmt.Fprintln(w, "ok")
		})
	}
	return r
}

// Serve exposes Router(health) on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, health HealthFunc) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Router(health),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}
