// Package metrics provides Prometheus metrics for the stopboard service.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Poll outcomes recorded on FeedPollsTotal.
const (
	OutcomeApplied   = "applied"
	OutcomeTransient = "transient_network_failure"
	OutcomeMalformed = "malformed_feed_payload"
	OutcomeEmpty     = "empty_poll"
	OutcomeStale     = "stale"
	OutcomeSkipped   = "skipped"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Board engine metrics
	FeedPollsTotal        *prometheus.CounterVec
	FeedPollDuration      prometheus.Histogram
	RoutesDisplayed       prometheus.Gauge
	RotationAdvancesTotal prometheus.Counter
	SettingsWritesTotal   *prometheus.CounterVec

	// Gateway metrics
	GatewayUpstreamTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stopboard_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stopboard_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		FeedPollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stopboard_feed_polls_total",
			Help: "Stop monitoring polls by outcome",
		}, []string{"outcome"}),
		FeedPollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stopboard_feed_poll_duration_seconds",
			Help:    "Time from issuing a poll to its completion",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		RoutesDisplayed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stopboard_routes_displayed",
			Help: "Number of routes in the current rotation",
		}),
		RotationAdvancesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stopboard_rotation_advances_total",
			Help: "Rotation ticks that moved to another route",
		}),
		SettingsWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stopboard_settings_writes_total",
			Help: "Board settings persistence attempts by result",
		}, []string{"result"}),
		GatewayUpstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stopboard_gateway_upstream_total",
			Help: "Upstream stop monitoring requests made by the gateway, by status",
		}, []string{"status"}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stopboard_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stopboard_db_connections_in_use",
			Help: "Number of database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stopboard_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stopboard_db_wait_seconds_total",
			Help: "Total time blocked waiting for a database connection",
		}),
		logger: logger,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FeedPollsTotal,
		m.FeedPollDuration,
		m.RoutesDisplayed,
		m.RotationAdvancesTotal,
		m.SettingsWritesTotal,
		m.GatewayUpstreamTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObservePoll records the outcome of one poll cycle.
func (m *Metrics) ObservePoll(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FeedPollsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		m.FeedPollDuration.Observe(elapsed.Seconds())
	}
}

// SetRoutesDisplayed records the size of the rotation.
func (m *Metrics) SetRoutesDisplayed(n int) {
	if m == nil {
		return
	}
	m.RoutesDisplayed.Set(float64(n))
}

func (m *Metrics) RotationAdvanced() {
	if m == nil {
		return
	}
	m.RotationAdvancesTotal.Inc()
}

// SettingsWrite records a settings persistence attempt.
func (m *Metrics) SettingsWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SettingsWritesTotal.WithLabelValues(result).Inc()
}

// GatewayUpstream records one upstream response status, or "error" when
// status is zero.
func (m *Metrics) GatewayUpstream(status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.GatewayUpstreamTotal.WithLabelValues(label).Inc()
}

// StartDBStatsCollector starts a goroutine that periodically collects database
// connection pool statistics. It is idempotent; call Shutdown to stop it.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}

	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var lastWaitDuration time.Duration

	// Add to WaitGroup BEFORE exposing cancel to avoid race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil && m.logger != nil {
				m.logger.Error("panic in DB stats collector", "error", r)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))

				if waitDelta := stats.WaitDuration - lastWaitDuration; waitDelta > 0 {
					m.DBWaitSecondsTotal.Add(waitDelta.Seconds())
				}
				lastWaitDuration = stats.WaitDuration

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector goroutine and waits for it to exit.
// This method is safe to call multiple times.
func (m *Metrics) Shutdown() {
	if m == nil {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
