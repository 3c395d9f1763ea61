package metrics

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()

	assert.NotNil(t, m.Registry)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.FeedPollsTotal)
	assert.NotNil(t, m.SettingsWritesTotal)
	assert.NotNil(t, m.GatewayUpstreamTotal)
	assert.NotNil(t, m.DBConnectionsOpen)
	assert.Nil(t, m.logger)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBoardMetrics(t *testing.T) {
	m := New()

	m.ObservePoll(OutcomeApplied, 120*time.Millisecond)
	m.ObservePoll(OutcomeApplied, 80*time.Millisecond)
	m.ObservePoll(OutcomeStale, time.Second)
	m.ObservePoll(OutcomeSkipped, 0)
	m.SetRoutesDisplayed(3)
	m.RotationAdvanced()
	m.SettingsWrite(nil)
	m.SettingsWrite(errors.New("disk full"))
	m.GatewayUpstream(200)
	m.GatewayUpstream(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedPollsTotal.WithLabelValues(OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedPollsTotal.WithLabelValues(OutcomeStale)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedPollsTotal.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, uint64(3), pollSampleCount(t, m), "skipped polls are not timed")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RoutesDisplayed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RotationAdvancesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettingsWritesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettingsWritesTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayUpstreamTotal.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayUpstreamTotal.WithLabelValues("error")))
}

func pollSampleCount(t *testing.T, m *Metrics) uint64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "stopboard_feed_poll_duration_seconds" {
			require.Len(t, family.GetMetric(), 1)
			return family.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("poll duration histogram not registered")
	return 0
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePoll(OutcomeApplied, time.Second)
		m.SetRoutesDisplayed(1)
		m.RotationAdvanced()
		m.SettingsWrite(nil)
		m.GatewayUpstream(502)
		m.StartDBStatsCollector(nil, time.Second)
		m.Shutdown()
	})
}

func TestStartDBStatsCollector_NilDB(t *testing.T) {
	m := New()
	m.StartDBStatsCollector(nil, time.Second)
	assert.False(t, m.collectorStarted.Load())
}

func TestStartDBStatsCollector_IdempotentAndCollects(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, db.Ping())

	m := New()
	m.StartDBStatsCollector(db, 20*time.Millisecond)
	m.StartDBStatsCollector(db, 20*time.Millisecond)
	assert.True(t, m.collectorStarted.Load())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.DBConnectionsOpen) >= 1
	}, time.Second, 10*time.Millisecond)

	m.Shutdown()
}

func TestShutdown(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	m := New()
	m.StartDBStatsCollector(db, 50*time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		m.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not complete within timeout")
	}
}
