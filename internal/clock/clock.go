// Package clock provides time abstraction for testing and production use.
// The board engine reads the current time and drives its refresh and
// rotation tickers through a Clock, so tests can advance time
// deterministically instead of sleeping.
package clock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Clock provides an abstraction for time operations.
// Use RealClock in production and MockClock in tests.
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// NowUnixMilli returns the current time as Unix milliseconds
	NowUnixMilli() int64
	// NewTicker returns a Ticker delivering ticks every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker wraps a periodic timer. C has capacity 1; ticks are dropped when
// the consumer falls behind, matching time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns off the ticker. No tick is delivered on C after Stop returns.
func (t *Ticker) Stop() {
	if t != nil && t.stop != nil {
		t.stop()
	}
}

func newRealTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop}
}

// RealClock implements Clock using actual system time.
// This is the default implementation for production use.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// NowUnixMilli returns the current time as Unix milliseconds.
func (RealClock) NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// NewTicker returns a ticker backed by time.NewTicker.
func (RealClock) NewTicker(d time.Duration) *Ticker {
	return newRealTicker(d)
}

// MockClock implements Clock and provides a controllable, thread-safe time for tests.
// Tickers created from a MockClock only fire when Advance moves time past
// their next deadline. Use NewMockClock to create instances.
type MockClock struct {
	currentTime time.Time
	tickers     []*mockTicker
	mu          sync.Mutex
	changed     *sync.Cond
}

type mockTicker struct {
	ch       chan time.Time
	interval time.Duration
	deadline time.Time
	stopped  bool
}

// NewMockClock creates a new MockClock set to the specified time.
func NewMockClock(t time.Time) *MockClock {
	m := &MockClock{currentTime: t}
	m.changed = sync.NewCond(&m.mu)
	return m
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// NowUnixMilli returns the mock clock's current time as Unix milliseconds.
func (m *MockClock) NowUnixMilli() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime.UnixMilli()
}

// Set changes the mock clock's current time. Tickers are not fired by Set.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// NewTicker registers a ticker that fires when Advance crosses its deadline.
func (m *MockClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := &mockTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		deadline: m.currentTime.Add(d),
	}
	m.tickers = append(m.tickers, t)
	m.changed.Broadcast()

	return &Ticker{
		C: t.ch,
		stop: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			t.stopped = true
			m.changed.Broadcast()
		},
	}
}

// Advance moves the mock clock by the specified duration.
// Use positive durations to move forward, negative to move backward.
// Every live ticker whose deadline falls within the new time fires once per
// elapsed interval, in deadline order; ticks that overflow the channel
// buffer are dropped.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.currentTime = m.currentTime.Add(d)
	target := m.currentTime

	type firing struct {
		ticker *mockTicker
		at     time.Time
	}
	var firings []firing
	live := m.tickers[:0]
	for _, t := range m.tickers {
		if t.stopped {
			continue
		}
		for !t.deadline.After(target) {
			firings = append(firings, firing{ticker: t, at: t.deadline})
			t.deadline = t.deadline.Add(t.interval)
		}
		live = append(live, t)
	}
	m.tickers = live
	m.mu.Unlock()

	sort.SliceStable(firings, func(i, j int) bool {
		return firings[i].at.Before(firings[j].at)
	})
	for _, f := range firings {
		select {
		case f.ticker.ch <- f.at:
		default:
		}
	}
}

// ActiveTickers returns the number of tickers that have not been stopped.
func (m *MockClock) ActiveTickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeTickersLocked()
}

func (m *MockClock) activeTickersLocked() int {
	n := 0
	for _, t := range m.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// WaitForTickers blocks until exactly n tickers are live. It closes the race
// between a goroutine creating its tickers and a test advancing the clock.
func (m *MockClock) WaitForTickers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.activeTickersLocked() != n {
		m.changed.Wait()
	}
}

// EnvironmentClock implements Clock using a time from an environment variable or file.
// Priority: environment variable > file > system time (fallback).
// The time is synced on each call to Now() or NowUnixMilli(). It is used to
// freeze the board at a fixed wall time for demos; tickers still run on
// real time.
type EnvironmentClock struct {
	envVar   string
	filePath string
	location *time.Location
}

// NewEnvironmentClock creates a new EnvironmentClock with the given options.
// If no sources are configured, it will fall back to system time.
func NewEnvironmentClock(envVar string, filePath string, location *time.Location) *EnvironmentClock {
	return &EnvironmentClock{
		envVar:   envVar,
		filePath: filePath,
		location: location,
	}
}

// Now returns the current time by checking sources in priority order:
// 1. Environment variable
// 2. File
// 3. System time (fallback)
func (e *EnvironmentClock) Now() time.Time {
	if t, err := e.syncFromEnvVar(); err == nil {
		return t
	}
	if t, err := e.syncFromFile(); err == nil {
		return t
	}
	slog.Warn("EnvironmentClock: failed to sync from env var, falling back to system time",
		slog.String("envVar", e.envVar), slog.String("filePath", e.filePath))
	return time.Now()
}

// NowUnixMilli returns the current time as Unix milliseconds.
func (e *EnvironmentClock) NowUnixMilli() int64 {
	return e.Now().UnixMilli()
}

// NewTicker returns a real-time ticker.
func (e *EnvironmentClock) NewTicker(d time.Duration) *Ticker {
	return newRealTicker(d)
}

func (e *EnvironmentClock) syncFromEnvVar() (time.Time, error) {
	if e.envVar == "" {
		return time.Time{}, errors.New("environment variable name not configured")
	}
	timeStr := os.Getenv(e.envVar)
	if timeStr == "" {
		return time.Time{}, errors.New("environment variable is empty: " + e.envVar)
	}
	return e.parseTime(timeStr)
}

func (e *EnvironmentClock) syncFromFile() (time.Time, error) {
	if e.filePath == "" {
		return time.Time{}, errors.New("file path not configured")
	}
	data, err := os.ReadFile(e.filePath)
	if err != nil {
		return time.Time{}, err
	}
	return e.parseTime(string(data))
}

// parseTime attempts to parse a time string using multiple common formats.
func (e *EnvironmentClock) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	// requires timezone
	if e.location == nil {
		return time.Time{}, errors.New("timezone not configured")
	}

	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, e.location); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time %q: expected RFC3339 (2006-01-02T15:04:05Z07:00), or YYYY-MM-DD HH:MM:SS, YYYY-MM-DDTHH:MM:SS, or YYYY-MM-DD", s)
}
