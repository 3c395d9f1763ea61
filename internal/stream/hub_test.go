package stream

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stopboard.app/internal/clock"
	"stopboard.app/internal/rotation"
)

func view(label string, minutes ...int) rotation.ViewModel {
	v := rotation.ViewModel{RouteLabel: label}
	for _, m := range minutes {
		v.ArrivalMinutes = append(v.ArrivalMinutes, rotation.Arrival{Minutes: m})
	}
	return v
}

// readEvent returns the next non-blank line of the stream.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimRight(line, "\n"); line != "" {
			return line
		}
	}
}

func TestHubStreamsViews(t *testing.T) {
	mc := clock.NewMockClock(time.Date(2025, 3, 4, 12, 15, 0, 0, time.UTC))
	hub := NewHub(mc, nil)
	hub.Render(view("B6", 3, 55))

	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	events := bufio.NewReader(resp.Body)
	assert.Equal(t, `data: {"routeLabel":"B6","arrivalMinutes":[3,55]}`, readEvent(t, events), "latest view is sent on connect")

	mc.WaitForTickers(1)
	assert.Equal(t, 1, hub.Clients())

	hub.Render(view("B82", 0))
	assert.Equal(t, `data: {"routeLabel":"B82","arrivalMinutes":["due"]}`, readEvent(t, events))

	mc.Advance(KeepAliveInterval)
	assert.Equal(t, ": keepalive", readEvent(t, events))

	cancel()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubSkipsInitialEventBeforeFirstRender(t *testing.T) {
	hub := NewHub(clock.NewMockClock(time.Now()), nil)
	c, initial := hub.register()
	defer hub.unregister(c)
	assert.Nil(t, initial)
}

func TestHubDropsViewsForSlowClients(t *testing.T) {
	hub := NewHub(clock.NewMockClock(time.Now()), nil)
	c, _ := hub.register()
	defer hub.unregister(c)

	for i := 0; i < clientBuffer+3; i++ {
		hub.Render(view("B6", i))
	}

	assert.Len(t, c.send, clientBuffer)
	assert.Equal(t, uint64(3), hub.Dropped())
	assert.JSONEq(t, `{"routeLabel":"B6","arrivalMinutes":[12]}`, string(hub.latest))
}

func TestHubCloseEndsStreams(t *testing.T) {
	mc := clock.NewMockClock(time.Date(2025, 3, 4, 12, 15, 0, 0, time.UTC))
	hub := NewHub(mc, nil)
	hub.Render(view("B6", 3))

	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	events := bufio.NewReader(resp.Body)
	assert.Equal(t, `data: {"routeLabel":"B6","arrivalMinutes":[3]}`, readEvent(t, events))
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Close()
	hub.Close()

	_, err = io.ReadAll(events)
	assert.NoError(t, err, "stream ends cleanly")
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}
