package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelDebug)

	LogOperation(logger, "feed_poll_started", slog.String("stop_id", "300432"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "feed_poll_started", entries[0]["msg"])
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "300432", entries[0]["stop_id"])
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelDebug)

	LogError(logger, "feed poll failed", errors.New("boom"), slog.Int("attempt", 2))
	LogError(logger, "no underlying error", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Equal(t, float64(2), entries[0]["attempt"])
	_, hasErr := entries[1]["error"]
	assert.False(t, hasErr)
}

func TestLogHTTPRequestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelDebug)

	LogHTTPRequest(logger, "GET", "/api/board/view.json", 200, 1.5)
	LogHTTPRequest(logger, "GET", "/api/stop-monitoring", 502, 20)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, float64(502), entries[1]["status"])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

type failingCloser struct{ closed bool }

func (f *failingCloser) Close() error {
	f.closed = true
	return errors.New("close failed")
}

func TestSafeCloseWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(&buf, slog.LevelInfo)

	closer := &failingCloser{}
	SafeCloseWithLogging(closer, logger, "http_response_body")
	SafeCloseWithLogging(nil, logger, "nothing")

	assert.True(t, closer.closed)
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "http_response_body", entries[0]["resource"])
}
