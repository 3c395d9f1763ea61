package restapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentTimeHandler(t *testing.T) {
	api, env := createTestApiWithEnv(t)
	env.clock.Set(time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC))

	resp, model := serveApiAndRetrieveEndpoint(t, api, "/api/current-time.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "OK", model.Text)
	assert.Equal(t, 2, model.Version)

	expectedMs := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, expectedMs, model.CurrentTime, "envelope time comes from the board clock")

	entry := entryOf(t, model)
	assert.Equal(t, float64(expectedMs), entry["time"])
	assert.Equal(t, "2024-06-15T14:30:00Z", entry["readableTime"])
}
