package restapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealthHandlerWithNilApplication(t *testing.T) {
	api := &RestAPI{}

	rec := httptest.NewRecorder()
	api.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, HealthResponse{Status: "unavailable", Detail: "database not initialized"}, decodeHealth(t, rec))
}

func TestHealthHandlerReturnsOK(t *testing.T) {
	api := createTestApi(t)
	server := newTestServer(t, api)

	resp := doRequest(t, server, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestHealthHandlerEngineStopped(t *testing.T) {
	api, env := createTestApiWithEnv(t)
	env.stop()
	<-api.Engine.Done()

	rec := httptest.NewRecorder()
	api.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "board engine stopped", decodeHealth(t, rec).Detail)
}

func TestHealthHandlerDatabaseClosed(t *testing.T) {
	api := createTestApi(t)
	require.NoError(t, api.DB.Close())

	rec := httptest.NewRecorder()
	api.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "database connection failed", decodeHealth(t, rec).Detail)
}

func TestHealthHandlerReportsStaleFeed(t *testing.T) {
	api, env := createTestApiWithEnv(t)
	env.clock.Set(fixtureTime.Add(DefaultStaleThreshold + time.Minute))

	rec := httptest.NewRecorder()
	api.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeHealth(t, rec)
	assert.Equal(t, "stale", body.Status)
	assert.Equal(t, int64((DefaultStaleThreshold + time.Minute).Seconds()), body.FeedAgeSeconds)
}

func TestHealthHandlerStaleWhenNoPollEverSucceeded(t *testing.T) {
	api, env := createTestApiWithEnv(t, withFetchError(errors.New("connection refused")))

	rec := httptest.NewRecorder()
	api.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "ok", decodeHealth(t, rec).Status, "a fresh start is not stale yet")

	env.clock.Set(fixtureTime.Add(DefaultStaleThreshold + 2*time.Minute))

	rec = httptest.NewRecorder()
	api.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HealthResponse{
		Status:         "stale",
		Detail:         "no successful poll since start",
		FeedAgeSeconds: int64((DefaultStaleThreshold + 2*time.Minute).Seconds()),
	}, decodeHealth(t, rec))
}
