package restapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"stopboard.app/boarddb"
	"stopboard.app/internal/app"
	"stopboard.app/internal/appconf"
	"stopboard.app/internal/board"
	"stopboard.app/internal/clock"
	"stopboard.app/internal/feed"
	"stopboard.app/internal/metrics"
	"stopboard.app/internal/models"
	"stopboard.app/internal/settings"
	"stopboard.app/internal/stream"
)

// fixtureTime is the poll time the stop 300432 fixture was captured at.
var fixtureTime = time.Date(2025, 3, 4, 12, 15, 0, 0, time.UTC)

const testAdminKey = "ops-test-key"

// stubFetcher answers every poll with the same reply.
type stubFetcher struct {
	body  []byte
	err   error
	calls atomic.Int32
	last  atomic.Pointer[feed.Request]
}

func (f *stubFetcher) Fetch(_ context.Context, r feed.Request) ([]byte, error) {
	f.calls.Add(1)
	f.last.Store(&r)
	return f.body, f.err
}

type testEnv struct {
	clock   *clock.MockClock
	fetcher *stubFetcher
	stop    context.CancelFunc
}

type testSetup struct {
	cfg      appconf.Config
	fetchErr error
}

type testOption func(*testSetup)

func withAdminKeys(keys ...string) testOption {
	return func(s *testSetup) { s.cfg.AdminKeys = keys }
}

func withRateLimit(n int) testOption {
	return func(s *testSetup) { s.cfg.RateLimit = n }
}

// withFetchError makes every poll fail with err.
func withFetchError(err error) testOption {
	return func(s *testSetup) { s.fetchErr = err }
}

func fixtureBody(t testing.TB) []byte {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("..", "feed", "testdata", "stop_monitoring_300432.json"))
	require.NoError(t, err)
	return body
}

// createTestApiWithEnv wires a running board against the stop 300432
// fixture and waits for the first poll to complete.
func createTestApiWithEnv(t *testing.T, opts ...testOption) (*RestAPI, *testEnv) {
	t.Helper()

	setup := testSetup{cfg: appconf.DefaultConfig()}
	setup.cfg.Env = appconf.Test
	setup.cfg.DataPath = ":memory:"
	setup.cfg.Gateway.Enabled = false
	for _, opt := range opts {
		opt(&setup)
	}
	cfg := setup.cfg

	db, err := boarddb.NewClient(boarddb.NewConfig(cfg.DataPath, cfg.Env, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		clock:   clock.NewMockClock(fixtureTime),
		fetcher: &stubFetcher{body: fixtureBody(t), err: setup.fetchErr},
	}
	m := metrics.New()

	store := settings.NewStore(db, settings.FromBoardDefaults(cfg.Board), nil, m)
	store.Load(context.Background())
	hub := stream.NewHub(env.clock, nil)
	engine := board.New(board.Config{
		Store:     store,
		Fetcher:   env.fetcher,
		Clock:     env.clock,
		Metrics:   m,
		Renderers: []board.Renderer{hub},
	})

	application := &app.Application{
		Config:   cfg,
		Clock:    env.clock,
		Metrics:  m,
		DB:       db,
		Settings: store,
		Engine:   engine,
		Hub:      hub,
	}

	ctx, cancel := context.WithCancel(context.Background())
	env.stop = cancel
	go func() { _ = engine.Run(ctx) }()

	api := NewRestAPI(application)
	t.Cleanup(func() {
		cancel()
		<-engine.Done()
		api.Shutdown()
	})

	require.Eventually(t, func() bool {
		snap, err := engine.Snapshot(context.Background())
		return err == nil && snap.LastPoll.Seq > 0
	}, 2*time.Second, 5*time.Millisecond, "first poll did not complete")

	return api, env
}

func createTestApi(t *testing.T, opts ...testOption) *RestAPI {
	api, _ := createTestApiWithEnv(t, opts...)
	return api
}

func newTestServer(t *testing.T, api *RestAPI) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	server := httptest.NewServer(api.WithGlobalMiddleware(mux))
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// serveApiAndRetrieveEndpoint issues a GET and decodes the envelope.
func serveApiAndRetrieveEndpoint(t *testing.T, api *RestAPI, path string) (*http.Response, models.ResponseModel) {
	t.Helper()
	server := newTestServer(t, api)
	resp := doRequest(t, server, http.MethodGet, path, "", nil)
	return resp, decodeModel(t, resp)
}

func decodeModel(t *testing.T, resp *http.Response) models.ResponseModel {
	t.Helper()
	var model models.ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&model))
	return model
}

// entryOf returns data.entry of a decoded envelope.
func entryOf(t *testing.T, model models.ResponseModel) map[string]any {
	t.Helper()
	data, ok := model.Data.(map[string]any)
	require.True(t, ok, "data is %T", model.Data)
	entry, ok := data["entry"].(map[string]any)
	require.True(t, ok, "entry is %T", data["entry"])
	return entry
}
