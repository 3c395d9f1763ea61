package webui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stopboard.app/boarddb"
	"stopboard.app/internal/app"
	"stopboard.app/internal/appconf"
	"stopboard.app/internal/board"
	"stopboard.app/internal/clock"
	"stopboard.app/internal/feed"
	"stopboard.app/internal/settings"
)

type idleFetcher struct{}

func (idleFetcher) Fetch(ctx context.Context, _ feed.Request) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func runningEngine(t *testing.T) (*board.Engine, *boarddb.Client, *settings.Store) {
	t.Helper()
	db, err := boarddb.NewClient(boarddb.NewConfig(":memory:", appconf.Test, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := settings.NewStore(db, settings.FromBoardDefaults(appconf.DefaultConfig().Board), nil, nil)
	store.Load(context.Background())
	engine := board.New(board.Config{
		Store:   store,
		Fetcher: idleFetcher{},
		Clock:   clock.NewMockClock(time.Date(2025, 3, 4, 12, 15, 0, 0, time.UTC)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = engine.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-engine.Done()
	})
	return engine, db, store
}

func TestDebugIndexHandler_ProductionReturns404(t *testing.T) {
	webUI := &WebUI{Application: &app.Application{
		Config: appconf.Config{Env: appconf.Production},
	}}

	rr := httptest.NewRecorder()
	webUI.debugIndexHandler(rr, httptest.NewRequest(http.MethodGet, "/debug?dataType=state", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code, "Should return 404 in Production")
}

func TestDebugIndexHandler_DataTypes(t *testing.T) {
	engine, db, store := runningEngine(t)
	webUI := &WebUI{Application: &app.Application{
		Config:   appconf.Config{Env: appconf.Development},
		Engine:   engine,
		DB:       db,
		Settings: store,
	}}

	tests := []struct {
		dataType string
		title    string
		contains string
	}{
		{"state", "Board - Rotation State", "CurrentIndex"},
		{"settings", "Board - Settings", "300432"},
		{"settings", "Board - Settings", "Defaults"},
		{"view", "Board - Current View", "BUS"},
		{"poll", "Board - Last Poll", "InFlight"},
		{"db", "Board - Settings Database", "kv_entries"},
		{"", "Choose a data type", "Please use one of the following"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			rr := httptest.NewRecorder()
			webUI.debugIndexHandler(rr, httptest.NewRequest(http.MethodGet, "/debug?dataType="+tt.dataType, nil))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
			assert.Contains(t, rr.Body.String(), "<title>"+tt.title+"</title>")
			assert.Contains(t, rr.Body.String(), tt.contains)
		})
	}
}

func TestDebugIndexHandler_EngineStopped(t *testing.T) {
	engine := board.New(board.Config{
		Store: settings.NewStore(nil, settings.Settings{}, nil, nil),
		Clock: clock.NewMockClock(time.Now()),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, engine.Run(ctx))

	webUI := &WebUI{Application: &app.Application{
		Config: appconf.Config{Env: appconf.Development},
		Engine: engine,
	}}
	rr := httptest.NewRecorder()
	webUI.debugIndexHandler(rr, httptest.NewRequest(http.MethodGet, "/debug?dataType=state", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
