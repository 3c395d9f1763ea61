package app

import (
	"log/slog"

	"stopboard.app/boarddb"
	"stopboard.app/internal/appconf"
	"stopboard.app/internal/board"
	"stopboard.app/internal/clock"
	"stopboard.app/internal/gateway"
	"stopboard.app/internal/metrics"
	"stopboard.app/internal/settings"
	"stopboard.app/internal/stream"
)

// Application holds the dependencies shared by the HTTP handlers, the
// middleware and the board engine.
type Application struct {
	Config   appconf.Config
	Logger   *slog.Logger
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	DB       *boarddb.Client
	Settings *settings.Store
	Engine   *board.Engine
	Hub      *stream.Hub
	// Gateway is nil when the built-in proxy is disabled.
	Gateway *gateway.Proxy
}
