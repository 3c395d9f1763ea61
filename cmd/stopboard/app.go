package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stopboard.app/boarddb"
	"stopboard.app/internal/app"
	"stopboard.app/internal/appconf"
	"stopboard.app/internal/board"
	"stopboard.app/internal/clock"
	"stopboard.app/internal/feed"
	"stopboard.app/internal/gateway"
	"stopboard.app/internal/logging"
	"stopboard.app/internal/metrics"
	"stopboard.app/internal/restapi"
	"stopboard.app/internal/settings"
	"stopboard.app/internal/stream"
	"stopboard.app/internal/webui"
)

// FrozenTimeEnvVar pins the board's wall clock outside production.
const FrozenTimeEnvVar = "STOPBOARD_NOW"

const (
	dbStatsInterval = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// BuildApplication wires every dependency of the board. The engine is built
// but not started; Run starts it.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	var logger *slog.Logger
	if cfg.Env == appconf.Production {
		logger = logging.NewStructuredLogger(os.Stdout, level)
	} else {
		logger = logging.NewDevelopmentLogger(os.Stdout, level)
	}
	logging.SetDefault(logger)

	var appClock clock.Clock = clock.RealClock{}
	if cfg.Env != appconf.Production && os.Getenv(FrozenTimeEnvVar) != "" {
		appClock = clock.NewEnvironmentClock(FrozenTimeEnvVar, "", time.Local)
		logging.LogWarning(logger, "board clock frozen from environment",
			slog.String("env_var", FrozenTimeEnvVar))
	}

	appMetrics := metrics.NewWithLogger(logger)

	db, err := boarddb.NewClient(boarddb.NewConfig(cfg.DataPath, cfg.Env, cfg.Verbose))
	if err != nil {
		return nil, fmt.Errorf("failed to open board database: %w", err)
	}
	appMetrics.StartDBStatsCollector(db.DB, dbStatsInterval)

	store := settings.NewStore(db, settings.FromBoardDefaults(cfg.Board), logger, appMetrics)
	store.Load(context.Background())

	var proxy *gateway.Proxy
	if cfg.Gateway.Enabled {
		proxy, err = gateway.New(cfg.Gateway, logger, appMetrics)
		if err != nil {
			appMetrics.Shutdown()
			logging.SafeCloseWithLogging(db, logger, "board_db")
			return nil, fmt.Errorf("failed to build gateway: %w", err)
		}
		if !proxy.HasKey() {
			logging.LogWarning(logger, "gateway has no API key; upstream requests are unauthenticated",
				slog.String("env_var", appconf.GatewayKeyEnvVar))
		}
	}

	hub := stream.NewHub(appClock, logger)
	engine := board.New(board.Config{
		Store:     store,
		Fetcher:   feed.NewClient(feed.DefaultPollTimeout, logger),
		Clock:     appClock,
		Logger:    logger,
		Metrics:   appMetrics,
		Renderers: []board.Renderer{hub, board.LogRenderer{Logger: logger}},
	})

	return &app.Application{
		Config:   cfg,
		Logger:   logger,
		Clock:    appClock,
		Metrics:  appMetrics,
		DB:       db,
		Settings: store,
		Engine:   engine,
		Hub:      hub,
		Gateway:  proxy,
	}, nil
}

// CreateServer mounts the API and web UI routes behind the global middleware.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)
	webUI := &webui.WebUI{Application: coreApp}

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	webUI.SetWebUIRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.WithGlobalMiddleware(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}
	if coreApp.Hub != nil {
		srv.RegisterOnShutdown(coreApp.Hub.Close)
	}
	return srv, api
}

// Run starts the board engine and serves HTTP until SIGINT or SIGTERM, then
// shuts everything down in reverse order.
func Run(srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, srv, coreApp, api, srv.ListenAndServe)
}

func serve(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI, listen func() error) error {
	logger := coreApp.Logger

	engineCtx, cancelEngine := context.WithCancel(context.Background())
	engineErr := make(chan error, 1)
	go func() {
		engineErr <- coreApp.Engine.Run(engineCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "server_starting",
			slog.String("addr", srv.Addr),
			slog.String("env", coreApp.Config.Env.String()))
		if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logging.LogOperation(logger, "shutdown_signal_received")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "server shutdown did not complete", err)
		runErr = errors.Join(runErr, err)
	}

	cancelEngine()
	if err := <-engineErr; err != nil {
		logging.LogError(logger, "board engine stopped with error", err)
		runErr = errors.Join(runErr, err)
	}

	api.Shutdown()
	coreApp.Metrics.Shutdown()
	logging.SafeCloseWithLogging(coreApp.DB, logger, "board_db")
	logging.LogOperation(logger, "server_stopped")
	return runErr
}
