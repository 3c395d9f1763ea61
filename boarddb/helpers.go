package boarddb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stopboard.app/internal/appconf"
	"stopboard.app/internal/logging"
)

//go:embed schema.sql
var ddl string

func createDB(config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.DBPath != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", config.DBPath)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, err
	}

	// Pool size must be fixed before the first query or an in-memory
	// database could be split across connections.
	configureConnectionPool(db, config)

	ctx := context.Background()
	if err := configureSQLite(ctx, db, config); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error configuring SQLite: %w", err)
	}

	if err := performDatabaseMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	return db, nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmed); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmed, err)
		}
	}
	return nil
}

func configureSQLite(ctx context.Context, db *sql.DB, config Config) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	if config.DBPath != ":memory:" {
		// The settings blob is written synchronously on every change.
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}

	logger := slog.Default().With(slog.String("component", "boarddb"))
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logging.LogError(logger, "failed to apply pragma", err, slog.String("pragma", pragma))
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

// configureConnectionPool limits :memory: databases to one connection since
// every connection would otherwise see its own empty database.
func configureConnectionPool(db *sql.DB, config Config) {
	if config.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}
