package boarddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver
	"stopboard.app/internal/logging"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("boarddb: key not found")

// Client is an opaque string key-value store on top of SQLite.
type Client struct {
	config Config
	DB     *sql.DB
	now    func() time.Time
}

// NewClient opens the database described by config and applies the schema.
func NewClient(config Config) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create DB: %w", err)
	} else if config.verbose {
		logging.LogOperation(slog.Default().With(slog.String("component", "boarddb")),
			"board_db_ready", slog.String("path", config.DBPath))
	}

	return &Client{
		config: config,
		DB:     db,
		now:    time.Now,
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) GetDBPath() string {
	return c.config.DBPath
}

// Get returns the value stored under key, or ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := c.DB.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (c *Client) Put(ctx context.Context, key, value string) error {
	_, err := c.DB.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// UpdatedAt reports when key was last written.
func (c *Client) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var millis int64
	err := c.DB.QueryRowContext(ctx, `SELECT updated_at FROM kv_entries WHERE key = ?`, key).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return time.UnixMilli(millis), nil
}
