package boarddb

import (
	"context"
	"fmt"
	"log/slog"

	"stopboard.app/internal/logging"
)

// TableCounts returns row counts for the known tables. Unknown tables are ignored.
func (c *Client) TableCounts(ctx context.Context) (map[string]int, error) {
	rows, err := c.DB.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to query table names: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows,
		slog.Default().With(slog.String("component", "boarddb")),
		"database_rows")

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	countQueries := map[string]string{
		"kv_entries":      "SELECT COUNT(*) FROM kv_entries",
		"schema_metadata": "SELECT COUNT(*) FROM schema_metadata",
	}

	counts := make(map[string]int)
	for _, table := range tables {
		query, ok := countQueries[table]
		if !ok {
			continue
		}
		var n int
		if err := c.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, err
		}
		counts[table] = n
	}
	return counts, nil
}

// Ping verifies the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}
