package boarddb

import "stopboard.app/internal/appconf"

// Config configures the SQLite-backed key-value store.
type Config struct {
	// DBPath is a file path or ":memory:".
	DBPath string
	Env    appconf.Environment

	verbose bool
}

// NewConfig builds a Config for the given path and environment.
func NewConfig(dbPath string, env appconf.Environment, verbose bool) Config {
	return Config{
		DBPath:  dbPath,
		Env:     env,
		verbose: verbose,
	}
}
