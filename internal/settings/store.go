package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"stopboard.app/boarddb"
	"stopboard.app/internal/logging"
	"stopboard.app/internal/metrics"
)

// StorageKey is the key the settings blob is stored under.
const StorageKey = "board_config"

// ErrInvalidSettings wraps every validation failure returned by Replace.
var ErrInvalidSettings = errors.New("invalid settings")

// KV is the opaque string store the settings are persisted in.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
}

// Store owns the in-memory settings and mirrors every change to the KV
// store. It is not safe for concurrent use; the board engine serializes all
// access on its run loop.
type Store struct {
	kv       KV
	defaults Settings
	current  Settings
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// persisted uses pointers so that absent and null keys keep their defaults.
type persisted struct {
	FeedEndpoint         *string `json:"feedEndpoint"`
	StopID               *string `json:"stopId"`
	RefreshSeconds       *int    `json:"refreshSeconds"`
	MaxDisplayedArrivals *int    `json:"maxDisplayedArrivals"`
	LastRouteLabel       *string `json:"lastRouteLabel"`
}

func NewStore(kv KV, defaults Settings, logger *slog.Logger, m *metrics.Metrics) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:       kv,
		defaults: defaults.Clone(),
		current:  defaults.Clone(),
		logger:   logger.With(slog.String("component", "settings_store")),
		metrics:  m,
	}
}

// Load reads the persisted blob and merges it over the defaults. A missing,
// unreadable or corrupt blob yields the defaults; Load never fails.
func (s *Store) Load(ctx context.Context) Settings {
	s.current = s.defaults.Clone()

	raw, err := s.kv.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, boarddb.ErrNotFound):
		logging.LogOperation(s.logger, "settings_defaults_used", slog.String("reason", "not_persisted"))
		return s.Current()
	case err != nil:
		logging.LogError(s.logger, "failed to read persisted settings, using defaults", err)
		return s.Current()
	}

	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		logging.LogError(s.logger, "failed to parse persisted settings, using defaults", err)
		return s.Current()
	}

	if p.FeedEndpoint != nil {
		s.current.FeedEndpoint = *p.FeedEndpoint
	}
	if p.StopID != nil {
		s.current.StopID = *p.StopID
	}
	if p.RefreshSeconds != nil {
		s.current.RefreshSeconds = *p.RefreshSeconds
	}
	if p.MaxDisplayedArrivals != nil {
		s.current.MaxDisplayedArrivals = *p.MaxDisplayedArrivals
	}
	if p.LastRouteLabel != nil {
		s.current.LastRouteLabel = p.LastRouteLabel
	}

	logging.LogOperation(s.logger, "settings_loaded",
		slog.String("stop_id", s.current.StopID),
		slog.Int("refresh_seconds", s.current.RefreshSeconds))
	return s.Current()
}

// Save makes cfg the current settings and persists it. Persistence failures
// are logged and counted; the in-memory copy stays authoritative.
func (s *Store) Save(ctx context.Context, cfg Settings) {
	s.current = cfg.Clone()
	s.persist(ctx)
}

// SetLastRouteLabel remembers the leading route. Empty or unchanged labels
// are ignored so the store is not rewritten on every poll.
func (s *Store) SetLastRouteLabel(ctx context.Context, label string) bool {
	if label == "" || s.current.Label() == label {
		return false
	}
	s.current.LastRouteLabel = &label
	s.persist(ctx)
	return true
}

// Replace applies settings submitted by an operator. Blank numeric fields
// take their defaults, and the remembered route label survives when the
// submission carries none.
func (s *Store) Replace(ctx context.Context, submitted Settings) (Settings, error) {
	next := normalizeSubmitted(submitted.Clone(), s.defaults)
	if err := next.Validate(); err != nil {
		return s.Current(), fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if next.LastRouteLabel == nil {
		next.LastRouteLabel = s.current.Clone().LastRouteLabel
	}
	s.Save(ctx, next)
	return s.Current(), nil
}

// Reset restores and persists the defaults.
func (s *Store) Reset(ctx context.Context) Settings {
	s.Save(ctx, s.defaults)
	return s.Current()
}

// Current returns a copy of the in-memory settings.
func (s *Store) Current() Settings {
	return s.current.Clone()
}

// Defaults returns a copy of the defaults the store was built with.
func (s *Store) Defaults() Settings {
	return s.defaults.Clone()
}

func (s *Store) persist(ctx context.Context) {
	blob, err := json.Marshal(s.current)
	if err == nil {
		err = s.kv.Put(ctx, StorageKey, string(blob))
	}
	s.metrics.SettingsWrite(err)
	if err != nil {
		logging.LogError(s.logger, "failed to persist settings", err)
	}
}
