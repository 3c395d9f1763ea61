// Package board runs the arrival board: it polls the feed on the refresh
// cadence, rotates the displayed route on a fixed cadence and pushes every
// resulting view to the renderers. All state changes happen on a single
// run-loop goroutine.
package board

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stopboard.app/internal/clock"
	"stopboard.app/internal/feed"
	"stopboard.app/internal/logging"
	"stopboard.app/internal/metrics"
	"stopboard.app/internal/rotation"
	"stopboard.app/internal/settings"
)

// RotationInterval is how long each route stays on screen.
const RotationInterval = 10 * time.Second

var (
	ErrAlreadyRunning = errors.New("board: engine already running")
	ErrStopped        = errors.New("board: engine stopped")
)

// Renderer receives every view the engine produces. Render is called on the
// run loop and must not block.
type Renderer interface {
	Render(view rotation.ViewModel)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(view rotation.ViewModel)

func (f RendererFunc) Render(view rotation.ViewModel) { f(view) }

// Fetcher retrieves one raw stop monitoring reply.
type Fetcher interface {
	Fetch(ctx context.Context, r feed.Request) ([]byte, error)
}

// Config wires an Engine. Store, Fetcher and Clock are required.
type Config struct {
	Store     *settings.Store
	Fetcher   Fetcher
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Renderers []Renderer
}

// Engine owns the rotation state and both tickers.
type Engine struct {
	store     *settings.Store
	fetcher   Fetcher
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	renderers []Renderer

	commands    chan func(context.Context)
	completions chan completion
	done        chan struct{}
	started     atomic.Bool
	fetches     sync.WaitGroup

	// Owned by the run loop.
	state         *rotation.State
	refresh       *clock.Ticker
	nextSeq       uint64
	lastApplied   uint64
	settingsSeq   uint64
	inflight      map[uint64]context.CancelFunc
	view          rotation.ViewModel
	lastPoll      PollStatus
	lastSuccessAt time.Time
	startedAt     time.Time
}

// PollStatus describes the most recent completed poll.
type PollStatus struct {
	Seq         uint64        `json:"seq"`
	IssuedAt    time.Time     `json:"issuedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Outcome     string        `json:"outcome"`
	Error       string        `json:"error,omitempty"`
	Visits      int           `json:"visits"`
	Discarded   feed.Discards `json:"discarded"`
	Routes      int           `json:"routes"`
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	Rotation      rotation.Snapshot  `json:"rotation"`
	View          rotation.ViewModel `json:"view"`
	Settings      settings.Settings  `json:"settings"`
	LastPoll      PollStatus         `json:"lastPoll"`
	LastSuccessAt time.Time          `json:"lastSuccessAt"`
	StartedAt     time.Time          `json:"startedAt"`
	InFlight      int                `json:"inFlight"`
}

type completion struct {
	seq      uint64
	issuedAt time.Time
	result   feed.Result
	err      error
}

// New builds an engine. The store should already be loaded; its remembered
// route label seeds the placeholder view.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:       cfg.Store,
		fetcher:     cfg.Fetcher,
		clock:       cfg.Clock,
		logger:      logger.With(slog.String("component", "board_engine")),
		metrics:     cfg.Metrics,
		renderers:   cfg.Renderers,
		commands:    make(chan func(context.Context)),
		completions: make(chan completion),
		done:        make(chan struct{}),
		state:       rotation.New(cfg.Store.Current().Label()),
		inflight:    make(map[uint64]context.CancelFunc),
	}
	e.view = e.state.ViewModel(cfg.Store.Current().DisplayCount())
	return e
}

// Run drives the board until ctx is cancelled. It renders the initial view,
// polls immediately, then serves both tickers, poll completions and API
// commands one at a time.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.done)
	e.startedAt = e.clock.Now()

	ctx = logging.WithLogger(ctx, e.logger)
	logging.LogOperation(e.logger, "board_engine_started",
		slog.Duration("rotation_interval", RotationInterval))

	rotationTicker := e.clock.NewTicker(RotationInterval)
	defer rotationTicker.Stop()

	e.restartRefresh(e.store.Current())
	defer func() { e.refresh.Stop() }()

	e.render()
	e.issueFetch(ctx)

	for {
		select {
		case <-ctx.Done():
			for _, cancel := range e.inflight {
				cancel()
			}
			e.fetches.Wait()
			logging.LogOperation(e.logger, "board_engine_stopped")
			return nil
		case <-e.refresh.C:
			e.issueFetch(ctx)
		case <-rotationTicker.C:
			e.rotate()
		case c := <-e.completions:
			e.complete(ctx, c)
		case cmd := <-e.commands:
			cmd(ctx)
		}
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// restartRefresh stops the current refresh ticker before starting the next
// one, so two refresh tickers are never live together.
func (e *Engine) restartRefresh(cfg settings.Settings) {
	if e.refresh != nil {
		e.refresh.Stop()
	}
	e.refresh = e.clock.NewTicker(cfg.RefreshInterval())
}

func (e *Engine) issueFetch(ctx context.Context) {
	cfg := e.store.Current()
	if !cfg.Complete() {
		logging.LogWarning(e.logger, "settings incomplete, skipping poll",
			slog.String("feed_endpoint", cfg.FeedEndpoint),
			slog.String("stop_id", cfg.StopID))
		e.metrics.ObservePoll(metrics.OutcomeSkipped, 0)
		return
	}

	e.nextSeq++
	seq := e.nextSeq
	issuedAt := e.clock.Now()
	req := feed.Request{
		Endpoint:  cfg.FeedEndpoint,
		StopCode:  cfg.StopID,
		MaxVisits: cfg.MaxVisits(),
	}
	fetchLimit := cfg.FetchLimit()

	fetchCtx, cancel := context.WithCancel(ctx)
	e.inflight[seq] = cancel
	e.fetches.Add(1)

	go func() {
		defer e.fetches.Done()

		c := completion{seq: seq, issuedAt: issuedAt}
		body, err := e.fetcher.Fetch(fetchCtx, req)
		if err == nil {
			c.result, err = feed.Normalize(body, e.clock.Now(), fetchLimit)
		}
		c.err = err

		select {
		case e.completions <- c:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) complete(ctx context.Context, c completion) {
	if cancel, ok := e.inflight[c.seq]; ok {
		cancel()
		delete(e.inflight, c.seq)
	}

	now := e.clock.Now()
	elapsed := now.Sub(c.issuedAt)
	status := PollStatus{
		Seq:         c.seq,
		IssuedAt:    c.issuedAt,
		CompletedAt: now,
		Visits:      c.result.Visits,
		Discarded:   c.result.Discarded,
	}

	if c.seq <= e.settingsSeq || c.seq < e.lastApplied {
		e.metrics.ObservePoll(metrics.OutcomeStale, elapsed)
		e.logger.Debug("discarding stale poll",
			slog.Uint64("seq", c.seq),
			slog.Uint64("last_applied", e.lastApplied))
		return
	}

	if c.err != nil {
		kind := feed.KindOf(c.err)
		attrs := []slog.Attr{
			slog.Uint64("seq", c.seq),
			slog.String("kind", kind.String()),
		}
		switch kind {
		case feed.EmptyPoll:
			logging.LogWarning(e.logger, "poll returned no usable arrivals",
				append(attrs, slog.Int("visits", c.result.Visits), slog.Int("discarded", c.result.Discarded.Total()))...)
			e.metrics.ObservePoll(metrics.OutcomeEmpty, elapsed)
		case feed.MalformedFeedPayload:
			logging.LogError(e.logger, "poll returned a malformed payload", c.err, attrs...)
			e.metrics.ObservePoll(metrics.OutcomeMalformed, elapsed)
		default:
			logging.LogError(e.logger, "poll failed", c.err, attrs...)
			e.metrics.ObservePoll(metrics.OutcomeTransient, elapsed)
		}
		status.Outcome = kind.String()
		status.Error = c.err.Error()
		e.lastPoll = status
		return
	}

	leader, applied := e.state.Ingest(c.result.Arrivals)
	if !applied {
		logging.LogWarning(e.logger, "poll produced an empty mapping", slog.Uint64("seq", c.seq))
		e.metrics.ObservePoll(metrics.OutcomeEmpty, elapsed)
		status.Outcome = feed.EmptyPoll.String()
		e.lastPoll = status
		return
	}

	e.lastApplied = c.seq
	e.lastSuccessAt = now
	e.store.SetLastRouteLabel(ctx, leader)
	e.metrics.ObservePoll(metrics.OutcomeApplied, elapsed)
	e.metrics.SetRoutesDisplayed(e.state.Len())

	status.Outcome = metrics.OutcomeApplied
	status.Routes = e.state.Len()
	e.lastPoll = status

	logging.LogOperation(e.logger, "poll_applied",
		slog.Uint64("seq", c.seq),
		slog.Int("routes", e.state.Len()),
		slog.String("leader", leader),
		slog.Duration("elapsed", elapsed))
	e.render()
}

func (e *Engine) rotate() {
	if e.state.Len() == 0 {
		return
	}
	if e.state.Advance() {
		e.metrics.RotationAdvanced()
	}
	e.render()
}

func (e *Engine) render() {
	e.view = e.state.ViewModel(e.store.Current().DisplayCount())
	for _, r := range e.renderers {
		r.Render(e.view)
	}
}

// settingsChanged invalidates polls issued under the old settings, restarts
// the refresh cadence and polls right away.
func (e *Engine) settingsChanged(ctx context.Context, cfg settings.Settings) {
	e.settingsSeq = e.nextSeq
	for seq, cancel := range e.inflight {
		cancel()
		delete(e.inflight, seq)
	}
	e.restartRefresh(cfg)
	e.state.SetLabel(cfg.Label())
	e.render()
	e.issueFetch(ctx)

	logging.LogOperation(e.logger, "board_settings_applied",
		slog.String("stop_id", cfg.StopID),
		slog.Duration("refresh_interval", cfg.RefreshInterval()),
		slog.Int("display_count", cfg.DisplayCount()))
}
