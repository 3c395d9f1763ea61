package board

import (
	"context"

	"stopboard.app/internal/rotation"
	"stopboard.app/internal/settings"
)

// do runs fn on the loop and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func(loopCtx context.Context)) error {
	finished := make(chan struct{})
	cmd := func(loopCtx context.Context) {
		defer close(finished)
		fn(loopCtx)
	}

	select {
	case e.commands <- cmd:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplySettings validates and persists submitted settings, then restarts the
// refresh cadence and polls immediately. Polls issued under the previous
// settings are discarded when they complete.
func (e *Engine) ApplySettings(ctx context.Context, submitted settings.Settings) (settings.Settings, error) {
	var (
		updated settings.Settings
		err     error
	)
	if doErr := e.do(ctx, func(loopCtx context.Context) {
		updated, err = e.store.Replace(loopCtx, submitted)
		if err != nil {
			return
		}
		e.settingsChanged(loopCtx, updated)
	}); doErr != nil {
		return settings.Settings{}, doErr
	}
	return updated, err
}

// ResetSettings restores the default settings.
func (e *Engine) ResetSettings(ctx context.Context) (settings.Settings, error) {
	var updated settings.Settings
	err := e.do(ctx, func(loopCtx context.Context) {
		updated = e.store.Reset(loopCtx)
		e.settingsChanged(loopCtx, updated)
	})
	return updated, err
}

// RefreshNow issues a poll outside the refresh cadence.
func (e *Engine) RefreshNow(ctx context.Context) error {
	return e.do(ctx, func(loopCtx context.Context) {
		e.issueFetch(loopCtx)
	})
}

// View returns the view most recently pushed to the renderers.
func (e *Engine) View(ctx context.Context) (rotation.ViewModel, error) {
	var view rotation.ViewModel
	err := e.do(ctx, func(context.Context) {
		view = cloneView(e.view)
	})
	return view, err
}

// Settings returns the current settings.
func (e *Engine) Settings(ctx context.Context) (settings.Settings, error) {
	var cfg settings.Settings
	err := e.do(ctx, func(context.Context) {
		cfg = e.store.Current()
	})
	return cfg, err
}

// Snapshot returns a consistent copy of the engine state.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.do(ctx, func(context.Context) {
		snap = Snapshot{
			Rotation:      e.state.Snapshot(),
			View:          cloneView(e.view),
			Settings:      e.store.Current(),
			LastPoll:      e.lastPoll,
			LastSuccessAt: e.lastSuccessAt,
			StartedAt:     e.startedAt,
			InFlight:      len(e.inflight),
		}
	})
	return snap, err
}

func cloneView(v rotation.ViewModel) rotation.ViewModel {
	v.ArrivalMinutes = append([]rotation.Arrival(nil), v.ArrivalMinutes...)
	return v
}
