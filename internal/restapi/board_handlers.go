package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"stopboard.app/internal/board"
	"stopboard.app/internal/models"
	"stopboard.app/internal/settings"
)

const maxSettingsBody = 64 << 10

// engineError maps a failed engine command onto a response.
func (api *RestAPI) engineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, board.ErrStopped):
		api.sendError(w, r, http.StatusServiceUnavailable, "board engine stopped")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client went away; nothing useful can be written.
	default:
		api.serverErrorResponse(w, r, err)
	}
}

func (api *RestAPI) viewHandler(w http.ResponseWriter, r *http.Request) {
	view, err := api.Engine.View(r.Context())
	if err != nil {
		api.engineError(w, r, err)
		return
	}
	api.sendEntry(w, r, view)
}

func (api *RestAPI) stateHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := api.Engine.Snapshot(r.Context())
	if err != nil {
		api.engineError(w, r, err)
		return
	}
	api.sendEntry(w, r, snap)
}

func (api *RestAPI) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := api.Engine.Settings(r.Context())
	if err != nil {
		api.engineError(w, r, err)
		return
	}
	api.sendEntry(w, r, cfg)
}

// putSettingsHandler replaces the board settings. Blank numbers take their
// defaults and the board polls right away with the new settings.
func (api *RestAPI) putSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var submitted settings.Settings
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&submitted); err != nil {
		api.sendError(w, r, http.StatusBadRequest, "invalid settings body: "+err.Error())
		return
	}

	updated, err := api.Engine.ApplySettings(r.Context(), submitted)
	if errors.Is(err, settings.ErrInvalidSettings) {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		api.engineError(w, r, err)
		return
	}
	api.sendEntry(w, r, updated)
}

func (api *RestAPI) resetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := api.Engine.ResetSettings(r.Context())
	if err != nil {
		api.engineError(w, r, err)
		return
	}
	api.sendEntry(w, r, cfg)
}

func (api *RestAPI) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.Engine.RefreshNow(r.Context()); err != nil {
		api.engineError(w, r, err)
		return
	}
	api.sendResponse(w, r, models.ResponseModel{
		Code:        http.StatusAccepted,
		CurrentTime: models.ResponseCurrentTime(api.Clock),
		Text:        "poll requested",
		Version:     models.ResponseVersion,
	})
}
