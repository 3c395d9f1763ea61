package webui

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"stopboard.app/boarddb"
	"stopboard.app/internal/appconf"
	"stopboard.app/internal/logging"
	"stopboard.app/internal/settings"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

type debugData struct {
	Title string
	Pre   string
}

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}

func writeDebugData(w http.ResponseWriter, r *http.Request, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{Title: title, Pre: dumper.Sdump(data)})
	if err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to execute debug template", err,
			slog.String("title", title))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// debugIndexHandler dumps a part of the engine snapshot. It is not served in
// production.
func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Application == nil || webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}
	if webUI.Engine == nil {
		http.Error(w, "board engine not configured", http.StatusServiceUnavailable)
		return
	}

	snap, err := webUI.Engine.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "board engine unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	var (
		data  any
		title string
	)
	switch r.URL.Query().Get("dataType") {
	case "state":
		data = snap.Rotation
		title = "Board - Rotation State"
	case "settings":
		dump := struct {
			Current  settings.Settings
			Defaults *settings.Settings
		}{Current: snap.Settings}
		if webUI.Settings != nil {
			defaults := webUI.Settings.Defaults()
			dump.Defaults = &defaults
		}
		data = dump
		title = "Board - Settings"
	case "view":
		data = snap.View
		title = "Board - Current View"
	case "db":
		data = webUI.databaseInfo(r)
		title = "Board - Settings Database"
	case "poll":
		data = struct {
			LastPoll      any
			LastSuccessAt any
			InFlight      int
		}{snap.LastPoll, snap.LastSuccessAt, snap.InFlight}
		title = "Board - Last Poll"
	default:
		data = map[string]string{
			"error": "Please use one of the following: state, settings, view, poll, db.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, r, title, data)
}

type databaseInfo struct {
	Path              string
	TableCounts       map[string]int
	SettingsUpdatedAt time.Time
	Error             string
}

func (webUI *WebUI) databaseInfo(r *http.Request) databaseInfo {
	if webUI.DB == nil {
		return databaseInfo{Error: "database not initialized"}
	}
	info := databaseInfo{Path: webUI.DB.GetDBPath()}

	counts, err := webUI.DB.TableCounts(r.Context())
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.TableCounts = counts

	updated, err := webUI.DB.UpdatedAt(r.Context(), settings.StorageKey)
	switch {
	case errors.Is(err, boarddb.ErrNotFound):
	case err != nil:
		info.Error = err.Error()
	default:
		info.SettingsUpdatedAt = updated
	}
	return info
}
