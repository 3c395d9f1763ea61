// Package webui serves the browser board, its assets and the debug pages.
package webui

import (
	"net/http"

	"stopboard.app/internal/app"
)

type WebUI struct {
	*app.Application
}

func (webUI *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", webUI.boardPageHandler)
	mux.HandleFunc("GET /assets/{file}", webUI.assetsHandler)
	mux.HandleFunc("GET /debug", webUI.debugIndexHandler)
}
