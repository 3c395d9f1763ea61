package restapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lifetimes in seconds. Board data changes every rotation tick and is
// never cached.
const (
	noCache     = 0
	configCache = 300
)

// SetRoutes registers every API endpoint on mux.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/board/view.json", api.jsonRoute(api.viewHandler, noCache))
	mux.Handle("GET /api/board/state.json", api.jsonRoute(api.stateHandler, noCache))
	mux.Handle("GET /api/board/settings.json", api.jsonRoute(api.getSettingsHandler, noCache))
	mux.Handle("PUT /api/board/settings.json", api.adminRoute(api.putSettingsHandler))
	mux.Handle("POST /api/board/settings/reset.json", api.adminRoute(api.resetSettingsHandler))
	mux.Handle("POST /api/board/refresh.json", api.adminRoute(api.refreshHandler))
	if api.Hub != nil {
		mux.Handle("GET /api/board/stream", api.rateLimiter.Handler()(api.Hub))
	}

	mux.Handle("GET /api/current-time.json", api.jsonRoute(api.currentTimeHandler, noCache))
	mux.Handle("GET /api/config.json", api.jsonRoute(api.configHandler, configCache))
	mux.HandleFunc("GET /api/health", api.healthHandler)

	if api.Gateway != nil {
		// The gateway answers OPTIONS and rejects other methods itself.
		mux.Handle("/api/stop-monitoring", api.rateLimiter.Handler()(api.Gateway))
	}

	if api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{
			Registry: api.Metrics.Registry,
		}))
	}
}

// WithGlobalMiddleware wraps the whole mux: request id, then request
// logging, then metrics.
func (api *RestAPI) WithGlobalMiddleware(next http.Handler) http.Handler {
	return RequestIDMiddleware(
		NewRequestLoggingMiddleware(api.Logger)(
			MetricsHandler(api.Metrics)(next)))
}

func (api *RestAPI) jsonRoute(h http.HandlerFunc, cacheSeconds int) http.Handler {
	return api.rateLimiter.Handler()(api.gzip(CacheControlMiddleware(cacheSeconds, h)))
}

func (api *RestAPI) adminRoute(h http.HandlerFunc) http.Handler {
	return api.jsonRoute(api.requireAdminKey(h), noCache)
}

func (api *RestAPI) requireAdminKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAdminKey(r) {
			api.sendUnauthorized(w, r)
			return
		}
		next(w, r)
	}
}
