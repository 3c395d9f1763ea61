package restapi

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"stopboard.app/internal/app"
)

// RestAPI serves the board's JSON endpoints, the event stream, metrics and
// the stop-monitoring gateway.
type RestAPI struct {
	*app.Application
	rateLimiter   *RateLimitMiddleware
	staleDetector *StaleDetector
	gzip          func(http.Handler) http.HandlerFunc
}

// NewRestAPI builds the API around a fully wired application.
func NewRestAPI(application *app.Application) *RestAPI {
	gzip, err := gzhttp.NewWrapper(
		gzhttp.ContentTypes([]string{"application/json"}),
		gzhttp.MinSize(512),
	)
	if err != nil {
		// Only reachable with invalid static options.
		panic(err)
	}

	return &RestAPI{
		Application:   application,
		rateLimiter:   NewRateLimitMiddleware(application.Config.RateLimit, time.Second, application.Config.AdminKeys, application.Clock),
		staleDetector: NewStaleDetector(),
		gzip:          gzip,
	}
}

// Shutdown stops background work owned by the API.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
