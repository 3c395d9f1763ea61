package restapi

import (
	"encoding/json"
	"net/http"

	"stopboard.app/internal/logging"
)

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`

	// FeedAgeSeconds is the time since the last successful poll.
	FeedAgeSeconds int64 `json:"feedAgeSeconds,omitempty"`
}

// healthHandler reports 503 until the settings database answers and while
// the board engine is not running. A running board whose feed has not
// refreshed recently is still 200, with status "stale".
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if api.Application == nil || api.DB == nil || api.DB.DB == nil {
		writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Detail: "database not initialized",
		})
		return
	}

	if err := api.DB.Ping(r.Context()); err != nil {
		logging.LogError(api.Logger, "board DB ping failed", err)
		writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Detail: "database connection failed",
		})
		return
	}

	if api.Engine != nil {
		select {
		case <-api.Engine.Done():
			writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unavailable",
				Detail: "board engine stopped",
			})
			return
		default:
		}

		snap, err := api.Engine.Snapshot(r.Context())
		if err != nil {
			writeHealth(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unavailable",
				Detail: "board engine not responding",
			})
			return
		}
		now := api.Clock.Now()
		since, detail := snap.LastSuccessAt, "no successful poll recently"
		if since.IsZero() {
			since, detail = snap.StartedAt, "no successful poll since start"
		}
		if api.staleDetector.Check(since, now) {
			writeHealth(w, http.StatusOK, HealthResponse{
				Status:         "stale",
				Detail:         detail,
				FeedAgeSeconds: int64(api.staleDetector.Age(since, now).Seconds()),
			})
			return
		}
	}

	writeHealth(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func writeHealth(w http.ResponseWriter, status int, body HealthResponse) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
