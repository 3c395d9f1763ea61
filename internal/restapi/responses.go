package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"stopboard.app/internal/logging"
	"stopboard.app/internal/models"
)

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	setJSONResponseType(&w)
	if response.Code != 0 && response.Code != http.StatusOK {
		w.WriteHeader(response.Code)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.serverErrorResponse(w, r, err)
	}
}

func (api *RestAPI) sendEntry(w http.ResponseWriter, r *http.Request, entry any) {
	api.sendResponse(w, r, models.NewEntryResponse(entry, api.Clock))
}

func (api *RestAPI) sendUnauthorized(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusUnauthorized, "permission denied")
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

func (api *RestAPI) sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	setJSONResponseType(&w)
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(models.NewErrorResponse(code, message, api.Clock)); err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to encode error response", err,
			slog.Int("status", code))
	}
}

// serverErrorResponse logs err and answers 500 without leaking its text.
func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())))
	api.sendError(w, r, http.StatusInternalServerError, "internal server error")
}
