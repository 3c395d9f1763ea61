package restapi

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDKey    contextKey = "request_id"
	RequestIDHeader            = "X-Request-ID"
	maxRequestIDLen            = 128
)

var validRequestIDRegex = regexp.MustCompile(`^[a-zA-Z0-9-._:]+$`)

// RequestIDMiddleware propagates a caller's X-Request-ID when it is sane and
// otherwise assigns a fresh UUID. The id is echoed on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if len(reqID) > maxRequestIDLen || !validRequestIDRegex.MatchString(reqID) {
			reqID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, reqID)))
	})
}

// GetRequestID returns the id assigned by RequestIDMiddleware, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
