package restapi

import (
	"fmt"
	"net/http"
)

const noStoreHeader = "no-cache, no-store, must-revalidate"

// CacheControlMiddleware sets Cache-Control on successful responses. Zero
// seconds and every non-2xx response get a no-store header.
func CacheControlMiddleware(durationSeconds int, next http.Handler) http.Handler {
	headerValue := noStoreHeader
	if durationSeconds > 0 {
		headerValue = fmt.Sprintf("public, max-age=%d", durationSeconds)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&cacheControlWriter{ResponseWriter: w, headerValue: headerValue}, r)
	})
}

type cacheControlWriter struct {
	http.ResponseWriter
	headerValue   string
	headerWritten bool
}

func (w *cacheControlWriter) WriteHeader(code int) {
	if !w.headerWritten {
		w.headerWritten = true
		value := noStoreHeader
		if code >= 200 && code < 300 {
			value = w.headerValue
		}
		w.ResponseWriter.Header().Set("Cache-Control", value)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *cacheControlWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
