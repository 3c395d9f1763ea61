package app

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminKeyHeader carries the admin key on write requests. The key query
// parameter is accepted as well.
const AdminKeyHeader = "X-Admin-Key"

func (app *Application) AdminKeysRequired() bool {
	return len(app.Config.AdminKeys) > 0
}

func (app *Application) RequestHasInvalidAdminKey(r *http.Request) bool {
	key := strings.TrimSpace(r.Header.Get(AdminKeyHeader))
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	return app.IsInvalidAdminKey(key)
}

// IsInvalidAdminKey reports whether key fails to match a configured admin
// key. Without configured keys every request is allowed.
func (app *Application) IsInvalidAdminKey(key string) bool {
	if !app.AdminKeysRequired() {
		return false
	}
	if key == "" {
		return true
	}

	for _, validKey := range app.Config.AdminKeys {
		// Constant-time comparison to prevent timing attacks.
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			return false
		}
	}
	return true
}
