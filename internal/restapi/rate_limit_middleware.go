package restapi

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"stopboard.app/internal/app"
	"stopboard.app/internal/clock"
	"stopboard.app/internal/models"
)

const (
	limiterIdleThreshold = 10 * time.Minute
	limiterCleanupPeriod = 5 * time.Minute
)

// rateLimitClient tracks a limiter and when it was last used so idle clients
// can be evicted.
type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // Unix nanoseconds
}

// RateLimitMiddleware limits requests per client address. Requests carrying
// an exempt admin key bypass the limit.
type RateLimitMiddleware struct {
	limiters    map[string]*rateLimitClient
	mu          sync.RWMutex
	rateLimit   rate.Limit
	burstSize   int
	cleanupTick *time.Ticker
	exemptKeys  map[string]bool
	stopChan    chan struct{}
	stopOnce    sync.Once
	clock       clock.Clock
}

// NewRateLimitMiddleware allows ratePerInterval requests per interval for
// each client, with the same number as burst. A negative rate disables
// limiting; zero rejects everything.
func NewRateLimitMiddleware(ratePerInterval int, interval time.Duration, exemptKeys []string, c clock.Clock) *RateLimitMiddleware {
	var limit rate.Limit
	switch {
	case ratePerInterval < 0:
		limit = rate.Inf
	case ratePerInterval == 0:
		limit = 0
	default:
		limit = rate.Every(interval / time.Duration(ratePerInterval))
	}

	exempt := make(map[string]bool)
	for _, key := range exemptKeys {
		if key = strings.TrimSpace(key); key != "" {
			exempt[key] = true
		}
	}
	if c == nil {
		c = clock.RealClock{}
	}

	rl := &RateLimitMiddleware{
		limiters:    make(map[string]*rateLimitClient),
		rateLimit:   limit,
		burstSize:   max(ratePerInterval, 0),
		cleanupTick: time.NewTicker(limiterCleanupPeriod),
		exemptKeys:  exempt,
		stopChan:    make(chan struct{}),
		clock:       c,
	}
	go rl.cleanup()
	return rl
}

// Handler returns the HTTP middleware handler function.
func (rl *RateLimitMiddleware) Handler() func(http.Handler) http.Handler {
	return rl.rateLimitHandler
}

// getLimiter gets or creates the limiter for a client and marks it as seen.
func (rl *RateLimitMiddleware) getLimiter(clientKey string) *rate.Limiter {
	now := rl.clock.Now().UnixNano()

	rl.mu.RLock()
	if client, exists := rl.limiters[clientKey]; exists {
		client.lastSeen.Store(now)
		rl.mu.RUnlock()
		return client.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Another goroutine may have created it while we waited for the lock.
	if client, exists := rl.limiters[clientKey]; exists {
		client.lastSeen.Store(now)
		return client.limiter
	}

	client := &rateLimitClient{limiter: rate.NewLimiter(rl.rateLimit, rl.burstSize)}
	client.lastSeen.Store(now)
	rl.limiters[clientKey] = client
	return client.limiter
}

// clientAddress identifies the caller by the remote host, without port.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}

func adminKeyFrom(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(app.AdminKeyHeader)); key != "" {
		return key
	}
	return r.URL.Query().Get("key")
}

func (rl *RateLimitMiddleware) rateLimitHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := adminKeyFrom(r); key != "" && rl.exemptKeys[key] {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.getLimiter(clientAddress(r)).Allow() {
			rl.sendRateLimitExceeded(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sendRateLimitExceeded answers 429 in the API envelope.
func (rl *RateLimitMiddleware) sendRateLimitExceeded(w http.ResponseWriter) {
	var retryAfter time.Duration
	switch rl.rateLimit {
	case 0:
		retryAfter = time.Hour
	case rate.Inf:
		retryAfter = time.Second
	default:
		retryAfter = max(time.Duration(float64(time.Second)/float64(rl.rateLimit)), time.Second)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burstSize))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)

	body := models.NewErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", rl.clock)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode rate limit response", "error", err)
	}
}

// cleanupOnce evicts limiters idle for longer than the threshold. It is
// separate from the loop so tests can run it synchronously.
func (rl *RateLimitMiddleware) cleanupOnce() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for key, client := range rl.limiters {
		lastSeen := client.lastSeen.Load()
		if lastSeen == 0 {
			continue
		}
		if now.Sub(time.Unix(0, lastSeen)) > limiterIdleThreshold {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimitMiddleware) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanupOnce()
		case <-rl.stopChan:
			return
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once and
// does not affect in-flight requests.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
		rl.cleanupTick.Stop()
	})
}
