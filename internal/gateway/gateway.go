// Package gateway proxies stop-monitoring requests to the MTA Bus Time SIRI
// API. It accepts the board's short parameter names, injects the server-side
// API key and never forwards a key supplied by the caller.
package gateway

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"stopboard.app/internal/appconf"
	"stopboard.app/internal/logging"
	"stopboard.app/internal/metrics"
)

const (
	userAgent    = "stopboard-gateway/1.0"
	cacheControl = "s-maxage=15"
	maskedKey    = "****"

	HeaderRequestURL = "X-Proxy-Request-Url"
	HeaderStatus     = "X-Proxy-Status"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET,OPTIONS",
	"Access-Control-Allow-Headers": "*",
}

// Headers that describe the upstream connection rather than the payload.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy is an http.Handler for GET and OPTIONS on the stop-monitoring path.
type Proxy struct {
	upstream *url.URL
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New builds a proxy from cfg. When cfg.APIKey is empty the key is read from
// the MTA_API_KEY environment variable; a proxy without any key still works
// against upstreams that do not require one.
func New(cfg appconf.GatewayConfig, logger *slog.Logger, m *metrics.Metrics) (*Proxy, error) {
	upstream, err := url.Parse(cmp.Or(cfg.UpstreamURL, appconf.DefaultGatewayUpstream))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway upstream url: %w", err)
	}
	if !upstream.IsAbs() {
		return nil, fmt.Errorf("gateway upstream url %q is not absolute", cfg.UpstreamURL)
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cmp.Or(cfg.Timeout, appconf.DefaultGatewayTimeout)
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4

	return &Proxy{
		upstream: upstream,
		apiKey:   strings.TrimSpace(cmp.Or(cfg.APIKey, os.Getenv(appconf.GatewayKeyEnvVar))),
		timeout:  timeout,
		client:   &http.Client{Transport: transport, Timeout: timeout},
		logger:   logger.With(slog.String("component", "gateway")),
		metrics:  m,
	}, nil
}

// HasKey reports whether an API key will be injected upstream.
func (p *Proxy) HasKey() bool {
	return p.apiKey != ""
}

// TranslateQuery maps the caller's query onto SIRI parameters. stopCode and
// maxVisits are aliases of MonitoringRef and MaximumStopVisits; when both
// forms are present the SIRI name wins. Values are trimmed, empty values and
// any caller-supplied key are dropped, and OperatorRef and version get their
// defaults.
func TranslateQuery(in url.Values) url.Values {
	out := url.Values{}
	monitoringRef := cmp.Or(firstTrimmed(in, "MonitoringRef"), firstTrimmed(in, "stopCode"))
	maxVisits := cmp.Or(firstTrimmed(in, "MaximumStopVisits"), firstTrimmed(in, "maxVisits"))

	for key, values := range in {
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			switch key {
			case "stopCode", "MonitoringRef":
				monitoringRef = cmp.Or(monitoringRef, v)
			case "maxVisits", "MaximumStopVisits":
				maxVisits = cmp.Or(maxVisits, v)
			case "key":
			default:
				out.Add(key, v)
			}
		}
	}

	if monitoringRef != "" {
		out.Set("MonitoringRef", monitoringRef)
	}
	if maxVisits != "" {
		out.Set("MaximumStopVisits", maxVisits)
	}
	if !out.Has("OperatorRef") {
		out.Set("OperatorRef", "MTA")
	}
	if !out.Has("version") {
		out.Set("version", "2")
	}
	return out
}

func firstTrimmed(in url.Values, key string) string {
	return strings.TrimSpace(in.Get(key))
}

// Target returns the upstream URL for a caller query, key included.
func (p *Proxy) Target(query url.Values) *url.URL {
	params := TranslateQuery(query)
	if p.apiKey != "" {
		params.Set("key", p.apiKey)
	}
	target := *p.upstream
	target.RawQuery = params.Encode()
	return &target
}

// maskKey returns u as a string with the key parameter hidden.
func maskKey(u *url.URL) string {
	masked := *u
	q := masked.Query()
	q.Set("key", maskedKey)
	masked.RawQuery = q.Encode()
	return masked.String()
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		setCORS(w.Header())
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		w.Header().Set("Allow", "GET, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	target := p.Target(r.URL.Query())
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		p.upstreamFailed(w, target, err)
		return
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.upstreamFailed(w, target, err)
		return
	}
	defer logging.SafeCloseWithLogging(resp.Body, p.logger, "gateway_upstream_body")

	header := w.Header()
	for name, values := range resp.Header {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	for _, name := range hopHeaders {
		header.Del(name)
	}
	setCORS(header)
	header.Set("Cache-Control", cacheControl)
	header.Set(HeaderRequestURL, maskKey(target))
	header.Set(HeaderStatus, strconv.Itoa(resp.StatusCode))

	w.WriteHeader(resp.StatusCode)
	written, copyErr := io.Copy(w, resp.Body)

	p.metrics.GatewayUpstream(resp.StatusCode)
	attrs := []slog.Attr{
		slog.String("monitoring_ref", target.Query().Get("MonitoringRef")),
		slog.Int("status", resp.StatusCode),
		slog.Int64("bytes", written),
		slog.Duration("elapsed", time.Since(start)),
	}
	switch {
	case copyErr != nil:
		logging.LogError(p.logger, "gateway response copy interrupted", copyErr, attrs...)
	case resp.StatusCode >= 300:
		logging.LogWarning(p.logger, "gateway upstream returned non-success status", attrs...)
	default:
		p.logger.LogAttrs(ctx, slog.LevelDebug, "gateway_proxied", attrs...)
	}
}

func (p *Proxy) upstreamFailed(w http.ResponseWriter, target *url.URL, err error) {
	err = redactURL(err, target)
	p.metrics.GatewayUpstream(0)
	logging.LogError(p.logger, "gateway upstream request failed", err,
		slog.String("upstream", maskKey(target)))
	writeJSON(w, http.StatusBadGateway, map[string]string{
		"error":  "Upstream request failed",
		"detail": err.Error(),
	})
}

// redactURL replaces the request URL that net/http embeds in its errors
// with the masked one, so the key never reaches a caller or the log.
func redactURL(err error, target *url.URL) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{Op: uerr.Op, URL: maskKey(target), Err: uerr.Err}
}

func setCORS(h http.Header) {
	for k, v := range corsHeaders {
		h.Set(k, v)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	setCORS(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
