package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stopboard.app/internal/logging"
)

const (
	// DefaultPollTimeout bounds one fetch, connection setup included.
	DefaultPollTimeout = 15 * time.Second
	// MaxBodySize caps the feed reply.
	MaxBodySize = 5 * 1024 * 1024

	userAgent = "stopboard/1.0"
)

// Request names the stop to poll and how many visits to ask for.
type Request struct {
	Endpoint  string
	StopCode  string
	MaxVisits int
}

// URL builds the gateway request URL, keeping any query already present on
// the endpoint.
func (r Request) URL() (string, error) {
	u, err := url.Parse(r.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid feed endpoint %q: %w", r.Endpoint, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("feed endpoint %q is not absolute", r.Endpoint)
	}
	q := u.Query()
	q.Set("stopCode", r.StopCode)
	q.Set("maxVisits", strconv.Itoa(r.MaxVisits))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Client fetches raw stop monitoring replies from the gateway.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient returns a Client with a dedicated transport. A zero timeout
// selects DefaultPollTimeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: newFeedHTTPClient(timeout),
		timeout:    timeout,
		logger:     logger.With(slog.String("component", "feed_client")),
	}
}

// newFeedHTTPClient clones http.DefaultTransport so proxy and HTTP/2
// defaults are kept while limits stay private to the feed client.
func newFeedHTTPClient(timeout time.Duration) *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 4
	transport.MaxIdleConnsPerHost = 2
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Fetch performs one poll and returns the raw reply body. Every failure is a
// *PollError of kind TransientNetworkFailure.
func (c *Client) Fetch(ctx context.Context, r Request) ([]byte, error) {
	target, err := r.URL()
	if err != nil {
		return nil, newPollError(TransientNetworkFailure, err, "cannot build feed request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, newPollError(TransientNetworkFailure, err, "cannot build feed request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newPollError(TransientNetworkFailure, err, "feed request failed")
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "http_response_body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		pe := newPollError(TransientNetworkFailure, nil, "feed returned %s: %s", resp.Status, snippet)
		pe.Status = resp.StatusCode
		return nil, pe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, newPollError(TransientNetworkFailure, err, "failed to read response body")
	}
	if len(body) > MaxBodySize {
		return nil, newPollError(TransientNetworkFailure, nil, "feed reply exceeds size limit of %d bytes", MaxBodySize)
	}
	return body, nil
}
