// Package backend talks to the external recommendation backend over REST.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/metrics"
)

// IdentityHeader carries the acting user's email on every backend request
const IdentityHeader = "X-User-Email"

var (
	ErrNotJSON     = errors.New("backend returned a non-JSON body")
	ErrUnavailable = errors.New("backend unavailable")
)

// APIError is a non-2xx reply. Message is the response body, or a
// "<METHOD> <path> → <status>" line when the body is empty.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Response is a successful reply. Body is empty for 204.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the body should be decoded as JSON
func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType, "application/json")
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

type Options struct {
	BaseURL         string
	PathPrefix      string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// HTTPClient overrides the default client, mostly for tests
	HTTPClient *http.Client
}

// Client is safe for concurrent use
type Client struct {
	baseURL    string
	pathPrefix string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*Response]
	log        zerolog.Logger
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		pathPrefix: "/" + strings.Trim(opts.PathPrefix, "/"),
		httpClient: hc,
		log:        logging.Component("backend"),
	}
	if c.pathPrefix == "/" {
		c.pathPrefix = ""
	}

	c.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:    "recommendation-backend",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 4xx replies are the caller's problem, not the backend's health
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BackendBreakerState.Set(float64(to))
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return c
}

// normalizePath maps "profile/x", "/profile/x" and "/api/profile/x" onto the
// same prefixed path.
func (c *Client) normalizePath(path string) string {
	if c.pathPrefix != "" && (path == c.pathPrefix || strings.HasPrefix(path, c.pathPrefix+"/")) {
		return path
	}
	return c.pathPrefix + "/" + strings.TrimLeft(path, "/")
}

// Do sends one request. in is JSON-encoded when non-nil. Non-2xx replies come
// back as *APIError; an open breaker as ErrUnavailable.
func (c *Client) Do(ctx context.Context, method, path string, in any) (*Response, error) {
	full := c.normalizePath(path)
	endpoint := endpointLabel(full, c.pathPrefix)

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return nil, fmt.Errorf("failed to encode %s %s request: %w", method, full, err)
		}
	}

	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.doRequest(ctx, method, full, endpoint, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, full, err)
	}
	return resp, err
}

func (c *Client) doRequest(ctx context.Context, method, path, endpoint string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if email := IdentityFrom(ctx); email != "" {
		req.Header.Set(IdentityHeader, email)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordBackendRequest(endpoint, 0, time.Since(start))
		c.log.Error().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	metrics.RecordBackendRequest(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Int("bytes", len(respBody)).Msg("backend response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = fmt.Sprintf("%s %s → %d", method, path, resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Method: method, Path: path, Message: msg}
	}

	out := &Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type")}
	if resp.StatusCode != http.StatusNoContent {
		out.Body = respBody
	}
	return out, nil
}

// getJSON and sendJSON decode a JSON reply into out. A 204 leaves out untouched.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	return c.call(ctx, method, path, in, out)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.Do(ctx, method, path, in)
	if err != nil {
		return err
	}
	if resp.Status == http.StatusNoContent || out == nil {
		return nil
	}
	if !resp.IsJSON() {
		return fmt.Errorf("%w: %s", ErrNotJSON, resp.Text())
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// endpointLabel keeps metric cardinality low: "/api/profile/a@b" → "profile"
func endpointLabel(path, prefix string) string {
	p := strings.TrimPrefix(path, prefix)
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexAny(p, "?"); i >= 0 {
		p = p[:i]
	}
	parts := strings.SplitN(p, "/", 3)
	if parts[0] == "admin" && len(parts) > 1 {
		return "admin/" + parts[1]
	}
	return parts[0]
}
