// Package api is the HTTP client for the document search backend. Every
// request reads the bearer token from an explicitly supplied TokenSource.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/internal/logging"
)

// TokenSource supplies the bearer token for outgoing requests.
// session.Store implementations satisfy it.
type TokenSource interface {
	Load() (string, error)
}

// Client talks to the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
	cache      *cache.Cache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Streaming requests use the same
// client, so it should not carry an overall Timeout; per-request deadlines
// come from contexts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(l)
	}
}

// WithCacheTTL sets how long filter metadata is cached (0 disables caching).
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// NewClient creates a client for baseURL (e.g. "http://localhost:8000/api").
// tokens may be nil for a client that never authenticates.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL must be absolute, got %q", docsearch.ErrInvalidRequest, baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
		logger:     zap.NewNop(),
		cache:      cache.New(5*time.Minute, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL builds an absolute URL for path with the given query parameters.
func (c *Client) URL(path string, params url.Values) string {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// token returns the stored token, or "" when none is available.
func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn("failed to read token", zap.Error(err))
		return ""
	}
	return token
}

// newRequest builds a JSON request. The Authorization header is attached
// only when a token is stored.
func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, params), reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends a JSON request and decodes a JSON response into out (which may be nil).
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, params, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &docsearch.APIError{Method: method, Path: path, Message: err.Error(), Err: errors.Join(docsearch.ErrServerUnavailable, err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handleErrorResponse(method, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response from %s %s: %w", method, path, err)
	}
	return nil
}

// handleErrorResponse maps a non-success response to an *APIError.
// The backend reports errors as {"error": "..."}; validation failures
// come back as {"detail": ...}.
func handleErrorResponse(method, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	message := ""
	var errResp struct {
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Error != "":
			message = errResp.Error
		case len(errResp.Detail) > 0:
			var detail string
			if json.Unmarshal(errResp.Detail, &detail) == nil {
				message = detail
			} else {
				message = string(errResp.Detail)
			}
		}
	}
	if message == "" {
		message = fmt.Sprintf("API error %d", resp.StatusCode)
	}

	return &docsearch.APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    message,
		Err:        sentinelForStatus(resp.StatusCode),
	}
}

// sentinelForStatus maps HTTP status codes to library errors.
func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return docsearch.ErrUnauthorized
	case status == http.StatusNotFound:
		return docsearch.ErrNotFound
	case status == http.StatusTooManyRequests:
		return docsearch.ErrRateLimited
	case status >= 500:
		return docsearch.ErrServerUnavailable
	default:
		return docsearch.ErrInvalidRequest
	}
}
