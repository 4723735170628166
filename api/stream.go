package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	docsearch "github.com/haowjy/docsearch-go"
)

// OpenStream starts a streaming answer and returns the open response body.
// The Authorization header is always sent, with whatever token is stored
// (possibly empty); the server decides. A non-success status is returned as
// an *APIError carrying the body text.
func (c *Client) OpenStream(ctx context.Context, sr docsearch.StreamRequest) (io.ReadCloser, error) {
	sr = sr.Normalize()
	params := url.Values{"q": {sr.Query}}
	if sr.Limit > 0 {
		params.Set("limit", strconv.Itoa(sr.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL("/search/stream", params), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Authorization", "Bearer "+c.token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &docsearch.APIError{Method: http.MethodGet, Path: "/search/stream", Message: err.Error(), Err: errors.Join(docsearch.ErrServerUnavailable, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = fmt.Sprintf("Stream failed: %d", resp.StatusCode)
		}
		return nil, &docsearch.APIError{
			Method:     http.MethodGet,
			Path:       "/search/stream",
			StatusCode: resp.StatusCode,
			Message:    message,
			Err:        sentinelForStatus(resp.StatusCode),
		}
	}

	c.logger.Debug("stream opened",
		zap.String("query", sr.Query),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)
	return resp.Body, nil
}
