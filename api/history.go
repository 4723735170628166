package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	docsearch "github.com/haowjy/docsearch-go"
)

// History lists the authenticated user's past searches, newest first.
// limit defaults to 50.
func (c *Client) History(ctx context.Context, limit, offset int) (*docsearch.HistoryList, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	params := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}

	var list docsearch.HistoryList
	if err := c.do(ctx, http.MethodGet, "/history/", params, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DeleteHistoryEntry removes one history entry.
func (c *Client) DeleteHistoryEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/history/"+url.PathEscape(id), nil, nil, nil)
}

// ClearHistory removes all history entries.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/history/", nil, nil, nil)
}
