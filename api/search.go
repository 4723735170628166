package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	docsearch "github.com/haowjy/docsearch-go"
)

const (
	// DefaultSearchLimit is used when a search request has no limit
	DefaultSearchLimit = 20

	// DefaultRelatedLimit is used when RelatedDocuments gets no limit
	DefaultRelatedLimit = 5

	filterMetadataKey = "filter-metadata"
)

// Search runs a non-streaming search.
func (c *Client) Search(ctx context.Context, req docsearch.SearchRequest) (*docsearch.SearchResult, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, fmt.Errorf("%w: empty query", docsearch.ErrInvalidRequest)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultSearchLimit
	}
	if req.Filters != nil && req.Filters.IsEmpty() {
		req.Filters = nil
	}

	var result docsearch.SearchResult
	if err := c.do(ctx, http.MethodPost, "/search", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Document fetches one document with its full content.
func (c *Client) Document(ctx context.Context, id string) (*docsearch.Document, error) {
	var doc docsearch.Document
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// RelatedDocuments lists documents related to id.
func (c *Client) RelatedDocuments(ctx context.Context, id string, limit int) ([]docsearch.Document, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	params := url.Values{"limit": {strconv.Itoa(limit)}}

	var docs []docsearch.Document
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id)+"/related", params, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// FilterMetadata lists the available filter values. Results are cached.
func (c *Client) FilterMetadata(ctx context.Context) (*docsearch.FilterMetadata, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(filterMetadataKey); ok {
			return cached.(*docsearch.FilterMetadata), nil
		}
	}

	var meta docsearch.FilterMetadata
	if err := c.do(ctx, http.MethodGet, "/documents/", nil, nil, &meta); err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.SetDefault(filterMetadataKey, &meta)
	}
	return &meta, nil
}

// InvalidateCache drops cached lookups.
func (c *Client) InvalidateCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}
