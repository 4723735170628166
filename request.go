package docsearch

import "strings"

// LoginRequest exchanges a federated identity credential for a backend token.
// Exactly one of Code or IDToken should be set.
type LoginRequest struct {
	// Code is an OAuth authorization code from the identity provider
	Code string `json:"code,omitempty"`

	// IDToken is an identity assertion from an existing federated session
	IDToken string `json:"id_token,omitempty"`
}

// Valid reports whether the request carries a credential.
func (r LoginRequest) Valid() bool {
	return r.Code != "" || r.IDToken != ""
}

// SearchRequest is the body of a non-streaming search.
type SearchRequest struct {
	// Query is the natural-language search text
	Query string `json:"query"`

	// Filters narrows the result set (nil for none)
	Filters *SearchFilters `json:"filters,omitempty"`

	// Limit is the maximum number of documents (0 means the client default)
	Limit int `json:"limit"`
}

// StreamRequest describes a streaming answer request.
type StreamRequest struct {
	// Query is sent as the q parameter
	Query string

	// Limit is sent as the limit parameter when positive
	Limit int
}

// Normalize trims the query.
func (r StreamRequest) Normalize() StreamRequest {
	r.Query = strings.TrimSpace(r.Query)
	return r
}
