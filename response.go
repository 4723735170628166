package docsearch

// AuthResponse is returned by the login exchange.
type AuthResponse struct {
	// AccessToken is the backend bearer token
	AccessToken string `json:"access_token"`

	// TokenType is usually "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the token lifetime in seconds
	ExpiresIn int `json:"expires_in"`

	// User is the authenticated user's profile
	User User `json:"user"`
}

// HistoryList is one page of the user's search history.
type HistoryList struct {
	History []HistoryEntry `json:"history"`
	Total   int            `json:"total"`
}
