package api

import (
	"context"
	"net/http"

	docsearch "github.com/haowjy/docsearch-go"
)

// Login exchanges a federated credential for a backend token.
// It does not store the token; session.Manager does.
func (c *Client) Login(ctx context.Context, req docsearch.LoginRequest) (*docsearch.AuthResponse, error) {
	var resp docsearch.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the profile of the user owning the stored token.
func (c *Client) Me(ctx context.Context) (*docsearch.User, error) {
	var user docsearch.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
