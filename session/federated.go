package session

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Federated gives access to a session held with a third-party identity
// provider. IDToken returns "" with a nil error when no federated session
// exists; absence is not an error.
type Federated interface {
	IDToken(ctx context.Context) (string, error)
}

// StaticFederated is a federated session with a fixed identity token
// (for example one passed on the command line).
type StaticFederated string

// IDToken returns the fixed token.
func (s StaticFederated) IDToken(context.Context) (string, error) {
	return string(s), nil
}

// OAuth2Federated reads the OpenID Connect id_token carried alongside an
// OAuth2 access token.
type OAuth2Federated struct {
	source oauth2.TokenSource
}

// NewOAuth2Federated wraps a token source. A nil source means no federated session.
func NewOAuth2Federated(source oauth2.TokenSource) *OAuth2Federated {
	return &OAuth2Federated{source: source}
}

// IDToken returns the id_token of the current provider token.
func (f *OAuth2Federated) IDToken(context.Context) (string, error) {
	if f == nil || f.source == nil {
		return "", nil
	}

	tok, err := f.source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", fmt.Errorf("identity provider refused token refresh: %w", err)
		}
		return "", fmt.Errorf("failed to get provider token: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	return idToken, nil
}

// GoogleOAuthConfig builds the OAuth2 client configuration for Google sign-in
// with the OpenID scopes needed for an id_token.
func GoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

// ExchangeCode redeems an authorization code with the identity provider and
// returns the resulting federated session.
func ExchangeCode(ctx context.Context, conf *oauth2.Config, code string) (*OAuth2Federated, error) {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return NewOAuth2Federated(conf.TokenSource(ctx, tok)), nil
}

var (
	_ Federated = StaticFederated("")
	_ Federated = (*OAuth2Federated)(nil)
)
