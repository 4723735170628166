// Package session owns the client's bearer-token lifecycle: it exchanges
// federated credentials for backend tokens, verifies stored tokens, clears
// them on rejection and reconciles the two authentication origins.
package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/internal/logging"
)

// Backend is the part of the backend API the manager needs.
// *api.Client implements it.
type Backend interface {
	// Login exchanges a federated credential for a backend token.
	Login(ctx context.Context, req docsearch.LoginRequest) (*docsearch.AuthResponse, error)

	// Me returns the profile of the user owning the stored token.
	Me(ctx context.Context) (*docsearch.User, error)
}

// Origin tells where a resolved session came from.
type Origin int

const (
	// OriginNone means the client is unauthenticated
	OriginNone Origin = iota

	// OriginStored means a previously stored backend token was verified
	OriginStored

	// OriginFederated means a federated session was exchanged for a new backend token
	OriginFederated
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case OriginStored:
		return "stored"
	case OriginFederated:
		return "federated"
	default:
		return "none"
	}
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	User   *docsearch.User
	Origin Origin
}

// Authenticated reports whether a user was resolved.
func (r Resolution) Authenticated() bool {
	return r.User != nil && r.Origin != OriginNone
}

// Manager is the single source of truth for "is this client authenticated".
type Manager struct {
	store     Store
	backend   Backend
	federated Federated
	logger    *zap.Logger
	now       func() time.Time
	group     singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithFederated sets the federated session consulted by Resolve.
func WithFederated(f Federated) Option {
	return func(m *Manager) {
		m.federated = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.OrNop(l)
	}
}

// WithClock overrides the clock used to check token expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager over store and backend.
func NewManager(store Store, backend Backend, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		backend: backend,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the token store the manager writes to.
func (m *Manager) Store() Store {
	return m.store
}

// ExchangeForToken sends a federated credential to the backend. On success the
// returned access token is stored and the user profile returned. On failure
// the store is left untouched and the error matches ErrAuthExchangeFailed.
func (m *Manager) ExchangeForToken(ctx context.Context, req docsearch.LoginRequest) (*docsearch.User, error) {
	if !req.Valid() {
		return nil, &docsearch.AuthError{Op: "exchange", Kind: docsearch.ErrAuthExchangeFailed, Err: docsearch.ErrInvalidRequest}
	}

	resp, err := m.backend.Login(ctx, req)
	if err != nil {
		m.logger.Warn("login exchange rejected", zap.Error(err))
		return nil, &docsearch.AuthError{Op: "exchange", Kind: docsearch.ErrAuthExchangeFailed, Err: err}
	}
	if resp.AccessToken == "" {
		return nil, &docsearch.AuthError{Op: "exchange", Kind: docsearch.ErrAuthExchangeFailed, Err: errors.New("backend returned an empty access token")}
	}

	if err := m.store.Save(resp.AccessToken); err != nil {
		return nil, &docsearch.AuthError{Op: "exchange", Kind: docsearch.ErrAuthExchangeFailed, Err: err}
	}

	m.logger.Info("session established",
		zap.String("user_id", resp.User.ID),
		zap.Int("expires_in", resp.ExpiresIn),
	)
	user := resp.User
	return &user, nil
}

// IsAuthenticated reports whether a token is stored. It does not contact the server.
func (m *Manager) IsAuthenticated() bool {
	return m.token() != ""
}

// TokenExpiry returns the expiry of the stored token when it is a JWT with an exp claim.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	token := m.token()
	if token == "" {
		return time.Time{}, false
	}
	return tokenExpiry(token)
}

// VerifyCurrentSession asks the backend who owns the stored token. If the
// backend rejects the token it is cleared and the error matches
// ErrSessionInvalid. Transport and server failures are returned unchanged
// and leave the token in place.
func (m *Manager) VerifyCurrentSession(ctx context.Context) (*docsearch.User, error) {
	if !m.IsAuthenticated() {
		return nil, &docsearch.AuthError{Op: "verify", Kind: docsearch.ErrSessionInvalid}
	}

	user, err := m.backend.Me(ctx)
	if err == nil {
		return user, nil
	}

	if !isRejection(err) {
		return nil, err
	}

	m.logger.Info("stored session rejected, clearing token", zap.Error(err))
	m.ClearSession()
	return nil, &docsearch.AuthError{Op: "verify", Kind: docsearch.ErrSessionInvalid, Err: err}
}

// ClearSession removes the stored token. It is idempotent and never fails.
func (m *Manager) ClearSession() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear token", zap.Error(err))
	}
}

// Resolve reconciles the stored backend token with the federated session:
//
//  1. a stored token is verified; if valid the session is done
//  2. otherwise a federated id_token, if any, is exchanged for a new token
//  3. otherwise the client is unauthenticated (OriginNone, nil error)
//
// Only explicit rejections of an exchange are errors. Concurrent calls share
// one resolution.
func (m *Manager) Resolve(ctx context.Context) (Resolution, error) {
	ch := m.group.DoChan("resolve", func() (any, error) {
		return m.resolve(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Resolution{}, res.Err
		}
		return res.Val.(Resolution), nil
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
}

func (m *Manager) resolve(ctx context.Context) (Resolution, error) {
	if token := m.token(); token != "" {
		if exp, ok := tokenExpiry(token); ok && !m.now().Before(exp) {
			m.logger.Info("stored token expired, clearing", zap.Time("expired_at", exp))
			m.ClearSession()
		} else {
			user, err := m.VerifyCurrentSession(ctx)
			if err == nil {
				return Resolution{User: user, Origin: OriginStored}, nil
			}
			if !errors.Is(err, docsearch.ErrSessionInvalid) {
				return Resolution{}, err
			}
		}
	}

	if m.federated == nil {
		return Resolution{Origin: OriginNone}, nil
	}

	idToken, err := m.federated.IDToken(ctx)
	if err != nil {
		m.logger.Debug("no usable federated session", zap.Error(err))
		return Resolution{Origin: OriginNone}, nil
	}
	if idToken == "" {
		return Resolution{Origin: OriginNone}, nil
	}

	user, err := m.ExchangeForToken(ctx, docsearch.LoginRequest{IDToken: idToken})
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{User: user, Origin: OriginFederated}, nil
}

func (m *Manager) token() string {
	token, err := m.store.Load()
	if err != nil {
		m.logger.Warn("failed to read token", zap.Error(err))
		return ""
	}
	return token
}

// isRejection reports whether the backend explicitly refused the token
// (any 4xx), as opposed to being unreachable or failing.
func isRejection(err error) bool {
	if errors.Is(err, docsearch.ErrUnauthorized) {
		return true
	}
	var apiErr *docsearch.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != 429
	}
	return false
}
