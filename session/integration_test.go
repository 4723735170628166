package session_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/api"
	"github.com/haowjy/docsearch-go/backends/lorem"
	"github.com/haowjy/docsearch-go/session"
)

func newLiveManager(t *testing.T, opts ...session.Option) (*session.Manager, session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(lorem.NewServer().Handler())
	t.Cleanup(srv.Close)

	store := session.NewFileStore(t.TempDir() + "/token.yaml")
	client, err := api.NewClient(srv.URL+"/api", store)
	require.NoError(t, err)
	return session.NewManager(store, client, opts...), store
}

func TestLive_ExchangeAndVerify(t *testing.T) {
	m, store := newLiveManager(t)
	ctx := context.Background()

	user, err := m.ExchangeForToken(ctx, docsearch.LoginRequest{IDToken: lorem.DefaultIDToken})
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", user.Email)
	assert.True(t, m.IsAuthenticated())

	token, err := store.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, ok := m.TokenExpiry()
	assert.True(t, ok)

	verified, err := m.VerifyCurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
}

func TestLive_RejectedTokenCleared(t *testing.T) {
	m, store := newLiveManager(t)
	require.NoError(t, store.Save("forged.token.value"))

	_, err := m.VerifyCurrentSession(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, docsearch.ErrSessionInvalid))
	assert.False(t, m.IsAuthenticated())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestLive_ExchangeRejected(t *testing.T) {
	m, _ := newLiveManager(t)

	_, err := m.ExchangeForToken(context.Background(), docsearch.LoginRequest{IDToken: "not-google"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, docsearch.ErrAuthExchangeFailed))
	assert.True(t, errors.Is(err, docsearch.ErrUnauthorized))
	assert.False(t, m.IsAuthenticated())
}

func TestLive_ResolveWithFederated(t *testing.T) {
	m, _ := newLiveManager(t, session.WithFederated(session.StaticFederated(lorem.DefaultIDToken)))

	res, err := m.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Authenticated())
	assert.Equal(t, session.OriginFederated, res.Origin)
	assert.True(t, m.IsAuthenticated())

	res, err = m.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.OriginStored, res.Origin)
}
