package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/auth"
	"github.com/spec-kit/pedidos-console/internal/config"
	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

func loginServer(t *testing.T, handler http.HandlerFunc) config.GatewayConfig {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return config.GatewayConfig{BaseURL: srv.URL, LoginPath: "/login", TimeoutSeconds: 5}
}

func TestAuthProviderSuccess(t *testing.T) {
	cfg := loginServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var creds auth.Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "admin", creds.Username)
		writeJSON(w, 200, map[string]any{"token": "jwt-here", "expires_in": 600})
	})

	before := time.Now()
	grant, err := NewAuthProvider(cfg, nil, zap.NewNop()).Authenticate(context.Background(), auth.Credentials{Username: "admin", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-here", grant.Token)
	assert.WithinDuration(t, before.Add(600*time.Second), grant.ExpiresAt, 5*time.Second)
}

func TestAuthProviderExplicitExpiry(t *testing.T) {
	exp := time.Date(2025, 8, 16, 10, 0, 0, 0, time.UTC)
	cfg := loginServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"access_token": "t", "expires_at": exp})
	})
	grant, err := NewAuthProvider(cfg, nil, nil).Authenticate(context.Background(), auth.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)
	assert.Equal(t, "t", grant.Token)
	assert.True(t, grant.ExpiresAt.Equal(exp))
}

func TestAuthProviderFailures(t *testing.T) {
	cases := []struct {
		status int
		code   string
	}{
		{http.StatusUnauthorized, apperrors.CodeAuthFailed},
		{http.StatusForbidden, apperrors.CodeAuthFailed},
		{http.StatusBadRequest, apperrors.CodeAuthFailed},
		{http.StatusInternalServerError, apperrors.CodeServerError},
	}
	for _, tc := range cases {
		cfg := loginServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.status, map[string]string{"message": "nope"})
		})
		_, err := NewAuthProvider(cfg, nil, nil).Authenticate(context.Background(), auth.Credentials{Username: "a", Password: "b"})
		assert.True(t, apperrors.HasCode(err, tc.code), "status %d: %v", tc.status, err)
	}
}

func TestAuthProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := config.GatewayConfig{BaseURL: srv.URL, LoginPath: "/login"}
	srv.Close()

	_, err := NewAuthProvider(cfg, nil, nil).Authenticate(context.Background(), auth.Credentials{Username: "a", Password: "b"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnreachable))
}
