package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.Gateway.BaseURL)
	assert.Equal(t, "http://localhost:8080/api/usuarios", cfg.Gateway.UsersURL)
	assert.Equal(t, "file", cfg.Session.Store)
	assert.Equal(t, time.Second, cfg.Session.PollInterval())
	assert.Equal(t, 600*time.Second, cfg.Session.SimulatedTTL())
	assert.True(t, cfg.Session.Interactive)
	assert.Equal(t, "127.0.0.1:4200", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GATEWAY_BASE_URL", "https://gw.example.com/api/")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("SESSION_POLL_INTERVAL_MS", "250")
	t.Setenv("SESSION_INTERACTIVE", "false")
	t.Setenv("AUTH_MODE", "dev")
	t.Setenv("AUTH_DEV_PASSWORD", "admin")
	t.Setenv("AUTH_DEV_ROLES", "ADMIN, VENTAS ,")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gw.example.com/api", cfg.Gateway.BaseURL)
	assert.Equal(t, "https://gw.example.com/api/usuarios", cfg.Gateway.UsersURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.PollInterval())
	assert.False(t, cfg.Session.Interactive)
	assert.Equal(t, []string{"ADMIN", "VENTAS"}, cfg.Auth.DevRoles)
	assert.Zero(t, cfg.App.RequestTimeout())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":        {"SESSION_STORE": "sqlite"},
		"postgres without dsn": {"SESSION_STORE": "postgres"},
		"dev without password": {"AUTH_MODE": "dev"},
		"bad seal key":         {"SESSION_SEAL_KEY": "zz"},
		"bad redis db":         {"REDIS_DB": "one"},
		"relative login path":  {"GATEWAY_LOGIN_PATH": "login"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
