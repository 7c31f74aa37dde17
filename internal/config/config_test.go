// ABOUTME: Tests for configuration loading
// ABOUTME: Covers env var expansion, duration parsing, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Complete(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
auth:
  jwt_secret: "super-secret"
  access_token_ttl: "30m"
  refresh_token_ttl: "48h"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/parley.db", cfg.Database.Path)
	assert.Equal(t, "super-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 48*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PARLEY_TEST_SECRET", "from-env")

	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
auth:
  jwt_secret: "${PARLEY_TEST_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoad_TTLDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
auth:
  jwt_secret: "s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultAccessTokenTTL, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, DefaultRefreshTokenTTL, cfg.Auth.RefreshTokenTTL)
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing http addr",
			content: "database:\n  path: x\nauth:\n  jwt_secret: s\n",
			wantErr: "server.http_addr is required",
		},
		{
			name:    "missing database path",
			content: "server:\n  http_addr: \":8080\"\nauth:\n  jwt_secret: s\n",
			wantErr: "database.path is required",
		},
		{
			name:    "missing jwt secret",
			content: "server:\n  http_addr: \":8080\"\ndatabase:\n  path: x\n",
			wantErr: "auth.jwt_secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
auth:
  jwt_secret: "s"
  access_token_ttl: "eleven minutes"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token_ttl")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/gateway.yaml")
	assert.Error(t, err)
}
