package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndValidation(t *testing.T) {
	_, err := Load("")
	require.Error(t, err, "secret is mandatory")

	t.Setenv("TASKFORGE_AUTH_SECRET", "env-secret")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Std())
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, time.Hour, cfg.Sweep.Interval.Std())
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  addr: ":9090"
  rate_limit_rps: 50
  cors_origins:
    - https://app.example.com
database:
  dsn: "postgres://file"
auth:
  secret: "file-secret"
  token_ttl: 1h
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("TASKFORGE_DATABASE_DSN", "postgres://env")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "postgres://env", cfg.Database.DSN, "env overrides file")
	require.Equal(t, "file-secret", cfg.Auth.Secret)
	require.Equal(t, time.Hour, cfg.Auth.TokenTTL.Std())
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, 50, cfg.Server.RateLimitRPS)
	require.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoadEnvListParsing(t *testing.T) {
	t.Setenv("TASKFORGE_AUTH_SECRET", "s")
	t.Setenv("TASKFORGE_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("TASKFORGE_RATE_LIMIT_RPS", "25")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	require.Equal(t, 25, cfg.Server.RateLimitRPS)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}
