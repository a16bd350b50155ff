package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "GLORIA_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "org")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(sub))

	t.Setenv("GLORIA_TEST_ENV_LOAD", "")
	require.NoError(t, os.Unsetenv("GLORIA_TEST_ENV_LOAD"))

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("GLORIA_TEST_ENV_LOAD"))
}

func TestLoad_OrgDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	t.Cleanup(cfg.Unload)

	require.Equal(t, 12, cfg.Org.MaxBackdateMonths)
	require.Equal(t, 5, cfg.Org.MaxSpanYears)
	require.Equal(t, 6, cfg.Org.ActingMaxMonths)
	require.Equal(t, 2, cfg.Org.ActingMaxHolders)
	require.Equal(t, 20, cfg.Org.MaxChainDepth)
	require.Equal(t, uint64(3), cfg.Org.TxMaxRetries)
	require.Equal(t, "localhost:3200", cfg.SocketAddress)
	require.Equal(t, logrus.ErrorLevel, cfg.Logger().GetLevel())
	require.Equal(t, "memory", cfg.RateLimit.Storage)
	require.Equal(t, cfg.RedisURL, cfg.RateLimit.RedisURL)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_RateLimitStorage(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("RATE_LIMIT_STORAGE", "etcd")
	_, err := Load()
	require.ErrorContains(t, err, "rate limit Storage")

	t.Setenv("RATE_LIMIT_STORAGE", "redis")
	t.Setenv("RATE_LIMIT_REDIS_URL", "redis://limiter:6379/1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg, err := Load()
	require.NoError(t, err)
	t.Cleanup(cfg.Unload)
	require.Equal(t, "redis://limiter:6379/1", cfg.RateLimit.RedisURL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("HIERARCHY_MAX_CHAIN_DEPTH", "0")
	_, err := Load()
	require.ErrorContains(t, err, "HIERARCHY_MAX_CHAIN_DEPTH")

	t.Setenv("HIERARCHY_MAX_CHAIN_DEPTH", "20")
	t.Setenv("LOG_FORMAT", "xml")
	_, err = Load()
	require.ErrorContains(t, err, "LOG_FORMAT")
}

func TestLoad_JSONLogFormat(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	t.Cleanup(cfg.Unload)

	require.IsType(t, &logrus.JSONFormatter{}, cfg.Logger().Formatter)
	require.Equal(t, logrus.DebugLevel, cfg.Logger().GetLevel())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
