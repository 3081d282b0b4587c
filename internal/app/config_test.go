package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/odyssey")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Second, cfg.AppShutdownTimeout)
	require.Equal(t, 300, cfg.RateLimitPerMinute)
	require.Equal(t, 5*time.Minute, cfg.RBACCacheTTL)
	require.Equal(t, "5 0 * * *", cfg.BudgetCloseCron)
	require.Equal(t, 2*time.Minute, cfg.BudgetCloseLockTTL)
	require.Equal(t, 10, cfg.WorkerConcurrency)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/odyssey")
	t.Setenv("LOG_FORMAT", "xml")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("WORKER_CONCURRENCY", "0")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "production", LogFormat: "json"})
	logger.Debug("hidden")
	logger.Info("shown", "task", "budget:close-expired")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "shown", line["msg"])
	require.Equal(t, "budget:close-expired", line["task"])
}
