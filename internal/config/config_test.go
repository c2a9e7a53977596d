package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SYMPHAINY_HOME_DIR", home)
	t.Setenv("SYMPHAINY_SERVER_URL", "")
	t.Setenv("SYMPHAINY_DEBUG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://runtime.symphainy.com", cfg.ServerURL)
	require.Equal(t, home, cfg.SymphainyHome)
	require.Equal(t, time.Second, cfg.FilePollInterval)
	require.Equal(t, 30*time.Second, cfg.FilePollMaxWait)
	require.Equal(t, 2*time.Second, cfg.InsightsPollInterval)
	require.Equal(t, 60*time.Second, cfg.InsightsPollMaxWait)
	require.Equal(t, 30*time.Second, cfg.RealmSyncInterval)
	require.False(t, cfg.Debug)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYMPHAINY_HOME_DIR", t.TempDir())
	t.Setenv("SYMPHAINY_SERVER_URL", "https://staging.example.com")
	t.Setenv("SYMPHAINY_DEBUG", "1")
	t.Setenv("SYMPHAINY_FILE_POLL_MS", "250")
	t.Setenv("SYMPHAINY_REALM_SYNC_MS", "5000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://staging.example.com", cfg.ServerURL)
	require.True(t, cfg.Debug)
	require.Equal(t, 250*time.Millisecond, cfg.FilePollInterval)
	require.Equal(t, 5*time.Second, cfg.RealmSyncInterval)
}

func TestDurationEnvMalformed(t *testing.T) {
	t.Setenv("SYMPHAINY_FILE_POLL_MS", "not-a-number")
	require.Equal(t, time.Second, durationEnv("SYMPHAINY_FILE_POLL_MS", time.Second))

	t.Setenv("SYMPHAINY_FILE_POLL_MS", "-5")
	require.Equal(t, time.Second, durationEnv("SYMPHAINY_FILE_POLL_MS", time.Second))
}
