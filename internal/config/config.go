// Package config loads the client core's configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	// ServerURL is the base URL of the Symphainy Runtime API.
	ServerURL string
	// SymphainyHome is the directory where the client stores local state
	// (session bootstrap cache, seal key).
	SymphainyHome string

	// FilePoll configures the wait loop for file-class intents.
	FilePollInterval time.Duration
	FilePollMaxWait  time.Duration
	// InsightsPoll configures the wait loop for insights-class intents.
	InsightsPollInterval time.Duration
	InsightsPollMaxWait  time.Duration
	// RealmSyncInterval is the period of the realm reconciliation pull.
	RealmSyncInterval time.Duration

	// Debug enables verbose logging.
	Debug bool
}

// Load loads configuration from environment and defaults.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	symphainyHome := os.Getenv("SYMPHAINY_HOME_DIR")
	if symphainyHome == "" {
		symphainyHome = filepath.Join(homeDir, ".symphainy")
	}
	if err := os.MkdirAll(symphainyHome, 0700); err != nil {
		return nil, fmt.Errorf("failed to create symphainy home: %w", err)
	}

	serverURL := os.Getenv("SYMPHAINY_SERVER_URL")
	if serverURL == "" {
		serverURL = "https://runtime.symphainy.com"
	}

	debug := os.Getenv("SYMPHAINY_DEBUG") == "true" || os.Getenv("SYMPHAINY_DEBUG") == "1"

	return &Config{
		ServerURL:            serverURL,
		SymphainyHome:        symphainyHome,
		FilePollInterval:     durationEnv("SYMPHAINY_FILE_POLL_MS", time.Second),
		FilePollMaxWait:      durationEnv("SYMPHAINY_FILE_POLL_MAX_MS", 30*time.Second),
		InsightsPollInterval: durationEnv("SYMPHAINY_INSIGHTS_POLL_MS", 2*time.Second),
		InsightsPollMaxWait:  durationEnv("SYMPHAINY_INSIGHTS_POLL_MAX_MS", 60*time.Second),
		RealmSyncInterval:    durationEnv("SYMPHAINY_REALM_SYNC_MS", 30*time.Second),
		Debug:                debug,
	}, nil
}

// durationEnv reads a millisecond count from the environment, falling back to
// def when missing or malformed.
func durationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
