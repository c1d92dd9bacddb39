package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chathub/internal/scheduler"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.Equal(t, 10, cfg.RoomCount)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.AuthGrace)
	assert.Equal(t, 10*time.Second, cfg.SessionSweepInterval)
	assert.Equal(t, 10*time.Second, cfg.ConnectionSweepInterval)
	assert.Equal(t, scheduler.PolicyBlock, cfg.Policy())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHATHUB_STORAGE_TYPE", "redis")
	t.Setenv("CHATHUB_QUEUE_POLICY", "reject")
	t.Setenv("CHATHUB_TOTAL_CAPACITY", "20")
	t.Setenv("CHATHUB_SESSION_TTL", "30s")
	t.Setenv("CHATHUB_DIAGNOSTIC", "true")
	t.Setenv("CHATHUB_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.StorageType)
	assert.Equal(t, scheduler.PolicyReject, cfg.Policy())
	assert.Equal(t, 20, cfg.TotalCapacity)
	assert.Equal(t, 30*time.Second, cfg.SessionTTL)
	assert.True(t, cfg.Diagnostic)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "storage type", key: "CHATHUB_STORAGE_TYPE", value: "postgres"},
		{name: "queue policy", key: "CHATHUB_QUEUE_POLICY", value: "drop"},
		{name: "log level", key: "CHATHUB_LOG_LEVEL", value: "loud"},
		{name: "room count", key: "CHATHUB_ROOM_COUNT", value: "0"},
		{name: "capacity below rooms", key: "CHATHUB_TOTAL_CAPACITY", value: "5"},
		{name: "zero ttl", key: "CHATHUB_SESSION_TTL", value: "0s"},
		{name: "not a number", key: "CHATHUB_QUEUE_SIZE", value: "lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
