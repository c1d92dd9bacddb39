// Package config loads server configuration from CHATHUB_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/chathub/internal/scheduler"
)

// Config is the server configuration
type Config struct {
	HTTPAddr   string `env:"CHATHUB_HTTP_ADDR"    envDefault:":8080"`
	ServerID   string `env:"CHATHUB_SERVER_ID"    envDefault:"chathub-1"`
	LogLevel   string `env:"CHATHUB_LOG_LEVEL"    envDefault:"info"`
	AdminToken string `env:"CHATHUB_ADMIN_TOKEN"`

	StorageType string `env:"CHATHUB_STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"CHATHUB_REDIS_URL"    envDefault:"redis://localhost:6379"`

	WorkerMultiplier int    `env:"CHATHUB_WORKER_MULTIPLIER" envDefault:"2"`
	QueueSize        int    `env:"CHATHUB_QUEUE_SIZE"        envDefault:"4096"`
	QueuePolicy      string `env:"CHATHUB_QUEUE_POLICY"      envDefault:"block"`
	Diagnostic       bool   `env:"CHATHUB_DIAGNOSTIC"        envDefault:"false"`

	RoomCount     int `env:"CHATHUB_ROOM_COUNT"     envDefault:"10"`
	TotalCapacity int `env:"CHATHUB_TOTAL_CAPACITY" envDefault:"1000"`
	HistoryLimit  int `env:"CHATHUB_HISTORY_LIMIT"  envDefault:"50"`

	SessionTTL              time.Duration `env:"CHATHUB_SESSION_TTL"               envDefault:"15m"`
	SessionSweepInterval    time.Duration `env:"CHATHUB_SESSION_SWEEP_INTERVAL"    envDefault:"10s"`
	AuthGrace               time.Duration `env:"CHATHUB_AUTH_GRACE"                envDefault:"5s"`
	ConnectionSweepInterval time.Duration `env:"CHATHUB_CONNECTION_SWEEP_INTERVAL" envDefault:"10s"`
	LoginInterval           time.Duration `env:"CHATHUB_LOGIN_INTERVAL"            envDefault:"5s"`
}

// Load parses the environment into a validated Config
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations
func (c Config) Validate() error {
	switch c.StorageType {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid CHATHUB_STORAGE_TYPE %q: must be 'memory' or 'redis'", c.StorageType)
	}
	if _, err := scheduler.ParsePolicy(c.QueuePolicy); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.RoomCount < 1 {
		return fmt.Errorf("CHATHUB_ROOM_COUNT must be at least 1, got %d", c.RoomCount)
	}
	if c.TotalCapacity < c.RoomCount {
		return fmt.Errorf("CHATHUB_TOTAL_CAPACITY (%d) must be at least CHATHUB_ROOM_COUNT (%d)", c.TotalCapacity, c.RoomCount)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("CHATHUB_HISTORY_LIMIT must be at least 1, got %d", c.HistoryLimit)
	}
	if c.WorkerMultiplier < 1 {
		return fmt.Errorf("CHATHUB_WORKER_MULTIPLIER must be at least 1, got %d", c.WorkerMultiplier)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("CHATHUB_QUEUE_SIZE must be at least 1, got %d", c.QueueSize)
	}
	for name, d := range map[string]time.Duration{
		"CHATHUB_SESSION_TTL":               c.SessionTTL,
		"CHATHUB_SESSION_SWEEP_INTERVAL":    c.SessionSweepInterval,
		"CHATHUB_AUTH_GRACE":                c.AuthGrace,
		"CHATHUB_CONNECTION_SWEEP_INTERVAL": c.ConnectionSweepInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.LoginInterval < 0 {
		return fmt.Errorf("CHATHUB_LOGIN_INTERVAL must not be negative, got %s", c.LoginInterval)
	}
	return nil
}

// Policy returns the parsed queue policy
func (c Config) Policy() scheduler.Policy {
	p, _ := scheduler.ParsePolicy(c.QueuePolicy)
	return p
}

// SlogLevel returns the configured log level
func (c Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid CHATHUB_LOG_LEVEL %q", c.LogLevel)
	}
}
