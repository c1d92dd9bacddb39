package factory

import (
	"time"

	"github.com/mcoot/chathub/internal/dependencies/mocks"
	"github.com/mcoot/chathub/internal/scheduler"
	"github.com/mcoot/chathub/internal/services/room"
	"github.com/mcoot/chathub/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	Memory    *memory.Storage
}

// TestConfig returns a small, fast configuration for tests
func TestConfig() Config {
	return Config{
		ServerID:  "test-server",
		Scheduler: scheduler.Config{Name: "commands", Workers: 4, QueueSize: 256},
		Rooms:     room.Config{RoomCount: 10, TotalCapacity: 100, HistoryLimit: 50},
	}
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithConfig(TestConfig())
}

// NewTestAppWithConfig creates a test App from cfg, backed by memory storage and a mock clock
func NewTestAppWithConfig(cfg Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	app := newWithDependencies(store, mockClock, cfg)

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		Memory:    store,
	}
}
