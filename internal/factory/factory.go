package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mcoot/chathub/internal/api"
	"github.com/mcoot/chathub/internal/config"
	"github.com/mcoot/chathub/internal/dependencies/clock"
	"github.com/mcoot/chathub/internal/realtime"
	"github.com/mcoot/chathub/internal/scheduler"
	"github.com/mcoot/chathub/internal/services/connection"
	"github.com/mcoot/chathub/internal/services/hub"
	"github.com/mcoot/chathub/internal/services/room"
	"github.com/mcoot/chathub/internal/services/session"
	"github.com/mcoot/chathub/internal/storage"
	"github.com/mcoot/chathub/internal/storage/memory"
	redisstorage "github.com/mcoot/chathub/internal/storage/redis"
	"github.com/mcoot/chathub/internal/sweep"
	"github.com/mcoot/chathub/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Default sweep intervals
const (
	DefaultSessionSweepInterval    = 10 * time.Second
	DefaultConnectionSweepInterval = 10 * time.Second
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock

	// Services
	Realtime    *realtime.Hub
	Connections *connection.Registry
	Sessions    *session.Registry
	Rooms       *room.Manager
	Scheduler   *scheduler.Scheduler
	Hub         *hub.Service
	WebSocket   *ws.Server

	// Background sweeps
	SessionSweeper    *sweep.Sweeper
	ConnectionSweeper *sweep.Sweeper

	cfg    Config
	logger *slog.Logger

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	stopped   bool
	sweepers  sync.WaitGroup
}

// Config holds configuration for the application factory.
// Zero values fall back to each component's defaults.
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// ServerID labels fault and login log records
	ServerID string
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config

	Scheduler   scheduler.Config
	Rooms       room.Config
	Sessions    session.Config
	Connections connection.Config
	Hub         hub.Config
	WebSocket   ws.Config

	SessionSweepInterval    time.Duration
	ConnectionSweepInterval time.Duration

	// Diagnostic reports command faults to the error log sink
	Diagnostic bool
	// AdminToken guards the operator API; empty disables the check
	AdminToken string
}

// ConfigFromEnv builds a factory Config from the environment configuration
func ConfigFromEnv(c config.Config, logger *slog.Logger) Config {
	cfg := Config{
		Logger:      logger,
		ServerID:    c.ServerID,
		StorageType: c.StorageType,
		Scheduler: scheduler.Config{
			Name:             "commands",
			WorkerMultiplier: c.WorkerMultiplier,
			QueueSize:        c.QueueSize,
			Policy:           c.Policy(),
		},
		Rooms: room.Config{
			RoomCount:     c.RoomCount,
			TotalCapacity: c.TotalCapacity,
			HistoryLimit:  c.HistoryLimit,
			Policy:        c.Policy(),
		},
		Sessions:    session.Config{TTL: c.SessionTTL},
		Connections: connection.Config{AuthGrace: c.AuthGrace},
		Hub: hub.Config{
			ServerID:      c.ServerID,
			LoginInterval: c.LoginInterval,
		},
		SessionSweepInterval:    c.SessionSweepInterval,
		ConnectionSweepInterval: c.ConnectionSweepInterval,
		Diagnostic:              c.Diagnostic,
		AdminToken:              c.AdminToken,
	}
	if c.StorageType == StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.RedisURL
		cfg.RedisConfig = &redisCfg
	}
	return cfg
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	return newWithDependencies(store, clock.New(), cfg), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.ServerID != "" {
		cfg.Scheduler.ServerID = cfg.ServerID
		if cfg.Hub.ServerID == "" {
			cfg.Hub.ServerID = cfg.ServerID
		}
	}
	if cfg.Diagnostic {
		cfg.Scheduler.FaultReporter = hub.NewFaultLog(store, logger)
	}
	if cfg.SessionSweepInterval <= 0 {
		cfg.SessionSweepInterval = DefaultSessionSweepInterval
	}
	if cfg.ConnectionSweepInterval <= 0 {
		cfg.ConnectionSweepInterval = DefaultConnectionSweepInterval
	}

	rt := realtime.NewHub(logger)
	connections := connection.New(clk, cfg.Connections, logger)
	sessions := session.New(clk, cfg.Sessions, logger)
	rooms := room.New(cfg.Rooms, sessions, rt, clk, logger)
	sched := scheduler.New(cfg.Scheduler, logger)
	hubService := hub.New(cfg.Hub, sched, sessions, connections, rooms, store, store, clk, logger)

	return &App{
		Storage:           store,
		Clock:             clk,
		Realtime:          rt,
		Connections:       connections,
		Sessions:          sessions,
		Rooms:             rooms,
		Scheduler:         sched,
		Hub:               hubService,
		WebSocket:         ws.NewServer(cfg.WebSocket, hubService, rt, logger),
		SessionSweeper:    sweep.New("sessions", cfg.SessionSweepInterval, hubService.SweepSessions, clk, logger),
		ConnectionSweeper: sweep.New("connections", cfg.ConnectionSweepInterval, connections.Sweep, clk, logger),
		cfg:               cfg,
		logger:            logger.With(slog.String("component", "app")),
	}
}

// Handler returns the HTTP handler serving the operator API and the websocket endpoint
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      a.logger,
		ServerID:    a.cfg.Hub.ServerID,
		AdminToken:  a.cfg.AdminToken,
		Diagnostics: a.Hub,
		WebSocket:   a.WebSocket,
	})
}

// Start starts the schedulers and the background sweeps
func (a *App) Start(ctx context.Context) {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if a.cancel != nil || a.stopped {
		return
	}

	a.Scheduler.Start()
	a.Rooms.Start()

	sweepCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	for _, s := range []*sweep.Sweeper{a.SessionSweeper, a.ConnectionSweeper} {
		a.sweepers.Add(1)
		go func() {
			defer a.sweepers.Done()
			s.Run(sweepCtx)
		}()
	}
	a.logger.Info("application started")
}

// Stop stops the sweeps, drains both schedulers, drops every live connection and closes storage.
// Only the first call has any effect.
func (a *App) Stop() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if a.stopped {
		return nil
	}
	a.stopped = true

	if a.cancel != nil {
		a.cancel()
		a.sweepers.Wait()
	}
	a.Scheduler.Stop()
	a.Rooms.Stop()
	dropped := a.Connections.AbortAll()
	a.logger.Info("application stopped", slog.Int("dropped_connections", dropped))
	return a.Storage.Close()
}
