// Package connection tracks live transport connections and reaps those that never authenticate.
package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/chathub/internal/dependencies/clock"
	"github.com/mcoot/chathub/internal/model"
)

// Conn is the transport handle the registry can abort
type Conn interface {
	Abort()
}

// Config holds configuration for the connection registry
type Config struct {
	// AuthGrace is how long a new connection may stay unauthenticated
	AuthGrace time.Duration
}

// DefaultConfig returns default connection registry configuration
func DefaultConfig() Config {
	return Config{
		AuthGrace: 5 * time.Second,
	}
}

type entry struct {
	record model.ConnectionRecord
	conn   Conn
}

// Registry maps connection ids to connection records
type Registry struct {
	clock  clock.Clock
	logger *slog.Logger
	grace  time.Duration

	mu      sync.RWMutex
	entries map[model.ConnectionID]*entry
}

// New creates a new connection Registry
func New(clk clock.Clock, cfg Config, logger *slog.Logger) *Registry {
	if cfg.AuthGrace <= 0 {
		cfg.AuthGrace = DefaultConfig().AuthGrace
	}
	return &Registry{
		clock:   clk,
		logger:  logger.With(slog.String("component", "connection-registry")),
		grace:   cfg.AuthGrace,
		entries: make(map[model.ConnectionID]*entry),
	}
}

// Add registers a new unauthenticated connection. An existing record with the same id is replaced.
func (r *Registry) Add(id model.ConnectionID, conn Conn) model.ConnectionRecord {
	now := r.clock.Now()
	rec := model.ConnectionRecord{
		ID:           id,
		AuthDeadline: now.Add(r.grace),
		ConnectedAt:  now,
	}

	r.mu.Lock()
	r.entries[id] = &entry{record: rec, conn: conn}
	r.mu.Unlock()

	r.logger.Debug("connection added", slog.String("connection_id", string(id)))
	return rec
}

// Remove deletes the connection record, reporting whether it existed
func (r *Registry) Remove(id model.ConnectionID) bool {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	return ok
}

// RemoveAll deletes every record and returns how many were removed
func (r *Registry) RemoveAll() int {
	r.mu.Lock()
	n := len(r.entries)
	r.entries = make(map[model.ConnectionID]*entry)
	r.mu.Unlock()
	return n
}

// AbortAll aborts and forgets every tracked connection
func (r *Registry) AbortAll() int {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.entries))
	for _, e := range r.entries {
		conns = append(conns, e.conn)
	}
	r.entries = make(map[model.ConnectionID]*entry)
	r.mu.Unlock()

	for _, c := range conns {
		c.Abort()
	}
	return len(conns)
}

// GetConnectionInfo returns a copy of the record for id
func (r *Registry) GetConnectionInfo(id model.ConnectionID) (model.ConnectionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return model.ConnectionRecord{}, false
	}
	return e.record, true
}

// GetConnectionCount returns the number of tracked connections
func (r *Registry) GetConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Authenticate binds playerNo to the connection and opts it out of auth reaping
func (r *Registry) Authenticate(id model.ConnectionID, playerNo model.PlayerNo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return model.ErrConnectionNotFound
	}
	e.record.PlayerNo = playerNo
	e.record.AuthDeadline = time.Time{}
	return nil
}

// Restore puts back the player binding and auth deadline captured in rec.
// It is a no-op once the connection is gone.
func (r *Registry) Restore(rec model.ConnectionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[rec.ID]; ok {
		e.record.PlayerNo = rec.PlayerNo
		e.record.AuthDeadline = rec.AuthDeadline
	}
}

// Kick aborts the transport and removes the record
func (r *Registry) Kick(id model.ConnectionID) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if e.conn != nil {
		e.conn.Abort()
	}
	r.logger.Info("connection kicked",
		slog.String("connection_id", string(id)),
		slog.Int64("player_no", int64(e.record.PlayerNo)),
	)
	return true
}

// Sweep aborts and removes every connection whose auth deadline passed before now
func (r *Registry) Sweep(_ context.Context, now time.Time) (int, error) {
	var expired []*entry

	r.mu.Lock()
	for id, e := range r.entries {
		if e.record.Expired(now) {
			expired = append(expired, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		if e.conn != nil {
			e.conn.Abort()
		}
		r.logger.Info("unauthenticated connection reaped",
			slog.String("connection_id", string(e.record.ID)),
			slog.Time("auth_deadline", e.record.AuthDeadline),
		)
	}
	return len(expired), nil
}
