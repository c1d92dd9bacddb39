// Package session holds reconnect-durable player sessions.
//
// Sessions are keyed by player number and live independently of transport connections:
// a disconnect only detaches the session, which is retained until it has been idle for the
// configured TTL. All writes go through the registry lock; callers only ever see copies.
package session

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/chathub/internal/dependencies/clock"
	"github.com/mcoot/chathub/internal/model"
)

// Config holds configuration for the session registry
type Config struct {
	TTL time.Duration
}

// DefaultConfig returns default session registry configuration
func DefaultConfig() Config {
	return Config{
		TTL: 15 * time.Minute,
	}
}

// Registry indexes sessions by player number and by bound connection
type Registry struct {
	clock  clock.Clock
	logger *slog.Logger
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[model.PlayerNo]*model.Session
	byConn   map[model.ConnectionID]model.PlayerNo
}

// New creates a new session Registry
func New(clk clock.Clock, cfg Config, logger *slog.Logger) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Registry{
		clock:    clk,
		logger:   logger.With(slog.String("component", "session-registry")),
		ttl:      cfg.TTL,
		sessions: make(map[model.PlayerNo]*model.Session),
		byConn:   make(map[model.ConnectionID]model.PlayerNo),
	}
}

// Add inserts a session for s.PlayerNo bound to connID, or refreshes the existing one in place.
// A refreshed session keeps its read position and gets the next offset.
func (r *Registry) Add(connID model.ConnectionID, s model.Session) model.Session {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[s.PlayerNo]
	if !ok {
		created := s
		created.ConnectionID = ""
		created.Offset = 1
		created.ReserveForDelete = false
		created.UpdatedAt = now
		r.sessions[s.PlayerNo] = &created
		r.bind(&created, connID)
		return created
	}

	existing.Nickname = s.Nickname
	existing.IconID = s.IconID
	existing.RoomID = s.RoomID
	existing.LastLoginAt = s.LastLoginAt
	existing.Offset++
	existing.ReserveForDelete = false
	existing.UpdatedAt = now
	r.bind(existing, connID)
	return *existing
}

// GetByConnection returns the session bound to connID and slides its TTL
func (r *Registry) GetByConnection(connID model.ConnectionID) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	no, ok := r.byConn[connID]
	if !ok {
		return model.Session{}, false
	}
	s := r.sessions[no]
	s.UpdatedAt = r.clock.Now()
	return *s, true
}

// GetByPlayer returns the session of player no and slides its TTL
func (r *Registry) GetByPlayer(no model.PlayerNo) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[no]
	if !ok {
		return model.Session{}, false
	}
	s.UpdatedAt = r.clock.Now()
	return *s, true
}

// Peek returns the session of player no without touching it
func (r *Registry) Peek(no model.PlayerNo) (model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[no]
	if !ok {
		return model.Session{}, false
	}
	return *s, true
}

// ChangeConnection rebinds player no to newConnID and advances its offset
func (r *Registry) ChangeConnection(no model.PlayerNo, newConnID model.ConnectionID) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[no]
	if !ok {
		return model.Session{}, model.ErrNoSession
	}
	r.bind(s, newConnID)
	s.UpdatedAt = r.clock.Now()
	s.Offset++
	return *s, nil
}

// Reconnect rebinds player no to newConnID if offset matches the session's current offset.
// On any failure the session is left unchanged.
func (r *Registry) Reconnect(no model.PlayerNo, offset int64, newConnID model.ConnectionID) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[no]
	if !ok || s.ReserveForDelete {
		return model.Session{}, model.ErrNoSession
	}
	if s.Offset != offset {
		return model.Session{}, model.ErrSessionOffsetMismatch
	}
	r.bind(s, newConnID)
	s.UpdatedAt = r.clock.Now()
	s.Offset++
	return *s, nil
}

// Detach drops the binding of connID. The session itself is kept.
func (r *Registry) Detach(connID model.ConnectionID) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	no, ok := r.byConn[connID]
	if !ok {
		return model.Session{}, false
	}
	delete(r.byConn, connID)

	s := r.sessions[no]
	s.ConnectionID = ""
	s.UpdatedAt = r.clock.Now()
	return *s, true
}

// Update applies fn to the session of player no under the registry lock.
// fn may not change the player number or connection binding.
func (r *Registry) Update(no model.PlayerNo, fn func(*model.Session)) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[no]
	if !ok {
		return model.Session{}, model.ErrNoSession
	}
	connID := s.ConnectionID
	fn(s)
	s.PlayerNo = no
	s.ConnectionID = connID
	s.UpdatedAt = r.clock.Now()
	return *s, nil
}

// ReserveRemove marks the session for removal on the next sweep
func (r *Registry) ReserveRemove(no model.PlayerNo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[no]
	if !ok {
		return false
	}
	s.ReserveForDelete = true
	return true
}

// GetSessionCount returns the number of sessions
func (r *Registry) GetSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// GetSessionList returns a snapshot of every session ordered by player number
func (r *Registry) GetSessionList() []model.Session {
	r.mu.RLock()
	list := make([]model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, *s)
	}
	r.mu.RUnlock()

	slices.SortFunc(list, func(a, b model.Session) int {
		return cmp.Compare(a.PlayerNo, b.PlayerNo)
	})
	return list
}

// RemoveAll deletes every session and returns what was removed
func (r *Registry) RemoveAll() []model.Session {
	r.mu.Lock()
	removed := make([]model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		removed = append(removed, *s)
	}
	r.sessions = make(map[model.PlayerNo]*model.Session)
	r.byConn = make(map[model.ConnectionID]model.PlayerNo)
	r.mu.Unlock()

	r.logger.Info("all sessions removed", slog.Int("count", len(removed)))
	return removed
}

// Sweep removes sessions that are reserved for deletion or idle longer than the TTL
func (r *Registry) Sweep(_ context.Context, now time.Time) ([]model.Session, error) {
	var removed []model.Session

	r.mu.Lock()
	for no, s := range r.sessions {
		if !s.ReserveForDelete && now.Sub(s.UpdatedAt) <= r.ttl {
			continue
		}
		if s.ConnectionID != "" {
			delete(r.byConn, s.ConnectionID)
		}
		delete(r.sessions, no)
		removed = append(removed, *s)
	}
	r.mu.Unlock()

	for _, s := range removed {
		r.logger.Info("session expired",
			slog.Int64("player_no", int64(s.PlayerNo)),
			slog.Bool("reserved", s.ReserveForDelete),
			slog.Time("updated_at", s.UpdatedAt),
		)
	}
	return removed, nil
}

// bind points connID at s, releasing any previous binding of either side.
// Caller must hold r.mu.
func (r *Registry) bind(s *model.Session, connID model.ConnectionID) {
	if s.ConnectionID != "" && s.ConnectionID != connID {
		delete(r.byConn, s.ConnectionID)
	}
	if other, ok := r.byConn[connID]; ok && other != s.PlayerNo {
		if prev, ok := r.sessions[other]; ok {
			prev.ConnectionID = ""
		}
	}
	s.ConnectionID = connID
	if connID != "" {
		r.byConn[connID] = s.PlayerNo
	}
}
