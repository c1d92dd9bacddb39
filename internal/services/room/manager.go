// Package room places players into capacity-bounded chat rooms and keeps each room's history.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/chathub/internal/dependencies/clock"
	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/protocol"
	"github.com/mcoot/chathub/internal/scheduler"
)

// Broadcaster manages room groups and delivers room events
type Broadcaster interface {
	AddToGroup(group string, id model.ConnectionID)
	RemoveFromGroup(group string, id model.ConnectionID)
	Broadcast(group, method string, payload any, exclude ...model.ConnectionID) error
}

// SessionUpdater is the session write path used to record room membership
type SessionUpdater interface {
	Update(no model.PlayerNo, fn func(*model.Session)) (model.Session, error)
}

// Config holds configuration for the room manager
type Config struct {
	RoomCount     int
	TotalCapacity int
	HistoryLimit  int
	EvictRetries  int

	QueueSize int
	Policy    scheduler.Policy
}

// DefaultConfig returns default room configuration
func DefaultConfig() Config {
	return Config{
		RoomCount:     10,
		TotalCapacity: 1000,
		HistoryLimit:  50,
		EvictRetries:  10,
		QueueSize:     1024,
		Policy:        scheduler.PolicyBlock,
	}
}

// Manager owns every chat room. Mutations run on a private scheduler with one worker per room.
type Manager struct {
	cfg      Config
	capacity int
	rooms    []*room

	scheduler   *scheduler.Scheduler
	sessions    SessionUpdater
	broadcaster Broadcaster
	clock       clock.Clock
	logger      *slog.Logger
}

// New creates a new room Manager
func New(cfg Config, sessions SessionUpdater, broadcaster Broadcaster, clk clock.Clock, logger *slog.Logger) *Manager {
	defaults := DefaultConfig()
	if cfg.RoomCount <= 0 {
		cfg.RoomCount = defaults.RoomCount
	}
	if cfg.TotalCapacity <= 0 {
		cfg.TotalCapacity = defaults.TotalCapacity
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	if cfg.EvictRetries <= 0 {
		cfg.EvictRetries = defaults.EvictRetries
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}

	capacity := cfg.TotalCapacity / cfg.RoomCount
	rooms := make([]*room, cfg.RoomCount)
	for i := range rooms {
		rooms[i] = newRoom(model.RoomID(i+1), capacity)
	}

	return &Manager{
		cfg:      cfg,
		capacity: capacity,
		rooms:    rooms,
		scheduler: scheduler.New(scheduler.Config{
			Name:      "rooms",
			Workers:   cfg.RoomCount,
			QueueSize: cfg.QueueSize,
			Policy:    cfg.Policy,
		}, logger),
		sessions:    sessions,
		broadcaster: broadcaster,
		clock:       clk,
		logger:      logger.With(slog.String("component", "room-manager")),
	}
}

// Start starts the room scheduler
func (m *Manager) Start() {
	m.scheduler.Start()
}

// Stop stops the room scheduler
func (m *Manager) Stop() {
	m.scheduler.Stop()
}

// SchedulerStats returns statistics for the room scheduler
func (m *Manager) SchedulerStats() scheduler.Stats {
	return m.scheduler.Stats()
}

// Capacity returns the per-room user limit
func (m *Manager) Capacity() int {
	return m.capacity
}

// GetMaxRoomCount returns the number of rooms
func (m *Manager) GetMaxRoomCount() int {
	return len(m.rooms)
}

// FindCandidateRoom returns the lowest-numbered room with space
func (m *Manager) FindCandidateRoom() (model.RoomID, bool) {
	for _, r := range m.rooms {
		if r.hasSpace() {
			return r.id, true
		}
	}
	return model.NoRoom, false
}

// CanEnter reports whether room id exists and has space
func (m *Manager) CanEnter(id model.RoomID) bool {
	r, err := m.room(id)
	if err != nil {
		return false
	}
	return r.hasSpace()
}

// GetRoomUserCount returns the occupancy of room id
func (m *Manager) GetRoomUserCount(id model.RoomID) (int, error) {
	r, err := m.room(id)
	if err != nil {
		return 0, err
	}
	return r.users(), nil
}

// GetRoomUserCounts returns the occupancy of every room
func (m *Manager) GetRoomUserCounts() []model.RoomCount {
	counts := make([]model.RoomCount, 0, len(m.rooms))
	for _, r := range m.rooms {
		counts = append(counts, model.RoomCount{
			RoomID:    r.id,
			UserCount: r.users(),
			Capacity:  m.capacity,
		})
	}
	return counts
}

// EnterChat takes a seat in room id for sess and notifies the room's other members
func (m *Manager) EnterChat(ctx context.Context, sess model.Session, id model.RoomID) error {
	r, err := m.room(id)
	if err != nil {
		return err
	}

	return m.do(ctx, "room.enter", func(ctx context.Context) error {
		if !r.tryEnter() {
			return model.ErrRoomFull
		}

		group := id.GroupName()
		m.broadcaster.AddToGroup(group, sess.ConnectionID)

		updated, err := m.sessions.Update(sess.PlayerNo, func(s *model.Session) {
			s.RoomID = id
		})
		if err != nil {
			m.broadcaster.RemoveFromGroup(group, sess.ConnectionID)
			r.leave()
			return err
		}

		m.logger.Info("player entered room",
			slog.Int64("player_no", int64(sess.PlayerNo)),
			slog.Int("room_id", int(id)),
			slog.Int("user_count", r.users()))

		m.notify(group, model.MessageEnter, updated, sess.ConnectionID)
		return nil
	})
}

// LeaveChat releases the seat held by sess and returns the room left.
// It is a no-op returning NoRoom when sess is not in a room.
func (m *Manager) LeaveChat(ctx context.Context, sess model.Session) (model.RoomID, error) {
	var left model.RoomID

	err := m.do(ctx, "room.leave", func(ctx context.Context) error {
		current, err := m.sessions.Update(sess.PlayerNo, func(s *model.Session) {
			left = s.RoomID
			s.RoomID = model.NoRoom
		})
		if errors.Is(err, model.ErrNoSession) {
			left = sess.RoomID
			current = sess
		} else if err != nil {
			return err
		}

		if left == model.NoRoom {
			return nil
		}
		r, err := m.room(left)
		if err != nil {
			return err
		}

		group := left.GroupName()
		m.broadcaster.RemoveFromGroup(group, sess.ConnectionID)
		if !r.leave() {
			m.logger.Warn("room count already zero on leave",
				slog.Int64("player_no", int64(sess.PlayerNo)),
				slog.Int("room_id", int(left)))
		}

		m.logger.Info("player left room",
			slog.Int64("player_no", int64(sess.PlayerNo)),
			slog.Int("room_id", int(left)),
			slog.Int("user_count", r.users()))

		m.notify(group, model.MessageLeave, current)
		return nil
	})
	if err != nil {
		return model.NoRoom, err
	}
	return left, nil
}

// AddMessage appends msg to room id's history and returns it with its sequence id
func (m *Manager) AddMessage(ctx context.Context, id model.RoomID, msg model.Message) (model.Message, error) {
	r, err := m.room(id)
	if err != nil {
		return model.Message{}, err
	}

	var stored model.Message
	err = m.do(ctx, "room.add_message", func(ctx context.Context) error {
		stored = m.store(r, msg)
		return nil
	})
	if err != nil {
		return model.Message{}, err
	}
	return stored, nil
}

// PublishMessage appends msg to room id's history and sends it to every member of the room
func (m *Manager) PublishMessage(ctx context.Context, id model.RoomID, msg model.Message) (model.Message, error) {
	r, err := m.room(id)
	if err != nil {
		return model.Message{}, err
	}

	var stored model.Message
	err = m.do(ctx, "room.publish", func(ctx context.Context) error {
		stored = m.store(r, msg)
		bc := protocol.BCRecvChatRoomMessage{
			Infos: []protocol.ChatInfo{protocol.ChatInfoFromMessage(stored)},
		}
		if err := m.broadcaster.Broadcast(id.GroupName(), protocol.MethodRecvChatRoomMessage, bc); err != nil {
			m.logger.Error("failed to broadcast chat message",
				slog.Int("room_id", int(id)),
				slog.Any("error", err))
		}
		return nil
	})
	if err != nil {
		return model.Message{}, err
	}
	return stored, nil
}

// GetMessages returns room id's buffered messages newer than lastReadID, oldest first
func (m *Manager) GetMessages(ctx context.Context, id model.RoomID, lastReadID int64) ([]model.Message, error) {
	r, err := m.room(id)
	if err != nil {
		return nil, err
	}

	var msgs []model.Message
	err = m.do(ctx, "room.get_messages", func(ctx context.Context) error {
		msgs = r.since(lastReadID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (m *Manager) room(id model.RoomID) (*room, error) {
	if id < 1 || int(id) > len(m.rooms) {
		return nil, fmt.Errorf("%w: %d", model.ErrRoomNotAvailable, id)
	}
	return m.rooms[id-1], nil
}

func (m *Manager) store(r *room, msg model.Message) model.Message {
	if msg.Type == 0 {
		msg.Type = model.MessageSend
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.clock.Now()
	}
	return r.append(msg, m.cfg.HistoryLimit, m.cfg.EvictRetries)
}

// notify sends an enter or leave notification about sess to group
func (m *Manager) notify(group string, typ model.MessageType, sess model.Session, exclude ...model.ConnectionID) {
	noti := protocol.BCRecvChatRoomNoti{
		Infos: []protocol.ChatInfo{protocol.ChatInfoFromMessage(model.Message{
			Type:      typ,
			PlayerNo:  sess.PlayerNo,
			Nickname:  sess.Nickname,
			IconID:    sess.IconID,
			Timestamp: m.clock.Now(),
		})},
	}
	if err := m.broadcaster.Broadcast(group, protocol.MethodRecvChatRoomNoti, noti, exclude...); err != nil {
		m.logger.Error("failed to broadcast room notification",
			slog.String("group", group),
			slog.String("type", typ.String()),
			slog.Any("error", err))
	}
}

// do runs fn on the room scheduler and waits for it. Protocol errors are handed
// back to the caller without being counted as scheduler failures. When do fails
// because ctx ended, fn may still be running, so callers must not read what fn writes.
func (m *Manager) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var result error
	err := m.scheduler.Do(ctx, scheduler.Func(name, func(ctx context.Context) error {
		result = fn(ctx)
		if result != nil && !model.IsProtocolError(result) {
			return result
		}
		return nil
	}))
	if err != nil {
		return err
	}
	return result
}
