// Package hub implements the player-facing chat commands on top of the session,
// connection and room services.
package hub

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/mcoot/chathub/internal/dependencies/clock"
	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/protocol"
	"github.com/mcoot/chathub/internal/scheduler"
	"github.com/mcoot/chathub/internal/services/connection"
	"github.com/mcoot/chathub/internal/services/room"
	"github.com/mcoot/chathub/internal/services/session"
	"github.com/mcoot/chathub/internal/storage"
)

// Config holds configuration for the hub service
type Config struct {
	ServerID string
	// LoginInterval is the minimum time between two logins of the same player
	LoginInterval     time.Duration
	MaxNicknameLength int
	MaxMessageLength  int
}

// DefaultConfig returns default hub configuration
func DefaultConfig() Config {
	return Config{
		ServerID:          "chathub",
		LoginInterval:     5 * time.Second,
		MaxNicknameLength: 20,
		MaxMessageLength:  200,
	}
}

// Service handles chat commands for connected players
type Service struct {
	cfg         Config
	scheduler   *scheduler.Scheduler
	sessions    *session.Registry
	connections *connection.Registry
	rooms       *room.Manager
	players     storage.PlayerRepository
	logs        storage.LogSink
	clock       clock.Clock
	logger      *slog.Logger
}

// New creates a new hub Service
func New(
	cfg Config,
	sched *scheduler.Scheduler,
	sessions *session.Registry,
	connections *connection.Registry,
	rooms *room.Manager,
	players storage.PlayerRepository,
	logs storage.LogSink,
	clk clock.Clock,
	logger *slog.Logger,
) *Service {
	defaults := DefaultConfig()
	if cfg.ServerID == "" {
		cfg.ServerID = defaults.ServerID
	}
	if cfg.LoginInterval < 0 {
		cfg.LoginInterval = 0
	}
	if cfg.MaxNicknameLength <= 0 {
		cfg.MaxNicknameLength = defaults.MaxNicknameLength
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = defaults.MaxMessageLength
	}
	return &Service{
		cfg:         cfg,
		scheduler:   sched,
		sessions:    sessions,
		connections: connections,
		rooms:       rooms,
		players:     players,
		logs:        logs,
		clock:       clk,
		logger:      logger.With(slog.String("component", "hub")),
	}
}

// Connection lifecycle

// OnConnected registers a new transport connection
func (s *Service) OnConnected(connID model.ConnectionID, conn connection.Conn) {
	s.connections.Add(connID, conn)
}

// OnDisconnected releases the room seat held through connID, detaches its session
// and forgets the connection. The session itself is kept for reconnects.
func (s *Service) OnDisconnected(ctx context.Context, connID model.ConnectionID) {
	if sess, ok := s.sessions.GetByConnection(connID); ok {
		if sess.InRoom() {
			if _, err := s.rooms.LeaveChat(ctx, sess); err != nil {
				s.logger.Error("failed to leave room on disconnect",
					slog.Int64("player_no", int64(sess.PlayerNo)),
					slog.Any("error", err))
			}
		}
		s.sessions.Detach(connID)
		s.logger.Info("session detached",
			slog.Int64("player_no", int64(sess.PlayerNo)),
			slog.String("connection_id", string(connID)))
	}
	s.connections.Remove(connID)
}

// Commands run on the shared scheduler

// Login authenticates connID as the player identified by req.FpID, creating the player if needed
func (s *Service) Login(ctx context.Context, connID model.ConnectionID, req protocol.ReqLogin) (protocol.AckLogin, error) {
	cmd := &loginCommand{svc: s, connID: connID, req: req}
	if result, err := s.submit(ctx, cmd); err != nil || !result.OK() {
		return protocol.AckLogin{Result: result}, err
	}
	return cmd.ack, nil
}

// Reconnect resumes an existing session on connID
func (s *Service) Reconnect(ctx context.Context, connID model.ConnectionID, req protocol.ReqReconnect) (protocol.AckReconnect, error) {
	cmd := &reconnectCommand{svc: s, connID: connID, req: req}
	if result, err := s.submit(ctx, cmd); err != nil || !result.OK() {
		return protocol.AckReconnect{Result: result}, err
	}
	return cmd.ack, nil
}

// SetNickname changes the caller's nickname
func (s *Service) SetNickname(ctx context.Context, connID model.ConnectionID, req protocol.ReqSetNickname) (protocol.AckSetNickname, error) {
	cmd := &setNicknameCommand{svc: s, connID: connID, req: req}
	if result, err := s.submit(ctx, cmd); err != nil || !result.OK() {
		return protocol.AckSetNickname{Result: result}, err
	}
	return cmd.ack, nil
}

// SetPlayerIcon changes the caller's icon
func (s *Service) SetPlayerIcon(ctx context.Context, connID model.ConnectionID, req protocol.ReqSetPlayerIcon) (protocol.AckSetPlayerIcon, error) {
	cmd := &setPlayerIconCommand{svc: s, connID: connID, req: req}
	if result, err := s.submit(ctx, cmd); err != nil || !result.OK() {
		return protocol.AckSetPlayerIcon{Result: result}, err
	}
	return cmd.ack, nil
}

// submit runs cmd on the shared scheduler. A full or stopped scheduler is reported
// as a protocol result; anything else that fails the command is an infrastructure fault.
func (s *Service) submit(ctx context.Context, cmd scheduler.Command) (protocol.Result, error) {
	err := s.scheduler.Do(ctx, cmd)
	if err == nil {
		return protocol.ResultOf(nil), nil
	}
	if model.IsProtocolError(err) {
		return protocol.ResultOf(err), nil
	}
	return protocol.Result{RetCode: model.RetSystemError}, err
}

// Room commands

// EnterChatRoom moves the caller into req.RoomID, or the first room with space when it is 0
func (s *Service) EnterChatRoom(ctx context.Context, connID model.ConnectionID, req protocol.ReqEnterChatRoom) (protocol.AckEnterChatRoom, error) {
	roomID, msgs, err := s.enterChatRoom(ctx, connID, req.RoomID)
	result, err := settle(err)
	if err != nil || !result.OK() {
		return protocol.AckEnterChatRoom{Result: result, Infos: []protocol.ChatInfo{}}, err
	}
	return protocol.AckEnterChatRoom{
		Result: result,
		RoomID: roomID,
		Infos:  protocol.ChatInfosFromMessages(msgs),
	}, nil
}

// SendChatRoom sends a chat message to the caller's room
func (s *Service) SendChatRoom(ctx context.Context, connID model.ConnectionID, req protocol.ReqSendChatRoom) (protocol.AckSendChatRoom, error) {
	result, err := settle(s.sendChatRoom(ctx, connID, req.Msg))
	return protocol.AckSendChatRoom{Result: result}, err
}

// LeaveChatRoom leaves the caller's room, if any
func (s *Service) LeaveChatRoom(ctx context.Context, connID model.ConnectionID, _ protocol.ReqLeaveChatRoom) (protocol.AckLeaveChatRoom, error) {
	sess, err := s.sessionFor(connID)
	if err != nil {
		result, err := settle(err)
		return protocol.AckLeaveChatRoom{Result: result}, err
	}
	left, err := s.rooms.LeaveChat(ctx, sess)
	result, err := settle(err)
	return protocol.AckLeaveChatRoom{Result: result, RoomID: left}, err
}

// Session sweeping

// SweepSessions removes expired sessions and releases the room seats they held
func (s *Service) SweepSessions(ctx context.Context, now time.Time) (int, error) {
	removed, err := s.sessions.Sweep(ctx, now)
	s.ReleaseExpired(ctx, removed)
	return len(removed), err
}

// ReleaseExpired releases the room seats of sessions that were removed from the registry
func (s *Service) ReleaseExpired(ctx context.Context, expired []model.Session) {
	for _, sess := range expired {
		if !sess.InRoom() {
			continue
		}
		if _, err := s.rooms.LeaveChat(ctx, sess); err != nil {
			s.logger.Error("failed to release room seat of expired session",
				slog.Int64("player_no", int64(sess.PlayerNo)),
				slog.Int("room_id", int(sess.RoomID)),
				slog.Any("error", err))
		}
	}
}

// helpers

func (s *Service) sessionFor(connID model.ConnectionID) (model.Session, error) {
	sess, ok := s.sessions.GetByConnection(connID)
	if !ok {
		return model.Session{}, model.ErrNoSession
	}
	return sess, nil
}

func (s *Service) appendLoginLog(ctx context.Context, sess model.Session, reconnect bool) {
	err := s.logs.AppendLoginLog(ctx, model.LoginLog{
		PlayerNo:     sess.PlayerNo,
		ConnectionID: sess.ConnectionID,
		ServerID:     s.cfg.ServerID,
		Reconnect:    reconnect,
		At:           s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn("failed to append login log",
			slog.Int64("player_no", int64(sess.PlayerNo)),
			slog.Any("error", err))
	}
}

// replaceConnection kicks the connection previously bound to a session if it differs from connID
func (s *Service) replaceConnection(prev, connID model.ConnectionID) {
	if prev == "" || prev == connID {
		return
	}
	s.connections.Kick(prev)
}

// settle splits an operation error into the result sent to the client and an infrastructure fault
func settle(err error) (protocol.Result, error) {
	if err != nil && !model.IsProtocolError(err) {
		return protocol.Result{RetCode: model.RetSystemError}, err
	}
	return protocol.ResultOf(err), nil
}

// fingerprint hashes an identity token so raw tokens are never stored
func fingerprint(fpID string) string {
	sum := blake2b.Sum256([]byte(fpID))
	return hex.EncodeToString(sum[:])
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrPlayerNotFound)
}
