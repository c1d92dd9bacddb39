package hub

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/protocol"
	"github.com/mcoot/chathub/internal/scheduler"
)

// The commands below are the only work the hub puts on the shared scheduler.
// Each stores its acknowledgement on the command; Execute returns an error only
// for infrastructure faults.

var (
	_ scheduler.Owned = (*loginCommand)(nil)
	_ scheduler.Owned = (*reconnectCommand)(nil)
	_ scheduler.Owned = (*setNicknameCommand)(nil)
	_ scheduler.Owned = (*setPlayerIconCommand)(nil)
)

type loginCommand struct {
	svc    *Service
	connID model.ConnectionID
	req    protocol.ReqLogin
	owner  model.PlayerNo
	ack    protocol.AckLogin
}

func (c *loginCommand) Name() string          { return protocol.MethodLogin }
func (c *loginCommand) Owner() model.PlayerNo { return c.owner }

func (c *loginCommand) Execute(ctx context.Context) error {
	ack, err := c.login(ctx)
	ack.Result, err = settle(err)
	c.ack = ack
	return err
}

func (c *loginCommand) login(ctx context.Context) (protocol.AckLogin, error) {
	s := c.svc
	if strings.TrimSpace(c.req.FpID) == "" {
		return protocol.AckLogin{}, model.ErrInvalidRequest
	}
	if _, ok := s.connections.GetConnectionInfo(c.connID); !ok {
		return protocol.AckLogin{}, model.ErrConnectionNotFound
	}

	now := s.clock.Now()
	fp := fingerprint(c.req.FpID)

	player, err := s.players.FindPlayerByFingerprint(ctx, fp)
	if isNotFound(err) {
		player = &model.Player{Fingerprint: fp, CreatedAt: now, UpdatedAt: now}
		if err := s.players.CreatePlayer(ctx, player); err != nil {
			return protocol.AckLogin{}, err
		}
		s.logger.Info("player created", slog.Int64("player_no", int64(player.No)))
	} else if err != nil {
		return protocol.AckLogin{}, err
	}
	c.owner = player.No

	existing, hadSession := s.sessions.Peek(player.No)
	if hadSession && !existing.LastLoginAt.IsZero() && now.Sub(existing.LastLoginAt) < s.cfg.LoginInterval {
		return protocol.AckLogin{}, model.ErrTooFrequentLogin
	}

	player.LastLoginAt = now
	player.UpdatedAt = now
	if err := s.players.SavePlayer(ctx, player); err != nil {
		return protocol.AckLogin{}, err
	}

	if hadSession && existing.InRoom() {
		if _, err := s.rooms.LeaveChat(ctx, existing); err != nil {
			return protocol.AckLogin{}, err
		}
	}

	// The session is not touched unless the connection can be authenticated
	if err := s.connections.Authenticate(c.connID, player.No); err != nil {
		return protocol.AckLogin{}, err
	}
	sess := s.sessions.Add(c.connID, model.Session{
		PlayerNo:    player.No,
		Nickname:    player.Nickname,
		IconID:      player.IconID,
		LastLoginAt: now,
	})
	if hadSession {
		s.replaceConnection(existing.ConnectionID, c.connID)
	}
	s.appendLoginLog(ctx, sess, false)

	s.logger.Info("player logged in",
		slog.Int64("player_no", int64(player.No)),
		slog.String("connection_id", string(c.connID)),
		slog.Int64("session_offset", sess.Offset))

	return protocol.AckLogin{
		PlayerNo:      player.No,
		Name:          sess.Nickname,
		Icon:          sess.IconID,
		SessionOffset: sess.Offset,
	}, nil
}

type reconnectCommand struct {
	svc    *Service
	connID model.ConnectionID
	req    protocol.ReqReconnect
	ack    protocol.AckReconnect
}

func (c *reconnectCommand) Name() string          { return protocol.MethodReconnect }
func (c *reconnectCommand) Owner() model.PlayerNo { return c.req.PlayerNo }

func (c *reconnectCommand) Execute(ctx context.Context) error {
	ack, err := c.reconnect(ctx)
	ack.Result, err = settle(err)
	c.ack = ack
	return err
}

func (c *reconnectCommand) reconnect(ctx context.Context) (protocol.AckReconnect, error) {
	s := c.svc
	if c.req.PlayerNo <= 0 {
		return protocol.AckReconnect{}, model.ErrInvalidRequest
	}
	rec, ok := s.connections.GetConnectionInfo(c.connID)
	if !ok {
		return protocol.AckReconnect{}, model.ErrConnectionNotFound
	}

	// The session is only rebound once every check that can fail has passed
	prev, ok := s.sessions.Peek(c.req.PlayerNo)
	if !ok || prev.ReserveForDelete {
		return protocol.AckReconnect{}, model.ErrNoSession
	}
	if prev.Offset != c.req.SessionOffset {
		return protocol.AckReconnect{}, model.ErrSessionOffsetMismatch
	}

	if _, err := s.players.FindPlayerByNo(ctx, c.req.PlayerNo); err != nil {
		if isNotFound(err) {
			s.sessions.ReserveRemove(c.req.PlayerNo)
			s.logger.Warn("session without player record reserved for removal",
				slog.Int64("player_no", int64(c.req.PlayerNo)))
		}
		return protocol.AckReconnect{}, err
	}

	if err := s.connections.Authenticate(c.connID, c.req.PlayerNo); err != nil {
		return protocol.AckReconnect{}, err
	}
	sess, err := s.sessions.Reconnect(c.req.PlayerNo, c.req.SessionOffset, c.connID)
	if err != nil {
		s.connections.Restore(rec)
		return protocol.AckReconnect{}, err
	}
	s.replaceConnection(prev.ConnectionID, c.connID)
	s.appendLoginLog(ctx, sess, true)

	s.logger.Info("player reconnected",
		slog.Int64("player_no", int64(sess.PlayerNo)),
		slog.String("connection_id", string(c.connID)),
		slog.Int64("session_offset", sess.Offset))

	return protocol.AckReconnect{
		PlayerInfo: protocol.PlayerInfo{
			PlayerNo: sess.PlayerNo,
			Name:     sess.Nickname,
			Icon:     sess.IconID,
		},
		SessionOffset: sess.Offset,
	}, nil
}

type setNicknameCommand struct {
	svc    *Service
	connID model.ConnectionID
	req    protocol.ReqSetNickname
	owner  model.PlayerNo
	ack    protocol.AckSetNickname
}

func (c *setNicknameCommand) Name() string          { return protocol.MethodSetNickname }
func (c *setNicknameCommand) Owner() model.PlayerNo { return c.owner }

func (c *setNicknameCommand) Execute(ctx context.Context) error {
	ack, err := c.setNickname(ctx)
	ack.Result, err = settle(err)
	c.ack = ack
	return err
}

func (c *setNicknameCommand) setNickname(ctx context.Context) (protocol.AckSetNickname, error) {
	s := c.svc
	name := strings.TrimSpace(c.req.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > s.cfg.MaxNicknameLength {
		return protocol.AckSetNickname{}, model.ErrInvalidNickname
	}

	sess, err := s.sessionFor(c.connID)
	if err != nil {
		return protocol.AckSetNickname{}, err
	}
	c.owner = sess.PlayerNo
	if sess.Nickname == name {
		return protocol.AckSetNickname{Name: name}, nil
	}

	player, err := s.players.FindPlayerByNo(ctx, sess.PlayerNo)
	if err != nil {
		return protocol.AckSetNickname{}, err
	}

	previous := sess.Nickname
	if _, err := s.sessions.Update(sess.PlayerNo, func(cur *model.Session) { cur.Nickname = name }); err != nil {
		return protocol.AckSetNickname{}, err
	}

	player.Nickname = name
	player.UpdatedAt = s.clock.Now()
	if err := s.players.SavePlayer(ctx, player); err != nil {
		_, _ = s.sessions.Update(sess.PlayerNo, func(cur *model.Session) { cur.Nickname = previous })
		return protocol.AckSetNickname{}, err
	}

	return protocol.AckSetNickname{Name: name}, nil
}

type setPlayerIconCommand struct {
	svc    *Service
	connID model.ConnectionID
	req    protocol.ReqSetPlayerIcon
	owner  model.PlayerNo
	ack    protocol.AckSetPlayerIcon
}

func (c *setPlayerIconCommand) Name() string          { return protocol.MethodSetPlayerIcon }
func (c *setPlayerIconCommand) Owner() model.PlayerNo { return c.owner }

func (c *setPlayerIconCommand) Execute(ctx context.Context) error {
	ack, err := c.setIcon(ctx)
	ack.Result, err = settle(err)
	c.ack = ack
	return err
}

func (c *setPlayerIconCommand) setIcon(ctx context.Context) (protocol.AckSetPlayerIcon, error) {
	s := c.svc
	sess, err := s.sessionFor(c.connID)
	if err != nil {
		return protocol.AckSetPlayerIcon{}, err
	}
	c.owner = sess.PlayerNo

	player, err := s.players.FindPlayerByNo(ctx, sess.PlayerNo)
	if err != nil {
		return protocol.AckSetPlayerIcon{}, err
	}

	previous := sess.IconID
	if _, err := s.sessions.Update(sess.PlayerNo, func(cur *model.Session) { cur.IconID = c.req.IconID }); err != nil {
		return protocol.AckSetPlayerIcon{}, err
	}

	player.IconID = c.req.IconID
	player.UpdatedAt = s.clock.Now()
	if err := s.players.SavePlayer(ctx, player); err != nil {
		_, _ = s.sessions.Update(sess.PlayerNo, func(cur *model.Session) { cur.IconID = previous })
		return protocol.AckSetPlayerIcon{}, err
	}

	return protocol.AckSetPlayerIcon{Tid: c.req.IconID}, nil
}
