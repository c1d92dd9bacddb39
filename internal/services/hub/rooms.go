package hub

import (
	"context"
	"errors"
	"strings"

	"github.com/mcoot/chathub/internal/model"
)

func (s *Service) enterChatRoom(ctx context.Context, connID model.ConnectionID, requested model.RoomID) (model.RoomID, []model.Message, error) {
	sess, err := s.sessionFor(connID)
	if err != nil {
		return model.NoRoom, nil, err
	}

	if requested < 0 || int(requested) > s.rooms.GetMaxRoomCount() {
		return model.NoRoom, nil, model.ErrRoomNotAvailable
	}
	if requested != model.NoRoom {
		if requested == sess.RoomID {
			return model.NoRoom, nil, model.ErrSameRoom
		}
		if !s.rooms.CanEnter(requested) {
			return model.NoRoom, nil, model.ErrRoomFull
		}
	}

	target := requested
	if target == model.NoRoom {
		candidate, ok := s.rooms.FindCandidateRoom()
		if !ok {
			return model.NoRoom, nil, model.ErrNoRoomAvailable
		}
		if candidate == sess.RoomID {
			return model.NoRoom, nil, model.ErrSameRoom
		}
		target = candidate
	}

	if sess.InRoom() {
		if _, err := s.rooms.LeaveChat(ctx, sess); err != nil {
			return model.NoRoom, nil, err
		}
		if sess, err = s.sessionFor(connID); err != nil {
			return model.NoRoom, nil, err
		}
	}

	target, err = s.enter(ctx, sess, target, requested == model.NoRoom)
	if err != nil {
		return model.NoRoom, nil, err
	}

	var lastRead int64
	if sess.LastReadRoomID == target {
		lastRead = sess.LastReadMessageID
	}
	msgs, err := s.rooms.GetMessages(ctx, target, lastRead)
	if err != nil {
		return model.NoRoom, nil, err
	}
	s.markRead(sess.PlayerNo, target, msgs)

	return target, msgs, nil
}

// enter takes a seat in target. Auto placement moves on to the next candidate
// when another player filled target first.
func (s *Service) enter(ctx context.Context, sess model.Session, target model.RoomID, auto bool) (model.RoomID, error) {
	for attempt := 1; ; attempt++ {
		err := s.rooms.EnterChat(ctx, sess, target)
		if err == nil {
			return target, nil
		}
		if !auto || !errors.Is(err, model.ErrRoomFull) {
			return model.NoRoom, err
		}
		if attempt >= s.rooms.GetMaxRoomCount() {
			return model.NoRoom, model.ErrNoRoomAvailable
		}

		next, ok := s.rooms.FindCandidateRoom()
		if !ok {
			return model.NoRoom, model.ErrNoRoomAvailable
		}
		target = next
	}
}

func (s *Service) sendChatRoom(ctx context.Context, connID model.ConnectionID, text string) error {
	sess, err := s.sessionFor(connID)
	if err != nil {
		return err
	}
	if !sess.InRoom() {
		return model.ErrNotInRoom
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return model.ErrInvalidMessage
	}
	if runes := []rune(text); len(runes) > s.cfg.MaxMessageLength {
		text = string(runes[:s.cfg.MaxMessageLength])
	}

	msg, err := s.rooms.PublishMessage(ctx, sess.RoomID, model.Message{
		Type:      model.MessageSend,
		PlayerNo:  sess.PlayerNo,
		Nickname:  sess.Nickname,
		IconID:    sess.IconID,
		Text:      text,
		Timestamp: s.clock.Now(),
	})
	if err != nil {
		return err
	}
	s.markRead(sess.PlayerNo, sess.RoomID, []model.Message{msg})
	return nil
}

// markRead advances the player's read position in roomID past msgs
func (s *Service) markRead(no model.PlayerNo, roomID model.RoomID, msgs []model.Message) {
	_, _ = s.sessions.Update(no, func(cur *model.Session) {
		if cur.LastReadRoomID != roomID {
			cur.LastReadRoomID = roomID
			cur.LastReadMessageID = 0
		}
		for _, m := range msgs {
			if m.ID > cur.LastReadMessageID {
				cur.LastReadMessageID = m.ID
			}
		}
	})
}
