package hub

import (
	"context"
	"log/slog"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/scheduler"
)

// Operator diagnostics

func (s *Service) SessionCount() int {
	return s.sessions.GetSessionCount()
}

func (s *Service) ConnectionCount() int {
	return s.connections.GetConnectionCount()
}

func (s *Service) Sessions() []model.Session {
	return s.sessions.GetSessionList()
}

func (s *Service) RoomUserCounts() []model.RoomCount {
	return s.rooms.GetRoomUserCounts()
}

func (s *Service) RoomUserCount(id model.RoomID) (model.RoomCount, error) {
	n, err := s.rooms.GetRoomUserCount(id)
	if err != nil {
		return model.RoomCount{}, err
	}
	return model.RoomCount{RoomID: id, UserCount: n, Capacity: s.rooms.Capacity()}, nil
}

// SchedulerStats returns stats for the command scheduler and the room scheduler
func (s *Service) SchedulerStats() []scheduler.Stats {
	return []scheduler.Stats{s.scheduler.Stats(), s.rooms.SchedulerStats()}
}

// ResetSessions releases every room seat and removes all sessions.
// Live connections stay open; their next command gets NoSession.
func (s *Service) ResetSessions(ctx context.Context) int {
	for _, sess := range s.sessions.GetSessionList() {
		if !sess.InRoom() {
			continue
		}
		if _, err := s.rooms.LeaveChat(ctx, sess); err != nil {
			s.logger.Error("failed to leave room during reset",
				slog.Int64("player_no", int64(sess.PlayerNo)),
				slog.Any("error", err))
		}
	}
	removed := s.sessions.RemoveAll()
	s.logger.Warn("sessions reset", slog.Int("removed", len(removed)))
	return len(removed)
}
