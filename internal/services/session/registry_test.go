package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chathub/internal/dependencies/mocks"
	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	clock    *mocks.MockClock
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = New(s.clock, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *RegistrySuite) addPlayer(no model.PlayerNo, connID model.ConnectionID) model.Session {
	return s.registry.Add(connID, model.Session{PlayerNo: no, Nickname: "p"})
}

// Add tests

func (s *RegistrySuite) TestAddNewSessionStartsAtOffsetOne() {
	sess := s.addPlayer(1, "c1")

	s.Equal(int64(1), sess.Offset)
	s.Equal(model.ConnectionID("c1"), sess.ConnectionID)
	s.Equal(s.clock.Now(), sess.UpdatedAt)
	s.Equal(1, s.registry.GetSessionCount())
}

func (s *RegistrySuite) TestAddExistingSessionUpdatesInPlace() {
	s.addPlayer(1, "c1")
	s.Require().True(s.registry.ReserveRemove(1))

	sess := s.registry.Add("c2", model.Session{PlayerNo: 1, Nickname: "renamed", IconID: 4})

	s.Equal(int64(2), sess.Offset)
	s.Equal("renamed", sess.Nickname)
	s.Equal(uint32(4), sess.IconID)
	s.False(sess.ReserveForDelete)
	s.Equal(1, s.registry.GetSessionCount())

	_, ok := s.registry.GetByConnection("c1")
	s.False(ok, "old binding should be dropped")
	got, ok := s.registry.GetByConnection("c2")
	s.Require().True(ok)
	s.Equal(model.PlayerNo(1), got.PlayerNo)
}

func (s *RegistrySuite) TestAddKeepsReadPosition() {
	s.addPlayer(1, "c1")
	_, err := s.registry.Update(1, func(sess *model.Session) {
		sess.LastReadRoomID = 3
		sess.LastReadMessageID = 17
	})
	s.Require().NoError(err)

	sess := s.addPlayer(1, "c2")
	s.Equal(model.RoomID(3), sess.LastReadRoomID)
	s.Equal(int64(17), sess.LastReadMessageID)
}

func (s *RegistrySuite) TestConnectionMapsToOnePlayer() {
	s.addPlayer(1, "shared")
	s.addPlayer(2, "shared")

	got, ok := s.registry.GetByConnection("shared")
	s.Require().True(ok)
	s.Equal(model.PlayerNo(2), got.PlayerNo)

	first, ok := s.registry.Peek(1)
	s.Require().True(ok)
	s.False(first.Attached())
}

// Lookup tests

func (s *RegistrySuite) TestGetByPlayerSlidesTTL() {
	s.addPlayer(1, "c1")
	s.clock.Advance(time.Minute)

	got, ok := s.registry.GetByPlayer(1)
	s.Require().True(ok)
	s.Equal(s.clock.Now(), got.UpdatedAt)
}

func (s *RegistrySuite) TestPeekDoesNotTouch() {
	created := s.addPlayer(1, "c1")
	s.clock.Advance(time.Minute)

	got, ok := s.registry.Peek(1)
	s.Require().True(ok)
	s.Equal(created.UpdatedAt, got.UpdatedAt)
}

func (s *RegistrySuite) TestSnapshotsAreCopies() {
	sess := s.addPlayer(1, "c1")
	sess.Nickname = "mutated"

	got, _ := s.registry.Peek(1)
	s.Equal("p", got.Nickname)
}

func (s *RegistrySuite) TestChangeConnection() {
	s.addPlayer(1, "c1")

	sess, err := s.registry.ChangeConnection(1, "c2")
	s.Require().NoError(err)
	s.Equal(int64(2), sess.Offset)
	s.Equal(model.ConnectionID("c2"), sess.ConnectionID)

	_, ok := s.registry.GetByConnection("c1")
	s.False(ok)
}

func (s *RegistrySuite) TestChangeConnectionUnknownPlayer() {
	_, err := s.registry.ChangeConnection(9, "c1")
	s.ErrorIs(err, model.ErrNoSession)
}

// Reconnect tests

func (s *RegistrySuite) TestReconnectWithMatchingOffset() {
	s.addPlayer(1, "c1")
	s.registry.Detach("c1")

	sess, err := s.registry.Reconnect(1, 1, "c2")
	s.Require().NoError(err)
	s.Equal(int64(2), sess.Offset)
	s.Equal(model.ConnectionID("c2"), sess.ConnectionID)
}

func (s *RegistrySuite) TestReconnectStaleOffsetLeavesSessionUnchanged() {
	s.addPlayer(1, "c1")
	s.registry.Detach("c1")
	before, _ := s.registry.Peek(1)

	_, err := s.registry.Reconnect(1, 7, "c2")
	s.ErrorIs(err, model.ErrSessionOffsetMismatch)

	after, _ := s.registry.Peek(1)
	s.Equal(before, after)
	_, ok := s.registry.GetByConnection("c2")
	s.False(ok)
}

func (s *RegistrySuite) TestReconnectReservedSession() {
	s.addPlayer(1, "c1")
	s.registry.ReserveRemove(1)

	_, err := s.registry.Reconnect(1, 1, "c2")
	s.ErrorIs(err, model.ErrNoSession)
}

func (s *RegistrySuite) TestReconnectUnknownPlayer() {
	_, err := s.registry.Reconnect(5, 1, "c2")
	s.ErrorIs(err, model.ErrNoSession)
}

func (s *RegistrySuite) TestConcurrentReconnectOnlyOneWins() {
	s.addPlayer(1, "c1")
	s.registry.Detach("c1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.registry.Reconnect(1, 1, "c2"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, wins)
	got, _ := s.registry.Peek(1)
	s.Equal(int64(2), got.Offset)
}

func (s *RegistrySuite) TestOffsetNeverDecreases() {
	last := s.addPlayer(1, "c1").Offset
	for i := 0; i < 5; i++ {
		sess := s.addPlayer(1, "c1")
		s.Greater(sess.Offset, last)
		last = sess.Offset

		sess, err := s.registry.Reconnect(1, last, "c1")
		s.Require().NoError(err)
		s.Greater(sess.Offset, last)
		last = sess.Offset
	}
}

// Detach and Update tests

func (s *RegistrySuite) TestDetachKeepsSession() {
	s.addPlayer(1, "c1")

	sess, ok := s.registry.Detach("c1")
	s.Require().True(ok)
	s.False(sess.Attached())
	s.Equal(1, s.registry.GetSessionCount())

	_, ok = s.registry.Detach("c1")
	s.False(ok)
}

func (s *RegistrySuite) TestUpdateCannotRebind() {
	s.addPlayer(1, "c1")

	sess, err := s.registry.Update(1, func(sess *model.Session) {
		sess.RoomID = 3
		sess.ConnectionID = "hijack"
		sess.PlayerNo = 99
	})
	s.Require().NoError(err)
	s.Equal(model.RoomID(3), sess.RoomID)
	s.Equal(model.ConnectionID("c1"), sess.ConnectionID)
	s.Equal(model.PlayerNo(1), sess.PlayerNo)
}

func (s *RegistrySuite) TestUpdateUnknownPlayer() {
	_, err := s.registry.Update(1, func(*model.Session) {})
	s.ErrorIs(err, model.ErrNoSession)
}

// Sweep tests

func (s *RegistrySuite) TestSweepRemovesIdleSessions() {
	s.addPlayer(1, "c1")
	s.registry.Detach("c1")
	s.addPlayer(2, "c2")

	s.clock.Advance(10 * time.Minute)
	s.registry.GetByPlayer(2)
	s.clock.Advance(6 * time.Minute)

	removed, err := s.registry.Sweep(s.ctx, s.clock.Now())
	s.Require().NoError(err)
	s.Require().Len(removed, 1)
	s.Equal(model.PlayerNo(1), removed[0].PlayerNo)

	_, ok := s.registry.Peek(1)
	s.False(ok)
	_, err = s.registry.Reconnect(1, 1, "c3")
	s.ErrorIs(err, model.ErrNoSession)
	_, ok = s.registry.Peek(2)
	s.True(ok)
}

func (s *RegistrySuite) TestSweepRemovesReservedSessionsAndBindings() {
	s.addPlayer(1, "c1")
	s.registry.ReserveRemove(1)

	removed, err := s.registry.Sweep(s.ctx, s.clock.Now())
	s.Require().NoError(err)
	s.Len(removed, 1)

	_, ok := s.registry.GetByConnection("c1")
	s.False(ok)
}

func (s *RegistrySuite) TestReserveRemoveUnknown() {
	s.False(s.registry.ReserveRemove(1))
}

func (s *RegistrySuite) TestGetSessionListOrdered() {
	s.addPlayer(3, "c3")
	s.addPlayer(1, "c1")
	s.addPlayer(2, "c2")

	list := s.registry.GetSessionList()
	s.Require().Len(list, 3)
	s.Equal(model.PlayerNo(1), list[0].PlayerNo)
	s.Equal(model.PlayerNo(3), list[2].PlayerNo)
}

func (s *RegistrySuite) TestRemoveAll() {
	s.addPlayer(1, "c1")
	s.addPlayer(2, "c2")

	removed := s.registry.RemoveAll()
	s.Len(removed, 2)
	s.Equal(0, s.registry.GetSessionCount())
	_, ok := s.registry.GetByConnection("c1")
	s.False(ok)
}
