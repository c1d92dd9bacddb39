package factory

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chathub/internal/config"
	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/protocol"
	"github.com/mcoot/chathub/internal/realtime"
	"github.com/mcoot/chathub/internal/scheduler"
)

type fakeConn struct {
	aborted atomic.Bool
}

func (c *fakeConn) Abort() { c.aborted.Store(true) }

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
	s.app.Start(s.ctx)
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Stop())
}

func (s *IntegrationSuite) connect(id model.ConnectionID) (*fakeConn, *realtime.Client) {
	conn := &fakeConn{}
	client := realtime.NewClient(id)
	s.app.Realtime.Register(client)
	s.app.Hub.OnConnected(id, conn)
	return conn, client
}

func (s *IntegrationSuite) handle(id model.ConnectionID, method string, payload any) any {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	ack, err := s.app.Hub.Handle(s.ctx, id, method, raw)
	s.Require().NoError(err)
	return ack
}

func (s *IntegrationSuite) receive(client *realtime.Client) protocol.Frame {
	select {
	case msg := <-client.Send():
		frame, err := protocol.DecodeFrame(msg)
		s.Require().NoError(err)
		return frame
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for broadcast")
		return protocol.Frame{}
	}
}

// Test: Login, enter a room, chat and leave through the wired application
func (s *IntegrationSuite) TestChatFlow() {
	_, aliceClient := s.connect("alice")
	_, bobClient := s.connect("bob")

	aliceLogin := s.handle("alice", protocol.MethodLogin, protocol.ReqLogin{FpID: "alice-device"}).(protocol.AckLogin)
	s.Require().Equal(model.RetSuccess, aliceLogin.RetCode)
	bobLogin := s.handle("bob", protocol.MethodLogin, protocol.ReqLogin{FpID: "bob-device"}).(protocol.AckLogin)
	s.Require().Equal(model.RetSuccess, bobLogin.RetCode)
	s.NotEqual(aliceLogin.PlayerNo, bobLogin.PlayerNo)

	nick := s.handle("alice", protocol.MethodSetNickname, protocol.ReqSetNickname{Name: "Alice"}).(protocol.AckSetNickname)
	s.Require().Equal(model.RetSuccess, nick.RetCode)

	enter := s.handle("alice", protocol.MethodEnterChatRoom, protocol.ReqEnterChatRoom{RoomID: 3}).(protocol.AckEnterChatRoom)
	s.Require().Equal(model.RetSuccess, enter.RetCode)
	s.Equal(model.RoomID(3), enter.RoomID)

	enter = s.handle("bob", protocol.MethodEnterChatRoom, protocol.ReqEnterChatRoom{RoomID: 3}).(protocol.AckEnterChatRoom)
	s.Require().Equal(model.RetSuccess, enter.RetCode)

	// Alice hears about Bob entering
	frame := s.receive(aliceClient)
	s.Equal(protocol.MethodRecvChatRoomNoti, frame.Method)

	send := s.handle("alice", protocol.MethodSendChatRoom, protocol.ReqSendChatRoom{Msg: "hello"}).(protocol.AckSendChatRoom)
	s.Require().Equal(model.RetSuccess, send.RetCode)

	for _, client := range []*realtime.Client{aliceClient, bobClient} {
		frame := s.receive(client)
		s.Require().Equal(protocol.MethodRecvChatRoomMessage, frame.Method)
		bc, err := protocol.DecodePayload[protocol.BCRecvChatRoomMessage](frame.Payload)
		s.Require().NoError(err)
		s.Require().Len(bc.Infos, 1)
		s.Equal("hello", bc.Infos[0].Msg)
		s.Equal("Alice", bc.Infos[0].Name)
	}

	counts := s.app.Hub.RoomUserCounts()
	s.Equal(2, counts[2].UserCount)

	leave := s.handle("bob", protocol.MethodLeaveChatRoom, nil).(protocol.AckLeaveChatRoom)
	s.Require().Equal(model.RetSuccess, leave.RetCode)
	s.Equal(model.RoomID(3), leave.RoomID)

	count, err := s.app.Hub.RoomUserCount(3)
	s.Require().NoError(err)
	s.Equal(1, count.UserCount)
}

// Test: Disconnect keeps the session for reconnect but frees the room seat
func (s *IntegrationSuite) TestDisconnectAndReconnect() {
	s.connect("c1")
	login := s.handle("c1", protocol.MethodLogin, protocol.ReqLogin{FpID: "device"}).(protocol.AckLogin)
	s.Require().Equal(model.RetSuccess, login.RetCode)
	s.handle("c1", protocol.MethodEnterChatRoom, protocol.ReqEnterChatRoom{RoomID: 1})

	s.app.Hub.OnDisconnected(s.ctx, "c1")
	s.app.Realtime.Unregister("c1")

	s.Equal(0, s.app.Hub.ConnectionCount())
	s.Equal(1, s.app.Hub.SessionCount())
	count, err := s.app.Hub.RoomUserCount(1)
	s.Require().NoError(err)
	s.Equal(0, count.UserCount)

	s.connect("c2")
	ack := s.handle("c2", protocol.MethodReconnect, protocol.ReqReconnect{
		PlayerNo:      login.PlayerNo,
		SessionOffset: login.SessionOffset,
	}).(protocol.AckReconnect)
	s.Require().Equal(model.RetSuccess, ack.RetCode)
	s.Equal(login.SessionOffset+1, ack.SessionOffset)
	s.Equal(login.PlayerNo, ack.PlayerInfo.PlayerNo)

	logs := s.app.Memory.LoginLogs()
	s.Require().Len(logs, 2)
	s.True(logs[1].Reconnect)
}

// Test: The connection sweeper reaps connections that never log in
func (s *IntegrationSuite) TestConnectionSweepReapsUnauthenticated() {
	idle, _ := s.connect("idle")
	active, _ := s.connect("active")
	s.handle("active", protocol.MethodLogin, protocol.ReqLogin{FpID: "device"})

	s.app.MockClock.Advance(6 * time.Second)
	report := s.app.ConnectionSweeper.Tick(s.ctx)

	s.NoError(report.Err)
	s.Equal(1, report.Removed)
	s.True(idle.aborted.Load())
	s.False(active.aborted.Load())
	s.Equal(1, s.app.Hub.ConnectionCount())
}

// Test: The session sweeper expires idle sessions and frees their seats
func (s *IntegrationSuite) TestSessionSweepReleasesSeats() {
	s.connect("c1")
	s.handle("c1", protocol.MethodLogin, protocol.ReqLogin{FpID: "device"})
	s.handle("c1", protocol.MethodEnterChatRoom, protocol.ReqEnterChatRoom{RoomID: 2})

	s.app.MockClock.Advance(16 * time.Minute)
	report := s.app.SessionSweeper.Tick(s.ctx)

	s.NoError(report.Err)
	s.Equal(1, report.Removed)
	s.Equal(0, s.app.Hub.SessionCount())
	count, err := s.app.Hub.RoomUserCount(2)
	s.Require().NoError(err)
	s.Equal(0, count.UserCount)

	select {
	case published := <-s.app.SessionSweeper.Reports():
		s.Equal("sessions", published.Sweeper)
	default:
		s.Fail("sweep report not published")
	}
}

// Test: Stop aborts live connections and rejects later commands
func (s *IntegrationSuite) TestStopAbortsConnections() {
	conn, _ := s.connect("c1")

	s.Require().NoError(s.app.Stop())
	s.True(conn.aborted.Load())

	ack := s.handle("c1", protocol.MethodLogin, protocol.ReqLogin{FpID: "device"}).(protocol.AckLogin)
	s.Equal(model.RetServerBusy, ack.RetCode)
}

func TestDiagnosticWiresFaultLog(t *testing.T) {
	app := NewTestAppWithConfig(Config{Diagnostic: true, ServerID: "diag"})
	defer func() { _ = app.Stop() }()

	assert.NotNil(t, app.cfg.Scheduler.FaultReporter)
	assert.Equal(t, "diag", app.cfg.Scheduler.ServerID)
	assert.Equal(t, "diag", app.cfg.Hub.ServerID)
}

func TestSweepIntervalDefaults(t *testing.T) {
	app := NewTestAppWithConfig(Config{})
	defer func() { _ = app.Stop() }()

	assert.Equal(t, 10*time.Second, app.cfg.SessionSweepInterval)
	assert.Equal(t, 10*time.Second, app.cfg.ConnectionSweepInterval)
}

func TestConfigFromEnv(t *testing.T) {
	env := config.Config{
		ServerID:         "s1",
		StorageType:      StorageTypeRedis,
		RedisURL:         "redis://cache:6379/2",
		WorkerMultiplier: 3,
		QueueSize:        10,
		QueuePolicy:      "reject",
		RoomCount:        4,
		TotalCapacity:    40,
		HistoryLimit:     5,
		SessionTTL:       time.Minute,
		AuthGrace:        time.Second,
		LoginInterval:    2 * time.Second,
		AdminToken:       "secret",
	}

	cfg := ConfigFromEnv(env, nil)

	require.NotNil(t, cfg.RedisConfig)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisConfig.URL)
	assert.Equal(t, scheduler.PolicyReject, cfg.Scheduler.Policy)
	assert.Equal(t, 3, cfg.Scheduler.WorkerMultiplier)
	assert.Equal(t, 4, cfg.Rooms.RoomCount)
	assert.Equal(t, 40, cfg.Rooms.TotalCapacity)
	assert.Equal(t, time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, time.Second, cfg.Connections.AuthGrace)
	assert.Equal(t, 2*time.Second, cfg.Hub.LoginInterval)
	assert.Equal(t, "secret", cfg.AdminToken)
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	_, err := New(Config{StorageType: "sqlite"})
	assert.Error(t, err)

	_, err = New(Config{StorageType: StorageTypeRedis})
	assert.Error(t, err)
}
