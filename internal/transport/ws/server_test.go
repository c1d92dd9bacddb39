package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/protocol"
	"github.com/mcoot/chathub/internal/realtime"
	"github.com/mcoot/chathub/internal/services/connection"
	"github.com/mcoot/chathub/internal/testutil"
)

// recordingHandler answers every request with a fixed ack or error
type recordingHandler struct {
	mu           sync.Mutex
	conns        map[model.ConnectionID]connection.Conn
	disconnected []model.ConnectionID
	methods      []string
	err          error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{conns: make(map[model.ConnectionID]connection.Conn)}
}

func (h *recordingHandler) OnConnected(id model.ConnectionID, conn connection.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = conn
}

func (h *recordingHandler) OnDisconnected(_ context.Context, id model.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, id)
}

func (h *recordingHandler) Handle(_ context.Context, _ model.ConnectionID, method string, _ json.RawMessage) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.methods = append(h.methods, method)
	if h.err != nil {
		return nil, h.err
	}
	return protocol.AckSendChatRoom{}, nil
}

func (h *recordingHandler) connIDs() []model.ConnectionID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]model.ConnectionID, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	return ids
}

func (h *recordingHandler) handled() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.methods...)
}

func (h *recordingHandler) disconnectedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.disconnected)
}

type ServerSuite struct {
	suite.Suite
	handler  *recordingHandler
	realtime *realtime.Hub
	server   *httptest.Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.handler = newRecordingHandler()
	s.realtime = realtime.NewHub(logger)
	s.server = httptest.NewServer(NewServer(DefaultConfig(), s.handler, s.realtime, logger))
}

func (s *ServerSuite) TearDownTest() {
	s.server.Close()
}

func (s *ServerSuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	_ = resp.Body.Close()
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *ServerSuite) read(conn *websocket.Conn) protocol.Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	_, data, err := conn.ReadMessage()
	s.Require().NoError(err)
	frame, err := protocol.DecodeFrame(data)
	s.Require().NoError(err)
	return frame
}

func (s *ServerSuite) write(conn *websocket.Conn, frame string) {
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (s *ServerSuite) TestAckFrame() {
	conn := s.dial()

	s.write(conn, `{"id":7,"method":"ReqSendChatRoom","payload":{"msg":"hi"}}`)
	frame := s.read(conn)

	s.Equal(int64(7), frame.ID)
	s.Equal("AckSendChatRoom", frame.Method)
	s.Empty(frame.Error)
	s.JSONEq(`{"retCode":0}`, string(frame.Payload))
}

func (s *ServerSuite) TestFaultFrame() {
	s.handler.mu.Lock()
	s.handler.err = errors.New("redis down")
	s.handler.mu.Unlock()
	conn := s.dial()

	s.write(conn, `{"id":3,"method":"ReqLogin","payload":{"fpId":"x"}}`)
	frame := s.read(conn)

	s.Equal(int64(3), frame.ID)
	s.Equal("AckLogin", frame.Method)
	s.Equal(protocol.FaultMessage, frame.Error)
	s.NotContains(frame.Error, "redis")
}

func (s *ServerSuite) TestMalformedFrameIgnored() {
	conn := s.dial()

	s.write(conn, `not json`)
	s.write(conn, `{"id":1,"method":"ReqLeaveChatRoom"}`)
	frame := s.read(conn)

	s.Equal(int64(1), frame.ID)
	s.Equal("AckLeaveChatRoom", frame.Method)
	s.Equal([]string{"ReqLeaveChatRoom"}, s.handler.handled())
}

func (s *ServerSuite) TestBroadcastDelivered() {
	conn := s.dial()
	s.Require().Eventually(func() bool { return len(s.handler.connIDs()) == 1 }, 3*time.Second, 10*time.Millisecond)
	id := s.handler.connIDs()[0]

	s.realtime.AddToGroup("ChannelChat:1", id)
	s.Require().NoError(s.realtime.Broadcast("ChannelChat:1", protocol.MethodRecvChatRoomMessage,
		protocol.BCRecvChatRoomMessage{Infos: []protocol.ChatInfo{{Msg: "yo"}}}))

	frame := s.read(conn)
	s.Equal(int64(0), frame.ID)
	s.Equal(protocol.MethodRecvChatRoomMessage, frame.Method)
}

func (s *ServerSuite) TestAbortClosesConnection() {
	conn := s.dial()
	s.Require().Eventually(func() bool { return len(s.handler.connIDs()) == 1 }, 3*time.Second, 10*time.Millisecond)

	s.handler.mu.Lock()
	for _, c := range s.handler.conns {
		c.Abort()
	}
	s.handler.mu.Unlock()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	_, _, err := conn.ReadMessage()
	s.Error(err)
	s.Eventually(func() bool {
		return s.handler.disconnectedCount() == 1 && s.realtime.ClientCount() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func (s *ServerSuite) TestOriginCheck() {
	logger := testutil.NopLogger()
	srv := NewServer(Config{AllowedOrigins: []string{"https://chat.example"}}, s.handler, s.realtime, logger)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	s.False(srv.checkOrigin(req))

	req.Header.Set("Origin", "https://chat.example")
	s.True(srv.checkOrigin(req))
}
