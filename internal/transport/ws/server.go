// Package ws serves the chat command protocol over websockets.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/realtime"
	"github.com/mcoot/chathub/internal/services/connection"
)

// Handler is the command side of the hub the transport feeds
type Handler interface {
	OnConnected(connID model.ConnectionID, conn connection.Conn)
	OnDisconnected(ctx context.Context, connID model.ConnectionID)
	Handle(ctx context.Context, connID model.ConnectionID, method string, payload json.RawMessage) (any, error)
}

// Config holds websocket timing and size limits
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	// AllowedOrigins restricts the Origin header; empty allows any origin
	AllowedOrigins []string
}

// DefaultConfig returns default websocket configuration
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 4096,
	}
}

// Server upgrades HTTP requests and runs one read and one write pump per connection
type Server struct {
	cfg      Config
	handler  Handler
	realtime *realtime.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a new websocket Server
func NewServer(cfg Config, handler Handler, rt *realtime.Hub, logger *slog.Logger) *Server {
	defaults := DefaultConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	s := &Server{
		cfg:      cfg,
		handler:  handler,
		realtime: rt,
		logger:   logger.With(slog.String("component", "ws")),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and blocks until the connection closes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		return
	}

	id := model.ConnectionID(uuid.NewString())
	c := &conn{
		id:      id,
		ws:      wsConn,
		client:  realtime.NewClient(id),
		handler: s.handler,
		cfg:     s.cfg,
		logger:  s.logger.With(slog.String("connection_id", string(id))),
		direct:  make(chan []byte, 16),
		done:    make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	s.realtime.Register(c.client)
	s.handler.OnConnected(id, c)
	c.logger.Info("connection opened", slog.String("remote_addr", r.RemoteAddr))

	go c.writePump()
	c.readPump(ctx)

	s.handler.OnDisconnected(ctx, id)
	s.realtime.Unregister(id)
	c.logger.Info("connection closed")
}
