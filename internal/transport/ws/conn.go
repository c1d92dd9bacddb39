package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/protocol"
	"github.com/mcoot/chathub/internal/realtime"
)

// conn pumps frames between one websocket and the hub
type conn struct {
	id      model.ConnectionID
	ws      *websocket.Conn
	client  *realtime.Client
	handler Handler
	cfg     Config
	logger  *slog.Logger

	// direct carries acks written by the read side; broadcasts come from client.Send()
	direct    chan []byte
	done      chan struct{}
	abortOnce sync.Once
}

// Abort closes the underlying websocket; both pumps exit on the resulting error
func (c *conn) Abort() {
	c.abortOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) readPump(ctx context.Context) {
	defer c.Abort()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", slog.Any("error", err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.dispatch(ctx, data)
	}
}

func (c *conn) dispatch(ctx context.Context, data []byte) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		c.logger.Debug("dropping malformed frame", slog.Any("error", err))
		return
	}
	ackMethod, ok := protocol.AckMethod(frame.Method)
	if !ok {
		c.reply(errorFrame(frame.ID, frame.Method, "unknown method"))
		return
	}

	ack, err := c.handler.Handle(ctx, c.id, frame.Method, frame.Payload)
	if err != nil {
		c.logger.Error("command failed",
			slog.String("method", frame.Method),
			slog.Any("error", err))
		c.reply(protocol.EncodeFault(frame.ID, ackMethod))
		return
	}
	out, err := protocol.Encode(frame.ID, ackMethod, ack)
	if err != nil {
		c.logger.Error("failed to encode ack",
			slog.String("method", ackMethod),
			slog.Any("error", err))
		c.reply(protocol.EncodeFault(frame.ID, ackMethod))
		return
	}
	c.reply(out)
}

// reply queues an ack for the writer. It only blocks while the writer is alive.
func (c *conn) reply(msg []byte) {
	select {
	case c.direct <- msg:
	case <-c.done:
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Abort()
	}()

	for {
		select {
		case msg := <-c.direct:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case msg, ok := <-c.client.Send():
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	err := c.ws.WriteMessage(messageType, data)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("websocket write error", slog.Any("error", err))
	}
	return err
}

func errorFrame(id int64, method, msg string) []byte {
	data, _ := json.Marshal(protocol.Frame{ID: id, Method: method, Error: msg})
	return data
}
