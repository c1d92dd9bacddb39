package realtime

import (
	"sync"
	"time"

	"github.com/mcoot/chathub/internal/model"
)

// Buffer size for outgoing messages
const sendBufferSize = 256

// Client is the outbound side of one live connection
type Client struct {
	id          model.ConnectionID
	send        chan []byte
	connectedAt time.Time

	closeOnce sync.Once
}

// NewClient creates a new Client for connection id
func NewClient(id model.ConnectionID) *Client {
	return &Client{
		id:          id,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// ID returns the connection id
func (c *Client) ID() model.ConnectionID {
	return c.id
}

// Send returns the channel the transport writer drains. It is closed on unregister.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// enqueue never blocks; it reports false when the buffer is full
func (c *Client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}
