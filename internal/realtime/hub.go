// Package realtime fans out encoded frames to connected clients and named groups.
package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/protocol"
)

// Hub tracks live clients and their group memberships.
// Sends never block: a client whose buffer is full misses the message.
type Hub struct {
	mu      sync.RWMutex
	clients map[model.ConnectionID]*Client
	groups  map[string]map[model.ConnectionID]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[model.ConnectionID]*Client),
		groups:  make(map[string]map[model.ConnectionID]struct{}),
		logger:  logger.With(slog.String("component", "realtime")),
	}
}

// Register adds a client, replacing (and closing) any client with the same id
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	prev, ok := h.clients[client.id]
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mu.Unlock()

	if ok && prev != client {
		prev.close()
	}
	h.logger.Debug("client registered",
		slog.String("connection_id", string(client.id)),
		slog.Int("total_clients", clientCount))
}

// Unregister removes a client from the hub and every group, closing its send channel
func (h *Hub) Unregister(id model.ConnectionID) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, id)
	for name, members := range h.groups {
		delete(members, id)
		if len(members) == 0 {
			delete(h.groups, name)
		}
	}
	clientCount := len(h.clients)
	h.mu.Unlock()

	client.close()
	h.logger.Debug("client unregistered",
		slog.String("connection_id", string(id)),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("total_clients", clientCount))
}

// AddToGroup adds connection id to group
func (h *Hub) AddToGroup(group string, id model.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		members = make(map[model.ConnectionID]struct{})
		h.groups[group] = members
	}
	members[id] = struct{}{}
}

// RemoveFromGroup removes connection id from group
func (h *Hub) RemoveFromGroup(group string, id model.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// SendTo delivers msg to a single client
func (h *Hub) SendTo(id model.ConnectionID, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[id]
	if !ok {
		return false
	}
	if !client.enqueue(msg) {
		h.logger.Warn("message dropped - client buffer full",
			slog.String("connection_id", string(id)))
		return false
	}
	return true
}

// SendToGroup delivers msg to every group member not in exclude.
// It returns how many clients received the message.
func (h *Hub) SendToGroup(group string, msg []byte, exclude ...model.ConnectionID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sentCount := 0
	droppedCount := 0
	for id := range h.groups[group] {
		if excluded(id, exclude) {
			continue
		}
		client, ok := h.clients[id]
		if !ok {
			continue
		}
		if client.enqueue(msg) {
			sentCount++
		} else {
			droppedCount++
		}
	}
	if droppedCount > 0 {
		h.logger.Warn("group broadcast partial failure",
			slog.String("group", group),
			slog.Int("sent", sentCount),
			slog.Int("dropped", droppedCount))
	}
	return sentCount
}

// Broadcast encodes payload as a broadcast frame and sends it to group
func (h *Hub) Broadcast(group, method string, payload any, exclude ...model.ConnectionID) error {
	msg, err := protocol.Encode(0, method, payload)
	if err != nil {
		return err
	}
	h.SendToGroup(group, msg, exclude...)
	return nil
}

// GroupSize returns the number of members of group
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func excluded(id model.ConnectionID, exclude []model.ConnectionID) bool {
	for _, e := range exclude {
		if e == id {
			return true
		}
	}
	return false
}
