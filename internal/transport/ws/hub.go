// Package ws provides the WebSocket transport: it accepts connections,
// delivers named client events to the game core, and fans core broadcasts
// out to the connections in each room.
package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/event"
)

// Hub tracks connected clients and their room membership, and implements
// the registry's Broadcaster interface. Delivery to a client goes through
// the client's buffered send channel, so a slow connection never stalls
// the caller.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client            // connection id → client
	rooms   map[string]map[string]*Client // room name → connection id → client
}

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// register adds a freshly upgraded connection to the hub.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	h.logger.Info("client connected", zap.String("conn", c.id))
}

// unregister drops a connection from the hub and every room it was in.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	for room, members := range h.rooms {
		if _, ok := members[c.id]; ok {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	c.closeSend()
	h.logger.Info("client disconnected", zap.String("conn", c.id))
}

// JoinRoom adds the connection to a room's delivery set.
func (h *Hub) JoinRoom(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][connID] = c
}

// LeaveRoom removes the connection from a room's delivery set.
func (h *Hub) LeaveRoom(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast delivers evt to every connection in the room.
func (h *Hub) Broadcast(room string, evt event.Event) {
	h.BroadcastExcept(room, "", evt)
}

// BroadcastExcept delivers evt to every connection in the room other than
// exceptID. Clients whose send buffer is full have the event dropped.
func (h *Hub) BroadcastExcept(room, exceptID string, evt event.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("serializing broadcast event",
			zap.String("event", evt.Name),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for id, c := range h.rooms[room] {
		if id != exceptID {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(payload)
	}
}

// Send delivers evt to a single connection.
func (h *Hub) Send(connID string, evt event.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("serializing unicast event",
			zap.String("event", evt.Name),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()

	if c != nil {
		c.enqueue(payload)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
