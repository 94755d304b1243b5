package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/event"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// pingPeriod is the ping cadence. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize caps inbound client messages.
	maxMessageSize = 1024
	// sendBufferSize is the per-client outbound queue length.
	sendBufferSize = 256
)

// GameCore is the event surface the transport delivers inbound client
// events to. The registry implements it.
type GameCore interface {
	CreateGame(connID, room, nickname string) error
	JoinGame(connID, room, nickname string) error
	RouteMovement(connID string, payload []byte)
	ActivateBending(connID string)
	Disconnect(connID string)
}

// clientMessage is the inbound event envelope.
type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// roomRequest is the payload of createGame and joinGame events.
type roomRequest struct {
	Room     string `json:"room"`
	Nickname string `json:"nickname"`
}

// Client is one WebSocket connection. The read pump dispatches inbound
// events to the game core; the write pump drains the send queue.
type Client struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	core   GameCore
	logger *zap.Logger

	send     chan []byte
	closeMu  sync.Mutex
	sendDone bool
}

func newClient(id string, conn *websocket.Conn, hub *Hub, core GameCore, logger *zap.Logger) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		hub:    hub,
		core:   core,
		logger: logger,
		send:   make(chan []byte, sendBufferSize),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// enqueue queues payload for delivery, dropping it if the client's buffer
// is full or the client is closing.
func (c *Client) enqueue(payload []byte) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.sendDone {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("dropping event for slow client", zap.String("conn", c.id))
	}
}

// closeSend marks the client closed and closes the send channel so the
// write pump drains and exits. Idempotent.
func (c *Client) closeSend() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.sendDone {
		c.sendDone = true
		close(c.send)
	}
}

// readPump reads client events until the connection drops, then reports
// the disconnect to the game core and unregisters from the hub.
func (c *Client) readPump() {
	defer func() {
		c.core.Disconnect(c.id)
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed",
					zap.String("conn", c.id),
					zap.Error(err),
				)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Debug("dropping unparseable client message",
				zap.String("conn", c.id),
				zap.Error(err),
			)
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch routes one inbound event to the game core. Logical conflicts
// (duplicate create, join on a missing room) are reported back to this
// connection as an errorMessage event.
func (c *Client) dispatch(msg clientMessage) {
	switch msg.Event {
	case "createGame":
		var req roomRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.Room == "" {
			c.logger.Debug("dropping malformed createGame", zap.String("conn", c.id))
			return
		}
		if err := c.core.CreateGame(c.id, req.Room, req.Nickname); err != nil {
			c.hub.Send(c.id, event.Error(err.Error()))
		}

	case "joinGame":
		var req roomRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.Room == "" {
			c.logger.Debug("dropping malformed joinGame", zap.String("conn", c.id))
			return
		}
		if err := c.core.JoinGame(c.id, req.Room, req.Nickname); err != nil {
			c.hub.Send(c.id, event.Error(err.Error()))
		}

	case "playerMovement":
		c.core.RouteMovement(c.id, msg.Data)

	case "bend":
		c.core.ActivateBending(c.id)

	default:
		c.logger.Debug("dropping unknown client event",
			zap.String("conn", c.id),
			zap.String("event", msg.Event),
		)
	}
}

// writePump drains the send queue to the connection and keeps the peer
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
