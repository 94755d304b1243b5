package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests to WebSocket connections and wires each
// one into the hub and the game core.
type Handler struct {
	hub      *Hub
	core     GameCore
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler serving the given hub and core.
//
// Precondition: hub, core, and logger must be non-nil.
func NewHandler(hub *Hub, core GameCore, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		core:   core,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The static client page is served from the same origin; other
			// origins are not accepted.
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
	}
}

// ServeWS upgrades the request and starts the connection's pumps. Each
// connection is assigned a UUID that doubles as its player id for the life
// of the session.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(uuid.NewString(), conn, h.hub, h.core, h.logger)
	h.hub.register(c)

	go c.writePump()
	go c.readPump()
}
