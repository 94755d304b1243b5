// Package registry provides the room registry: it owns the mapping of room
// name to game session, creates and tears down sessions, and routes
// connection-scoped events to the session they target.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/event"
	"github.com/cory-johannsen/arena/internal/game/player"
	"github.com/cory-johannsen/arena/internal/game/rng"
	"github.com/cory-johannsen/arena/internal/game/session"
)

// Sentinel errors for room lifecycle conflicts.
var (
	// ErrRoomExists is returned when creating a room whose name is taken.
	ErrRoomExists = errors.New("registry: room already exists")
	// ErrRoomNotFound is returned when joining an unregistered room.
	ErrRoomNotFound = errors.New("registry: room not found")
)

// Broadcaster delivers outbound events to connections. The transport layer
// implements it; the registry never blocks gameplay on delivery.
type Broadcaster interface {
	// JoinRoom adds a connection to a room's delivery set.
	JoinRoom(room, connID string)
	// LeaveRoom removes a connection from a room's delivery set.
	LeaveRoom(room, connID string)
	// Broadcast delivers evt to every connection in the room.
	Broadcast(room string, evt event.Event)
	// BroadcastExcept delivers evt to every connection in the room other
	// than exceptID.
	BroadcastExcept(room, exceptID string, evt event.Event)
	// Send delivers evt to a single connection.
	Send(connID string, evt event.Event)
}

// entry pairs a session with the cancellation handle of its clock driver.
type entry struct {
	sess *session.Session
	done chan struct{}
}

// Registry owns all active sessions. Its lock guards only the sessions and
// connection bookkeeping (create, join, teardown); gameplay mutation is
// serialized per session, so moves in different rooms run in parallel.
type Registry struct {
	worldSize    int
	tickInterval time.Duration
	src          rng.Source
	logger       *zap.Logger
	bc           Broadcaster

	mu       sync.RWMutex
	sessions map[string]*entry
	conns    map[string]string // connection id → room name
}

// New creates an empty Registry.
//
// Precondition: bc, src, and logger must be non-nil; worldSize > 0;
// tickInterval > 0.
func New(bc Broadcaster, worldSize int, tickInterval time.Duration, src rng.Source, logger *zap.Logger) *Registry {
	return &Registry{
		worldSize:    worldSize,
		tickInterval: tickInterval,
		src:          src,
		logger:       logger,
		bc:           bc,
		sessions:     make(map[string]*entry),
		conns:        make(map[string]string),
	}
}

// CreateGame registers a new session under the given room name, starts its
// clock driver, and joins the creating connection as the first player.
//
// Postcondition: Returns ErrRoomExists (and changes nothing) if the name
// is already registered. On success the session is registered with exactly
// one player and an active clock.
func (r *Registry) CreateGame(connID, room, nickname string) error {
	r.mu.Lock()
	if _, exists := r.sessions[room]; exists {
		r.mu.Unlock()
		return fmt.Errorf("creating room %q: %w", room, ErrRoomExists)
	}

	sess, err := session.New(room, r.worldSize, r.src, r.logger)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	snap, roster, err := sess.AddPlayer(connID, nickname)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	e := &entry{sess: sess, done: make(chan struct{})}
	r.sessions[room] = e
	r.conns[connID] = room
	r.mu.Unlock()

	go r.runClock(room, e)

	r.logger.Info("room created",
		zap.String("room", room),
		zap.String("creator", connID),
	)
	r.announceJoin(room, connID, snap, roster)
	return nil
}

// JoinGame adds the connection to an existing session.
//
// Postcondition: Returns ErrRoomNotFound if the room is unregistered, or
// the session's join error (duplicate player, full world).
func (r *Registry) JoinGame(connID, room, nickname string) error {
	// Joining mutates the membership bookkeeping, so it is serialized with
	// create and teardown: a session can never lose its last player while
	// a join for it is in flight.
	r.mu.Lock()
	e, ok := r.sessions[room]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("joining room %q: %w", room, ErrRoomNotFound)
	}

	snap, roster, err := e.sess.AddPlayer(connID, nickname)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.conns[connID] = room
	r.mu.Unlock()

	r.announceJoin(room, connID, snap, roster)
	return nil
}

// announceJoin delivers the join broadcasts: the roster and the player's
// own life to the joining connection, the new player to everyone else.
func (r *Registry) announceJoin(room, connID string, snap player.Snapshot, roster []player.Snapshot) {
	r.bc.JoinRoom(room, connID)
	r.bc.Send(connID, event.CurrentPlayers(roster))
	r.bc.Send(connID, event.PlayerLife(snap.ID, snap.Life))
	r.bc.BroadcastExcept(room, connID, event.NewPlayer(snap))
}

// RouteMovement validates a raw movement payload and forwards it to the
// connection's session. Malformed input (missing or non-numeric dx/dy) is
// dropped with a diagnostic and never reaches the session.
func (r *Registry) RouteMovement(connID string, payload []byte) {
	var mv struct {
		Dx *float64 `json:"dx"`
		Dy *float64 `json:"dy"`
	}
	if err := json.Unmarshal(payload, &mv); err != nil || mv.Dx == nil || mv.Dy == nil {
		r.logger.Debug("dropping malformed movement payload",
			zap.String("conn", connID),
		)
		return
	}

	room, e := r.lookup(connID)
	if e == nil {
		r.logger.Debug("dropping movement for connection without a room",
			zap.String("conn", connID),
		)
		return
	}

	for _, evt := range e.sess.MovePlayer(connID, int(*mv.Dx), int(*mv.Dy)) {
		r.bc.Broadcast(room, evt)
	}
}

// ActivateBending activates bending for the connection's player and
// broadcasts the result to the room.
func (r *Registry) ActivateBending(connID string) {
	room, e := r.lookup(connID)
	if e == nil {
		r.logger.Debug("dropping bend for connection without a room",
			zap.String("conn", connID),
		)
		return
	}
	if snap, ok := e.sess.ActivateBending(connID); ok {
		r.logger.Info("bending activated",
			zap.String("room", room),
			zap.String("player", connID),
		)
		r.bc.Broadcast(room, event.PlayerBent(snap))
	}
}

// Disconnect removes the connection's player from its session and tears the
// session down if the roster becomes empty.
//
// A disconnect for a connection that never joined a room, or whose room has
// already been torn down, is a benign no-op. Calling Disconnect twice for
// the same connection never double-removes.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	room, joined := r.conns[connID]
	delete(r.conns, connID)
	var e *entry
	if joined {
		e = r.sessions[room]
	}
	r.mu.Unlock()

	if !joined {
		r.logger.Debug("disconnect from connection without a room",
			zap.String("conn", connID),
		)
		return
	}
	if e == nil {
		r.logger.Debug("disconnect for a room already torn down",
			zap.String("conn", connID),
			zap.String("room", room),
		)
		return
	}

	removed := e.sess.RemovePlayer(connID)
	r.bc.LeaveRoom(room, connID)
	if removed {
		r.logger.Info("player disconnected",
			zap.String("room", room),
			zap.String("player", connID),
		)
		r.bc.Broadcast(room, event.PlayerDisconnected(connID))
	}

	r.mu.Lock()
	if cur, ok := r.sessions[room]; ok && cur == e && cur.sess.PlayerCount() == 0 {
		delete(r.sessions, room)
		close(e.done)
		r.logger.Info("room closed", zap.String("room", room))
	}
	r.mu.Unlock()
}

// HasRoom reports whether a session is registered under the given name.
func (r *Registry) HasRoom(room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[room]
	return ok
}

// RoomCount returns the number of registered sessions.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// lookup resolves a connection to its room and session entry.
func (r *Registry) lookup(connID string) (string, *entry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.conns[connID]
	if !ok {
		return "", nil
	}
	return room, r.sessions[room]
}

// runClock broadcasts the session's elapsed time once per tick interval
// until the entry's done channel is closed at teardown. The driver belongs
// to exactly one session; teardown cancels it exactly once.
func (r *Registry) runClock(room string, e *entry) {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			// Re-check teardown so a tick already drawn from the ticker
			// cannot fire into a removed room.
			select {
			case <-e.done:
				return
			default:
			}
			r.bc.Broadcast(room, event.Timer(e.sess.Elapsed().Milliseconds()))
		}
	}
}
