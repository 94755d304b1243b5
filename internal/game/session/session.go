// Package session provides the per-room game session: one world, one
// roster, and the serialized mutation stream that keeps them consistent.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/game/event"
	"github.com/cory-johannsen/arena/internal/game/player"
	"github.com/cory-johannsen/arena/internal/game/rng"
	"github.com/cory-johannsen/arena/internal/game/world"
)

// ErrPlayerExists is returned when a connection joins a session it is
// already a member of.
var ErrPlayerExists = errors.New("session: player already joined")

// Session owns one world and the roster of players in it. All mutating
// operations on the session and its world execute in mutual exclusion with
// each other; operations on different sessions run fully in parallel.
//
// Methods never perform I/O while holding the session lock: outbound
// broadcast events are returned to the caller for delivery after the
// internal state has been updated and the lock released.
type Session struct {
	name      string
	startedAt time.Time
	src       rng.Source
	logger    *zap.Logger

	mu       sync.Mutex
	world    *world.World
	roster   map[string]*player.Player
	rotation player.Rotation
}

// New creates an active session with an empty roster.
//
// Precondition: name must be non-empty; worldSize > 0; src and logger must
// be non-nil.
func New(name string, worldSize int, src rng.Source, logger *zap.Logger) (*Session, error) {
	w, err := world.New(worldSize)
	if err != nil {
		return nil, fmt.Errorf("creating world for session %q: %w", name, err)
	}
	return &Session{
		name:      name,
		startedAt: time.Now(),
		src:       src,
		logger:    logger,
		world:     w,
		roster:    make(map[string]*player.Player),
	}, nil
}

// Name returns the session's room name.
func (s *Session) Name() string {
	return s.name
}

// Elapsed returns the time since the session was created.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startedAt)
}

// PlayerCount returns the current roster size.
func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.roster)
}

// AddPlayer creates a player for the given connection, assigns the next
// element in the rotation, and spawns it on a uniformly random empty cell.
//
// Precondition: id must be non-empty.
// Postcondition: Returns the new player's snapshot and the full roster
// snapshot (new player included), or ErrPlayerExists / world.ErrWorldFull.
func (s *Session) AddPlayer(id, nickname string) (player.Snapshot, []player.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.roster[id]; exists {
		return player.Snapshot{}, nil, fmt.Errorf("adding %q to %q: %w", id, s.name, ErrPlayerExists)
	}

	x, y, err := s.world.FindEmpty(s.src)
	if err != nil {
		return player.Snapshot{}, nil, fmt.Errorf("spawning %q in %q: %w", id, s.name, err)
	}

	p := player.New(id, nickname, s.rotation.Next(), x, y, s.name)
	s.roster[id] = p
	if err := s.world.Place(p); err != nil {
		// FindEmpty just returned this cell; a failure here means the
		// serialization contract was broken.
		delete(s.roster, id)
		s.logger.Error("occupancy index rejected fresh spawn cell",
			zap.String("room", s.name),
			zap.String("player", id),
			zap.Error(err),
		)
		return player.Snapshot{}, nil, err
	}

	roster := make([]player.Snapshot, 0, len(s.roster))
	for _, rp := range s.roster {
		roster = append(roster, rp.Snapshot())
	}

	s.logger.Info("player joined",
		zap.String("room", s.name),
		zap.String("player", id),
		zap.String("nickname", nickname),
		zap.String("element", string(p.Element)),
		zap.Int("x", x),
		zap.Int("y", y),
	)
	return p.Snapshot(), roster, nil
}

// RemovePlayer removes the player from the roster and the occupancy index.
// Removing an absent id is a no-op, not an error: a disconnect racing a
// death-removal must be idempotent.
//
// Postcondition: Returns true if the player was present and removed.
func (s *Session) RemovePlayer(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

// removeLocked removes id from roster and occupancy. Caller holds s.mu.
func (s *Session) removeLocked(id string) bool {
	p, ok := s.roster[id]
	if !ok {
		return false
	}
	if err := s.world.Remove(p); err != nil {
		// Roster and occupancy have diverged; surface it, don't patch it.
		s.logger.Error("occupancy index out of sync on removal",
			zap.String("room", s.name),
			zap.String("player", id),
			zap.Error(err),
		)
	}
	delete(s.roster, id)
	return true
}

// MovePlayer applies a movement delta for the given player and returns the
// broadcast events it produced.
//
// Destination coordinates wrap toroidally. If the destination holds
// another player the move becomes a stationary attack: 1 damage, or 3 when
// the mover has bending active. An occupant whose life drops to zero or
// below is removed and a death event naming victim and killer is emitted.
// If the destination is empty the mover relocates atomically.
//
// A move for an id not in the roster is dropped with a diagnostic
// (stale and duplicate event protection).
func (s *Session) MovePlayer(id string, dx, dy int) []event.Event {
	s.mu.Lock()

	p, ok := s.roster[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("dropping movement for unknown player",
			zap.String("room", s.name),
			zap.String("player", id),
		)
		return nil
	}

	newX, newY := s.world.Wrap(p.X+dx, p.Y+dy)
	var events []event.Event

	switch occupant := s.world.At(newX, newY); {
	case occupant == nil:
		// Atomic relocation: no other operation ever observes a
		// half-moved player.
		if err := s.world.Remove(p); err != nil {
			s.logger.Error("occupancy index out of sync on move",
				zap.String("room", s.name),
				zap.String("player", id),
				zap.Error(err),
			)
		}
		p.X, p.Y = newX, newY
		if err := s.world.Place(p); err != nil {
			s.logger.Error("occupancy index rejected empty destination",
				zap.String("room", s.name),
				zap.String("player", id),
				zap.Error(err),
			)
		}
		events = append(events, event.PlayerMoved(p.Snapshot()))

	case occupant == p:
		// Wrapped zero displacement; nothing to do.

	default:
		damage := player.BaseDamage
		if p.Bending {
			damage = player.BendingDamage
		}
		occupant.Life -= damage
		events = append(events, event.PlayerLife(occupant.ID, occupant.Life))
		s.logger.Info("combat",
			zap.String("room", s.name),
			zap.String("attacker", p.ID),
			zap.String("defender", occupant.ID),
			zap.Int("damage", damage),
			zap.Int("x", newX),
			zap.Int("y", newY),
		)
		if occupant.Life <= 0 {
			s.removeLocked(occupant.ID)
			events = append(events, event.PlayerDied(occupant.ID, p.ID))
		}
	}

	s.mu.Unlock()
	return events
}

// ActivateBending sets the bending flag on the player. Idempotent; the
// flag never expires.
//
// Postcondition: Returns the player's snapshot and true, or false if the
// id is not in the roster.
func (s *Session) ActivateBending(id string) (player.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.roster[id]
	if !ok {
		s.logger.Debug("dropping bend for unknown player",
			zap.String("room", s.name),
			zap.String("player", id),
		)
		return player.Snapshot{}, false
	}
	p.Bending = true
	return p.Snapshot(), true
}

// Roster returns a snapshot of every player in the session.
func (s *Session) Roster() []player.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster := make([]player.Snapshot, 0, len(s.roster))
	for _, p := range s.roster {
		roster = append(roster, p.Snapshot())
	}
	return roster
}
