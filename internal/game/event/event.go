// Package event defines the outbound broadcast events the game core
// produces for delivery to connected clients.
package event

import "github.com/cory-johannsen/arena/internal/game/player"

// Event names on the wire.
const (
	NameCurrentPlayers     = "currentPlayers"
	NameNewPlayer          = "newPlayer"
	NamePlayerLife         = "playerLife"
	NamePlayerMoved        = "playerMoved"
	NamePlayerDied         = "playerDied"
	NamePlayerBent         = "playerBent"
	NamePlayerDisconnected = "playerDisconnected"
	NameTimer              = "timer"
	NameError              = "errorMessage"
)

// Event is one named outbound message. The transport serializes it as
// {"event": <name>, "data": <payload>}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// LifePayload carries a life-total update for one player.
type LifePayload struct {
	ID   string `json:"id"`
	Life int    `json:"life"`
}

// MovedPayload carries a player's post-move state.
type MovedPayload struct {
	ID     string          `json:"id"`
	Player player.Snapshot `json:"player"`
}

// DiedPayload names the victim and the killer of a combat death.
type DiedPayload struct {
	ID       string `json:"id"`
	KillerID string `json:"killerId"`
}

// BentPayload carries a player's state after activating bending.
type BentPayload struct {
	ID     string          `json:"id"`
	Player player.Snapshot `json:"player"`
}

// DisconnectedPayload names a player that left the room.
type DisconnectedPayload struct {
	ID string `json:"id"`
}

// TimerPayload carries a session's elapsed clock reading.
type TimerPayload struct {
	ElapsedMs int64 `json:"elapsedMs"`
}

// ErrorPayload carries a rejection back to the initiating connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// CurrentPlayers builds the full-roster snapshot sent to a joining
// connection.
func CurrentPlayers(roster []player.Snapshot) Event {
	return Event{Name: NameCurrentPlayers, Data: roster}
}

// NewPlayer announces a freshly joined player to the rest of the room.
func NewPlayer(snap player.Snapshot) Event {
	return Event{Name: NameNewPlayer, Data: snap}
}

// PlayerLife reports a player's new life total.
func PlayerLife(id string, life int) Event {
	return Event{Name: NamePlayerLife, Data: LifePayload{ID: id, Life: life}}
}

// PlayerMoved reports a completed relocation.
func PlayerMoved(snap player.Snapshot) Event {
	return Event{Name: NamePlayerMoved, Data: MovedPayload{ID: snap.ID, Player: snap}}
}

// PlayerDied reports a combat death, naming victim and killer.
func PlayerDied(victimID, killerID string) Event {
	return Event{Name: NamePlayerDied, Data: DiedPayload{ID: victimID, KillerID: killerID}}
}

// PlayerBent reports a bending activation.
func PlayerBent(snap player.Snapshot) Event {
	return Event{Name: NamePlayerBent, Data: BentPayload{ID: snap.ID, Player: snap}}
}

// PlayerDisconnected reports a player leaving the room.
func PlayerDisconnected(id string) Event {
	return Event{Name: NamePlayerDisconnected, Data: DisconnectedPayload{ID: id}}
}

// Timer reports a session's elapsed time in milliseconds.
func Timer(elapsedMs int64) Event {
	return Event{Name: NameTimer, Data: TimerPayload{ElapsedMs: elapsedMs}}
}

// Error carries a logical-conflict rejection to a single connection.
func Error(message string) Event {
	return Event{Name: NameError, Data: ErrorPayload{Message: message}}
}
