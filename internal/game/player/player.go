// Package player provides the player entity and the element assignment
// rotation for the arena game core.
package player

// Element is one of the four bending disciplines a player wields.
type Element string

// The four elements, in assignment order.
const (
	Fire  Element = "fire"
	Water Element = "water"
	Earth Element = "earth"
	Air   Element = "air"
)

// rotationOrder is the fixed cycle used to assign elements to joining players.
var rotationOrder = [4]Element{Fire, Water, Earth, Air}

// StartingLife is the life total every player spawns with.
const StartingLife = 10

// Combat damage per attack.
const (
	BaseDamage    = 1
	BendingDamage = 3
)

// Rotation hands out elements round-robin so the four elements cycle evenly
// regardless of join order. It is a circular index over the fixed element
// cycle, not a mutating queue.
//
// Rotation is not safe for concurrent use; the owning session serializes
// access to it.
type Rotation struct {
	next int
}

// Next returns the least-recently-assigned element and advances the cycle.
//
// Postcondition: Four consecutive calls return fire, water, earth, air;
// the fifth call returns fire again.
func (r *Rotation) Next() Element {
	e := rotationOrder[r.next]
	r.next = (r.next + 1) % len(rotationOrder)
	return e
}

// Player is a living entity in one game session.
//
// The session roster is the sole owner of a Player; the world occupancy
// index holds a lookup-only back-reference that the session keeps in sync
// with every position mutation.
type Player struct {
	// ID is the connection id this player was created for. Stable for the
	// life of the session.
	ID string
	// Nickname is the display name supplied at join time.
	Nickname string
	// Element is the bending discipline assigned at join time.
	Element Element
	// X, Y are the player's current grid coordinates.
	X, Y int
	// Life is the remaining life total. The session removes the player
	// when it drops to zero or below.
	Life int
	// Score is the player's accumulated score.
	Score int
	// Bending reports whether the player has activated bending. Permanent
	// once set; triples outgoing combat damage.
	Bending bool
	// Room is the name of the session the player belongs to.
	Room string
}

// New creates a Player at the given coordinates with full life.
//
// Precondition: id must be non-empty; x and y must already be wrapped into
// the owning world's coordinate range.
func New(id, nickname string, element Element, x, y int, room string) *Player {
	return &Player{
		ID:       id,
		Nickname: nickname,
		Element:  element,
		X:        x,
		Y:        y,
		Life:     StartingLife,
		Room:     room,
	}
}

// Location is a grid coordinate pair in wire form.
type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Snapshot is the JSON wire representation of a player, used in broadcast
// event payloads.
type Snapshot struct {
	ID       string   `json:"id"`
	Nickname string   `json:"nickname"`
	Element  Element  `json:"element"`
	Location Location `json:"location"`
	Life     int      `json:"life"`
	Score    int      `json:"score"`
	Bending  bool     `json:"bending"`
	Room     string   `json:"room"`
}

// Snapshot returns a copy of the player's current state for serialization.
//
// Postcondition: The returned value shares no mutable state with p.
func (p *Player) Snapshot() Snapshot {
	return Snapshot{
		ID:       p.ID,
		Nickname: p.Nickname,
		Element:  p.Element,
		Location: Location{X: p.X, Y: p.Y},
		Life:     p.Life,
		Score:    p.Score,
		Bending:  p.Bending,
		Room:     p.Room,
	}
}
