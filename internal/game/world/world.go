// Package world provides the toroidal grid and the entity-occupancy index
// for one game session.
package world

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/arena/internal/game/player"
	"github.com/cory-johannsen/arena/internal/game/rng"
)

// Sentinel errors for occupancy operations.
var (
	// ErrCellOccupied is returned when placing a player on a cell that
	// already holds another player.
	ErrCellOccupied = errors.New("world: cell occupied")
	// ErrCellEmpty is returned when removing a player from a cell that
	// holds no one. Callers treat this as a logic error, not a benign
	// condition.
	ErrCellEmpty = errors.New("world: cell empty")
	// ErrWorldFull is returned when no empty cell exists.
	ErrWorldFull = errors.New("world: no empty cells")
)

// Coord is a grid coordinate. Both components are in [0, size).
type Coord struct {
	X, Y int
}

// World is a size×size toroidal grid with an occupancy index mapping each
// coordinate to the player standing there, if any.
//
// The occupancy index holds non-owning references: the session roster owns
// every player, and removal must always go through the session, never by
// clearing a cell alone.
//
// World is not safe for concurrent use. The owning session serializes all
// access (one mutation stream per session).
type World struct {
	size int
	grid map[Coord]*player.Player
}

// New creates an empty world with the given edge length.
//
// Precondition: size > 0.
// Postcondition: Returns a World with no occupied cells, or an error if
// size is not positive.
func New(size int) (*World, error) {
	if size <= 0 {
		return nil, fmt.Errorf("world size must be positive, got %d", size)
	}
	return &World{
		size: size,
		grid: make(map[Coord]*player.Player),
	}, nil
}

// Size returns the grid edge length.
func (w *World) Size() int {
	return w.size
}

// Wrap normalizes a coordinate pair into [0, size) with toroidal
// wraparound. Deltas of any magnitude, positive or negative, are valid.
//
// Postcondition: Both returned components are in [0, size).
func (w *World) Wrap(x, y int) (int, int) {
	return ((x % w.size) + w.size) % w.size, ((y % w.size) + w.size) % w.size
}

// At returns the player occupying (x, y), or nil if the cell is empty.
//
// Precondition: x and y are in [0, size).
func (w *World) At(x, y int) *player.Player {
	return w.grid[Coord{X: x, Y: y}]
}

// Place records p at its current coordinates.
//
// Callers are expected to have verified the cell is empty; the occupancy
// check one level up (in the session) is the authoritative one.
//
// Postcondition: Returns ErrCellOccupied and leaves the index unchanged if
// another player already holds the cell.
func (w *World) Place(p *player.Player) error {
	c := Coord{X: p.X, Y: p.Y}
	if other := w.grid[c]; other != nil && other != p {
		return fmt.Errorf("placing %s at (%d, %d) held by %s: %w", p.ID, p.X, p.Y, other.ID, ErrCellOccupied)
	}
	w.grid[c] = p
	return nil
}

// Remove clears the occupancy entry at p's current coordinates.
//
// Postcondition: Returns ErrCellEmpty if the cell holds no one, or an
// occupancy-mismatch error if it holds a different player. Either return
// indicates the roster and the index have diverged and must be surfaced
// loudly by the caller.
func (w *World) Remove(p *player.Player) error {
	c := Coord{X: p.X, Y: p.Y}
	occupant := w.grid[c]
	if occupant == nil {
		return fmt.Errorf("removing %s from (%d, %d): %w", p.ID, p.X, p.Y, ErrCellEmpty)
	}
	if occupant != p {
		return fmt.Errorf("removing %s from (%d, %d): cell held by %s", p.ID, p.X, p.Y, occupant.ID)
	}
	delete(w.grid, c)
	return nil
}

// Occupied returns the number of occupied cells.
func (w *World) Occupied() int {
	return len(w.grid)
}

// FindEmpty draws uniformly random coordinates until it finds an empty
// cell.
//
// Expected draws for k occupied cells on an N×N grid are N²/(N²−k), which
// is acceptable only while occupancy stays sparse relative to the grid.
// Once occupancy exceeds 70% the search falls back to enumerating the free
// cells so a crowded world cannot stall the join path.
//
// Precondition: src must be non-nil.
// Postcondition: The returned coordinates are in [0, size) and empty, or
// ErrWorldFull if no cell is free.
func (w *World) FindEmpty(src rng.Source) (int, int, error) {
	total := w.size * w.size
	if len(w.grid) >= total {
		return 0, 0, ErrWorldFull
	}

	if len(w.grid)*10 >= total*7 {
		return w.findEmptyDense(src)
	}

	for {
		x := src.Intn(w.size)
		y := src.Intn(w.size)
		if w.grid[Coord{X: x, Y: y}] == nil {
			return x, y, nil
		}
	}
}

// findEmptyDense picks uniformly among the enumerated free cells.
func (w *World) findEmptyDense(src rng.Source) (int, int, error) {
	free := make([]Coord, 0, w.size*w.size-len(w.grid))
	for x := 0; x < w.size; x++ {
		for y := 0; y < w.size; y++ {
			if w.grid[Coord{X: x, Y: y}] == nil {
				free = append(free, Coord{X: x, Y: y})
			}
		}
	}
	if len(free) == 0 {
		return 0, 0, ErrWorldFull
	}
	c := free[src.Intn(len(free))]
	return c.X, c.Y, nil
}
