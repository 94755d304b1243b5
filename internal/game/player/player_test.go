package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotation_CyclesEvenly(t *testing.T) {
	var r Rotation

	first := []Element{r.Next(), r.Next(), r.Next(), r.Next()}
	assert.Equal(t, []Element{Fire, Water, Earth, Air}, first)

	// The 5th assignment restarts the cycle.
	assert.Equal(t, first[0], r.Next())
}

func TestRotation_LongSequence(t *testing.T) {
	var r Rotation

	seen := make(map[Element]int)
	for i := 0; i < 40; i++ {
		seen[r.Next()]++
	}
	for _, e := range []Element{Fire, Water, Earth, Air} {
		assert.Equal(t, 10, seen[e], "element %s should be assigned evenly", e)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New("c1", "Aang", Air, 3, 7, "southern-temple")

	assert.Equal(t, StartingLife, p.Life)
	assert.Equal(t, 0, p.Score)
	assert.False(t, p.Bending)
	assert.Equal(t, "southern-temple", p.Room)
	assert.Equal(t, 3, p.X)
	assert.Equal(t, 7, p.Y)
}

func TestSnapshot_CopiesState(t *testing.T) {
	p := New("c1", "Katara", Water, 1, 2, "north")
	p.Bending = true
	p.Life = 4

	snap := p.Snapshot()
	require.Equal(t, "c1", snap.ID)
	assert.Equal(t, Water, snap.Element)
	assert.Equal(t, Location{X: 1, Y: 2}, snap.Location)
	assert.Equal(t, 4, snap.Life)
	assert.True(t, snap.Bending)

	// Mutating the player must not mutate an already-taken snapshot.
	p.X = 9
	assert.Equal(t, 1, snap.Location.X)
}
