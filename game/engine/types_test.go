package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationConstants(t *testing.T) {
	assert.Equal(t, 64, MaxGridSize)
	assert.Equal(t, 50, MaxBulkMoves)
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
		ok   bool
	}{
		{"up", Up, true},
		{"DOWN", Down, true},
		{" left ", Left, true},
		{"Right", Right, true},
		{"north", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDirection(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirection_DeltaIsUnit(t *testing.T) {
	for _, dir := range Directions {
		dx, dy := dir.Delta()
		assert.Equal(t, 1, abs(dx)+abs(dy), dir.String())
	}
	dx, dy := Direction(0).Delta()
	assert.Zero(t, dx)
	assert.Zero(t, dy)
}

func TestKind_Text(t *testing.T) {
	data, err := json.Marshal(EntityView{ID: 3, Kind: KindSuperpositionWall})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"superposition_wall"`)

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("quantum_box")))
	assert.Equal(t, KindQuantumBox, k)
	assert.Error(t, k.UnmarshalText([]byte("dragon")))
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestEntity_Categories(t *testing.T) {
	player := NewEntity(KindPlayer, Position{})
	block := NewBlock(Position{}, false)
	tile := NewEntity(KindPlayerBlockingTile, Position{})
	q := NewSuperpositionWall(Position{}, 0.5)

	assert.Equal(t, PassThrough, NewEntity(KindGoal, Position{}).Category(player))
	assert.Equal(t, Blocks, NewEntity(KindWall, Position{}).Category(block))
	assert.Equal(t, Blocks, tile.Category(player))
	assert.Equal(t, PlayerOnlyBlock, tile.Category(block))
	assert.Equal(t, Blocks, q.Category(player))

	q.collapse = CollapsedEmpty
	assert.Equal(t, PassThrough, q.Category(player))
	q.collapse = CollapsedSolid
	assert.Equal(t, Blocks, q.Category(block))
	assert.Equal(t, byte('#'), q.Token())

	assert.Equal(t, Movable, block.Capability())
	assert.Equal(t, Movable, NewEntity(KindQuantumBox, Position{}).Capability())
	assert.Equal(t, Immovable, player.Capability())
	assert.Equal(t, Immovable, q.Capability())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
