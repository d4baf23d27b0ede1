package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource returns draw and counts how often it was consulted
type countingSource struct {
	draw  float64
	calls int
}

func (s *countingSource) Float64() float64 {
	s.calls++
	return s.draw
}

func spawn(t *testing.T, g *Grid, kind Kind, x, y int) *Entity {
	t.Helper()
	e, err := g.Spawn(kind, Position{X: x, Y: y})
	require.NoError(t, err)
	return e
}

func placeBlock(t *testing.T, g *Grid, x, y int, entanglable bool) *Entity {
	t.Helper()
	e := NewBlock(Position{X: x, Y: y}, entanglable)
	require.NoError(t, g.Place(e))
	return e
}

func placeSuperposition(t *testing.T, g *Grid, x, y int, p float64) *Entity {
	t.Helper()
	e := NewSuperpositionWall(Position{X: x, Y: y}, p)
	require.NoError(t, g.Place(e))
	return e
}

func TestMovePlayer_BlockAgainstWall(t *testing.T) {
	g := NewGrid(5, 3)
	player := spawn(t, g, KindPlayer, 1, 1)
	block := placeBlock(t, g, 2, 1, false)
	spawn(t, g, KindWall, 3, 1)

	report := MovePlayer(g, Right, FixedSource(0))

	assert.False(t, report.Success)
	assert.Empty(t, report.Displacements)
	assert.Equal(t, Position{X: 1, Y: 1}, player.Pos())
	assert.Equal(t, Position{X: 2, Y: 1}, block.Pos())
}

func TestMovePlayer_PushIntoEmptyCell(t *testing.T) {
	g := NewGrid(5, 3)
	player := spawn(t, g, KindPlayer, 1, 1)
	block := placeBlock(t, g, 2, 1, false)

	report := MovePlayer(g, Right, FixedSource(0))

	require.True(t, report.Success)
	assert.Equal(t, Position{X: 2, Y: 1}, player.Pos())
	assert.Equal(t, Position{X: 3, Y: 1}, block.Pos())
	assert.Equal(t, 1, report.Pushed())
	require.Len(t, report.Displacements, 2)
	assert.Equal(t, block.ID(), report.Displacements[0].Entity, "the chain resolves from the far end")
	assert.Equal(t, player.ID(), report.Displacements[1].Entity)
}

func TestMovePlayer_Directions(t *testing.T) {
	tests := []struct {
		dir  Direction
		want Position
	}{
		{Up, Position{X: 1, Y: 0}},
		{Down, Position{X: 1, Y: 2}},
		{Left, Position{X: 0, Y: 1}},
		{Right, Position{X: 2, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			g := NewGrid(3, 3)
			player := spawn(t, g, KindPlayer, 1, 1)

			report := MovePlayer(g, tt.dir, FixedSource(0))
			assert.True(t, report.Success)
			assert.Equal(t, tt.want, player.Pos())
			assert.Equal(t, tt.want, report.Target)
		})
	}
}

func TestMovePlayer_Boundary(t *testing.T) {
	g := NewGrid(2, 1)
	player := spawn(t, g, KindPlayer, 0, 0)

	assert.False(t, MovePlayer(g, Left, FixedSource(0)).Success)
	assert.False(t, MovePlayer(g, Up, FixedSource(0)).Success)
	assert.Equal(t, Position{X: 0, Y: 0}, player.Pos())
}

func TestMovePlayer_NoPlayerIsNoop(t *testing.T) {
	g := LoadLevel([]string{".M."}, LoadOptions{})
	report := MovePlayer(g, Right, FixedSource(0))
	assert.False(t, report.Success)
	assert.Equal(t, []string{".M."}, g.Rows())
}

func TestMovePlayer_ChainPush(t *testing.T) {
	tests := []struct {
		name    string
		layout  string
		success bool
		want    string
	}{
		{"two blocks with room", "PMM.", true, ".PMM"},
		{"two blocks against the edge", "PMM", false, "PMM"},
		{"block and box into a goal", "PMBX", true, ".PMB"},
		{"chain stopped by a wall", "PMB#", false, "PMB#"},
		{"block onto a goal", "PMX", true, ".PM"},
		{"block over a player tile", "PMT.", true, ".PM."},
		{"player refused by its tile", "PT.", false, "PT."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := LoadLevel([]string{tt.layout}, LoadOptions{})
			report := MovePlayer(g, Right, FixedSource(0))
			assert.Equal(t, tt.success, report.Success)
			assert.Equal(t, tt.want, g.Rows()[0])
			assertIndexConsistent(t, g)
		})
	}
}

func TestMovePlayer_BlockOnGoalStillBlocks(t *testing.T) {
	g := LoadLevel([]string{"PMX"}, LoadOptions{})
	require.True(t, MovePlayer(g, Right, FixedSource(0)).Success)

	// the block now shares the last cell with the goal and has nowhere to go
	report := MovePlayer(g, Right, FixedSource(0))
	assert.False(t, report.Success)
	assert.Equal(t, Position{X: 1, Y: 0}, g.Player().Pos())
}

func TestMovePlayer_PlayerTileAfterBlock(t *testing.T) {
	g := LoadLevel([]string{"PMT."}, LoadOptions{})
	require.True(t, MovePlayer(g, Right, FixedSource(0)).Success)

	// the block sits on the tile; the player may not follow
	assert.False(t, MovePlayer(g, Right, FixedSource(0)).Success)
	assert.Equal(t, Position{X: 1, Y: 0}, g.Player().Pos())
}

func TestMovePlayer_SuperpositionWallCollapsesSolid(t *testing.T) {
	g := NewGrid(4, 3)
	player := spawn(t, g, KindPlayer, 1, 1)
	wall := placeSuperposition(t, g, 2, 1, 1.0)
	source := NewRandomSource(42)

	report := MovePlayer(g, Right, source)

	assert.False(t, report.Success)
	assert.Equal(t, CollapsedSolid, wall.Collapse())
	assert.Same(t, wall, g.Entity(wall.ID()), "a solid wall stays on the grid")
	assert.Equal(t, Position{X: 1, Y: 1}, player.Pos())
	require.Len(t, report.Collapses, 1)
	assert.Equal(t, "solid", report.Collapses[0].Outcome)
}

func TestMovePlayer_SuperpositionWallCollapsesEmpty(t *testing.T) {
	g := NewGrid(4, 3)
	player := spawn(t, g, KindPlayer, 1, 1)
	wall := placeSuperposition(t, g, 2, 1, 0.0)

	report := MovePlayer(g, Right, NewRandomSource(42))

	assert.True(t, report.Success)
	assert.Equal(t, CollapsedEmpty, wall.Collapse())
	assert.Nil(t, g.Entity(wall.ID()), "an empty wall is removed")
	assert.Equal(t, Position{X: 2, Y: 1}, player.Pos())
	require.Len(t, report.Collapses, 1)
	assert.Equal(t, "empty", report.Collapses[0].Outcome)
}

func TestMovePlayer_CollapseHappensOnce(t *testing.T) {
	g := NewGrid(3, 1)
	spawn(t, g, KindPlayer, 0, 0)
	wall := placeSuperposition(t, g, 1, 0, 0.6)
	source := &countingSource{draw: 0.5}

	for i := 0; i < 3; i++ {
		report := MovePlayer(g, Right, source)
		assert.False(t, report.Success, "attempt %d", i)
	}
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, CollapsedSolid, wall.Collapse())
}

func TestMovePlayer_CollapseSurvivesRejectedPush(t *testing.T) {
	g := LoadLevel([]string{"PMQ"}, LoadOptions{QuantumProbability: floatPtr(0.5)})
	source := &countingSource{draw: 0.1}

	report := MovePlayer(g, Right, source)

	assert.False(t, report.Success)
	require.Len(t, report.Collapses, 1)
	assert.Equal(t, CollapsedSolid, report.Collapses[0].Result)
	assert.Equal(t, "PM#", g.Rows()[0])
}

func TestMovePlayer_BlockFallsThroughEmptyCollapse(t *testing.T) {
	g := LoadLevel([]string{"PMQ"}, LoadOptions{QuantumProbability: floatPtr(0.5)})

	report := MovePlayer(g, Right, FixedSource(0.9))

	assert.True(t, report.Success)
	assert.Equal(t, ".PM", g.Rows()[0])
	assert.Equal(t, 0, CountKind(g, KindSuperpositionWall))
}

func TestMovePlayer_EntangledPartnerMirrors(t *testing.T) {
	g := NewGrid(8, 8)
	spawn(t, g, KindPlayer, 1, 1)
	a := placeBlock(t, g, 2, 1, true)
	b := placeBlock(t, g, 5, 5, true)
	spawn(t, g, KindWall, 6, 5)
	require.NoError(t, Entangle(a, b))

	report := MovePlayer(g, Right, FixedSource(0))

	require.True(t, report.Success)
	assert.Equal(t, Position{X: 3, Y: 1}, a.Pos())
	assert.Equal(t, Position{X: 6, Y: 5}, b.Pos(), "the partner ignores what occupies its destination")
	assert.Equal(t, 1, report.Pushed())

	mirrored := 0
	for _, d := range report.Displacements {
		if d.Mirrored {
			mirrored++
			assert.Equal(t, b.ID(), d.Entity)
		}
	}
	assert.Equal(t, 1, mirrored)
	assertIndexConsistent(t, g)
	assertEntanglementSymmetric(t, g)
}

func TestMovePlayer_PartnerStopsAtBoundary(t *testing.T) {
	g := NewGrid(5, 2)
	spawn(t, g, KindPlayer, 0, 0)
	a := placeBlock(t, g, 1, 0, true)
	b := placeBlock(t, g, 4, 1, true)
	require.NoError(t, Entangle(a, b))

	report := MovePlayer(g, Right, FixedSource(0))

	require.True(t, report.Success)
	assert.Equal(t, Position{X: 2, Y: 0}, a.Pos())
	assert.Equal(t, Position{X: 4, Y: 1}, b.Pos(), "an out of bounds mirror is skipped")
}

func TestCollapse_IgnoresOtherKinds(t *testing.T) {
	source := &countingSource{}
	wall := NewEntity(KindWall, Position{})
	assert.Equal(t, Uncollapsed, Collapse(wall, source))
	assert.Zero(t, source.calls)
}

func floatPtr(f float64) *float64 { return &f }
