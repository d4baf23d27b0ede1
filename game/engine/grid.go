package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOutOfBounds   = errors.New("position out of bounds")
	ErrNotPlaced     = errors.New("entity is not on the grid")
	ErrAlreadyPlaced = errors.New("entity is already on the grid")
)

// Grid is the authoritative spatial index. Each cell holds the ids of its occupants in
// insertion order; an entity's stored position always names the bucket that holds it.
type Grid struct {
	width    int
	height   int
	cells    [][]EntityID
	entities map[EntityID]*Entity
	nextID   EntityID
}

// NewGrid creates an empty width x height grid
func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grid{
		width:    width,
		height:   height,
		cells:    make([][]EntityID, width*height),
		entities: make(map[EntityID]*Entity),
		nextID:   1,
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// Len returns the number of entities on the grid
func (g *Grid) Len() int { return len(g.entities) }

// InBounds reports whether pos lies inside the grid
func (g *Grid) InBounds(pos Position) bool {
	return pos.X >= 0 && pos.X < g.width && pos.Y >= 0 && pos.Y < g.height
}

func (g *Grid) index(pos Position) int {
	return pos.Y*g.width + pos.X
}

// EntitiesAt returns the occupants of pos in insertion order. The slice is a copy;
// out of bounds positions have no occupants.
func (g *Grid) EntitiesAt(pos Position) []*Entity {
	if !g.InBounds(pos) {
		return nil
	}
	bucket := g.cells[g.index(pos)]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*Entity, 0, len(bucket))
	for _, id := range bucket {
		out = append(out, g.entities[id])
	}
	return out
}

// Entity looks an entity up by id
func (g *Grid) Entity(id EntityID) *Entity {
	if id == NoEntity {
		return nil
	}
	return g.entities[id]
}

// Entities returns every entity, row by row and in insertion order within a cell
func (g *Grid) Entities() []*Entity {
	out := make([]*Entity, 0, len(g.entities))
	for _, bucket := range g.cells {
		for _, id := range bucket {
			out = append(out, g.entities[id])
		}
	}
	return out
}

// Player returns the level's player, or nil when there is none
func (g *Grid) Player() *Entity {
	for _, bucket := range g.cells {
		for _, id := range bucket {
			if e := g.entities[id]; e.kind == KindPlayer {
				return e
			}
		}
	}
	return nil
}

// Place adds an unplaced entity at its own position, assigning an id if it has none
func (g *Grid) Place(e *Entity) error {
	if e == nil {
		return ErrNotPlaced
	}
	if e.placed {
		return ErrAlreadyPlaced
	}
	if !g.InBounds(e.pos) {
		return fmt.Errorf("place %s at (%d,%d): %w", e.kind, e.pos.X, e.pos.Y, ErrOutOfBounds)
	}
	if e.id == NoEntity {
		e.id = g.nextID
	} else if _, taken := g.entities[e.id]; taken {
		return fmt.Errorf("place entity %d: %w", e.id, ErrAlreadyPlaced)
	}
	if e.id >= g.nextID {
		g.nextID = e.id + 1
	}

	idx := g.index(e.pos)
	g.cells[idx] = append(g.cells[idx], e.id)
	g.entities[e.id] = e
	e.placed = true
	return nil
}

// Spawn creates and places a new entity of the given kind
func (g *Grid) Spawn(kind Kind, pos Position) (*Entity, error) {
	e := NewEntity(kind, pos)
	if err := g.Place(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Remove takes an entity off the grid. An entangled entity is unentangled first so no
// partner is left pointing at a missing id.
func (g *Grid) Remove(e *Entity) error {
	if !g.owns(e) {
		return ErrNotPlaced
	}
	if e.Entangled() {
		Unentangle(g, e)
	}
	g.detach(e)
	delete(g.entities, e.id)
	e.placed = false
	return nil
}

// Relocate moves a placed entity to pos. The entity leaves its old bucket and joins the
// end of the new one within the same call, so no caller observes a half-moved entity.
func (g *Grid) Relocate(e *Entity, pos Position) error {
	if !g.owns(e) {
		return ErrNotPlaced
	}
	if !g.InBounds(pos) {
		return fmt.Errorf("relocate %s to (%d,%d): %w", e.kind, pos.X, pos.Y, ErrOutOfBounds)
	}
	g.detach(e)
	e.pos = pos
	idx := g.index(pos)
	g.cells[idx] = append(g.cells[idx], e.id)
	return nil
}

func (g *Grid) owns(e *Entity) bool {
	return e != nil && e.placed && g.entities[e.id] == e
}

func (g *Grid) detach(e *Entity) {
	idx := g.index(e.pos)
	bucket := g.cells[idx]
	for i, id := range bucket {
		if id == e.id {
			g.cells[idx] = append(bucket[:i:i], bucket[i+1:]...)
			return
		}
	}
}

// Rows renders the grid with one layout token per cell. When several entities share a
// cell the most prominent one is shown: player, then movables, then walls, then goals.
func (g *Grid) Rows() []string {
	rows := make([]string, g.height)
	for y := 0; y < g.height; y++ {
		var b strings.Builder
		for x := 0; x < g.width; x++ {
			b.WriteByte(g.cellToken(Position{X: x, Y: y}))
		}
		rows[y] = b.String()
	}
	return rows
}

func (g *Grid) cellToken(pos Position) byte {
	best, bestRank := byte('.'), 0
	for _, id := range g.cells[g.index(pos)] {
		e := g.entities[id]
		if rank := tokenRank(e.kind); rank > bestRank {
			best, bestRank = e.Token(), rank
		}
	}
	return best
}

func tokenRank(k Kind) int {
	switch k {
	case KindPlayer:
		return 6
	case KindQuantumBox:
		return 5
	case KindBlock:
		return 4
	case KindWall, KindSuperpositionWall:
		return 3
	case KindPlayerBlockingTile:
		return 2
	case KindGoal:
		return 1
	}
	return 0
}

// EntitySnapshot is the persisted form of one entity
type EntitySnapshot struct {
	ID          EntityID      `json:"id" msgpack:"id"`
	Kind        Kind          `json:"kind" msgpack:"kind"`
	X           int           `json:"x" msgpack:"x"`
	Y           int           `json:"y" msgpack:"y"`
	Entanglable bool          `json:"entanglable,omitempty" msgpack:"entanglable,omitempty"`
	Partner     EntityID      `json:"partner,omitempty" msgpack:"partner,omitempty"`
	Probability float64       `json:"probability,omitempty" msgpack:"probability,omitempty"`
	Collapse    CollapseState `json:"collapse,omitempty" msgpack:"collapse,omitempty"`
}

// GridSnapshot is the persisted form of a grid. Entities are listed in Entities() order,
// which restores every cell's insertion order.
type GridSnapshot struct {
	Width    int              `json:"width" msgpack:"width"`
	Height   int              `json:"height" msgpack:"height"`
	NextID   EntityID         `json:"next_id" msgpack:"next_id"`
	Entities []EntitySnapshot `json:"entities" msgpack:"entities"`
}

// Snapshot captures the full grid state
func (g *Grid) Snapshot() GridSnapshot {
	s := GridSnapshot{
		Width:    g.width,
		Height:   g.height,
		NextID:   g.nextID,
		Entities: make([]EntitySnapshot, 0, len(g.entities)),
	}
	for _, e := range g.Entities() {
		s.Entities = append(s.Entities, EntitySnapshot{
			ID:          e.id,
			Kind:        e.kind,
			X:           e.pos.X,
			Y:           e.pos.Y,
			Entanglable: e.entanglable,
			Partner:     e.partner,
			Probability: e.collapseProbability,
			Collapse:    e.collapse,
		})
	}
	return s
}

// RestoreGrid rebuilds a grid from a snapshot. It rejects snapshots with unknown kinds,
// more than one player, out of bounds or duplicate ids, and pairs that are not two
// entanglable blocks pointing at each other.
func RestoreGrid(s GridSnapshot) (*Grid, error) {
	if s.Width < 0 || s.Height < 0 {
		return nil, fmt.Errorf("restore grid: invalid size %dx%d", s.Width, s.Height)
	}
	g := NewGrid(s.Width, s.Height)
	players := 0
	for _, es := range s.Entities {
		if es.ID == NoEntity {
			return nil, fmt.Errorf("restore grid: entity without id")
		}
		if _, ok := kindNames[es.Kind]; !ok {
			return nil, fmt.Errorf("restore grid: entity %d has unknown %s", es.ID, es.Kind)
		}
		if es.Kind == KindPlayer {
			if players++; players > 1 {
				return nil, fmt.Errorf("restore grid: entity %d is a second player", es.ID)
			}
		}
		if es.Entanglable && es.Kind != KindBlock {
			return nil, fmt.Errorf("restore grid: entity %d: %s: %w", es.ID, es.Kind, ErrNotEntanglable)
		}
		if es.Collapse > CollapsedEmpty {
			return nil, fmt.Errorf("restore grid: entity %d has invalid collapse state %d", es.ID, es.Collapse)
		}
		e := &Entity{
			id:                  es.ID,
			kind:                es.Kind,
			pos:                 Position{X: es.X, Y: es.Y},
			entanglable:         es.Entanglable,
			partner:             es.Partner,
			collapseProbability: es.Probability,
			collapse:            es.Collapse,
		}
		if err := g.Place(e); err != nil {
			return nil, fmt.Errorf("restore grid: %w", err)
		}
	}
	for _, e := range g.entities {
		if e.partner == NoEntity {
			continue
		}
		if !e.entanglable {
			return nil, fmt.Errorf("restore grid: entangled entity %d: %w", e.id, ErrNotEntanglable)
		}
		p := g.entities[e.partner]
		if p == nil || p.partner != e.id || p == e {
			return nil, fmt.Errorf("restore grid: asymmetric entanglement on entity %d", e.id)
		}
	}
	if s.NextID > g.nextID {
		g.nextID = s.NextID
	}
	return g, nil
}

// Clone returns an independent deep copy of the grid
func (g *Grid) Clone() *Grid {
	c, err := RestoreGrid(g.Snapshot())
	if err != nil {
		// a live grid always satisfies the restore checks
		panic(err)
	}
	return c
}
