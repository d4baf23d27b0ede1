package engine

import "math/rand"

// CollapseSource supplies the uniform [0,1) draws that collapse superposition walls
type CollapseSource interface {
	Float64() float64
}

// FixedSource always returns the same draw. Useful for dry runs and tests.
type FixedSource float64

func (f FixedSource) Float64() float64 { return float64(f) }

// NewRandomSource returns a seeded math/rand source
func NewRandomSource(seed int64) CollapseSource {
	return rand.New(rand.NewSource(seed))
}

// Displacement records one entity changing cells during a move
type Displacement struct {
	Entity   EntityID `json:"entity"`
	Kind     Kind     `json:"kind"`
	From     Position `json:"from"`
	To       Position `json:"to"`
	Mirrored bool     `json:"mirrored,omitempty"`
}

// CollapseEvent records a superposition wall resolving on contact
type CollapseEvent struct {
	Entity   EntityID      `json:"entity"`
	Position Position      `json:"position"`
	Result   CollapseState `json:"-"`
	Outcome  string        `json:"outcome"`
}

// MoveReport is the outcome of one top-level move. A rejected move is a normal outcome,
// not an error; collapses triggered before the rejection are still reported.
type MoveReport struct {
	Success       bool            `json:"success"`
	Target        Position        `json:"target"`
	Displacements []Displacement  `json:"displacements,omitempty"`
	Collapses     []CollapseEvent `json:"collapses,omitempty"`
}

// Pushed counts displaced entities other than the mover and mirrored partners
func (r MoveReport) Pushed() int {
	n := 0
	for _, d := range r.Displacements {
		if !d.Mirrored {
			n++
		}
	}
	if n > 0 && r.Success {
		n-- // the mover itself
	}
	return n
}

// Collapse resolves a superposition wall once. The draw is compared against the wall's
// probability: below it the wall turns solid, otherwise it vanishes. Collapsed walls keep
// their state and the source is not consulted again.
func Collapse(e *Entity, source CollapseSource) CollapseState {
	if e.kind != KindSuperpositionWall || e.collapse != Uncollapsed {
		return e.collapse
	}
	if source.Float64() < e.collapseProbability {
		e.collapse = CollapsedSolid
	} else {
		e.collapse = CollapsedEmpty
	}
	return e.collapse
}

// TryMove attempts to move e one cell in dir, pushing any chain of movable entities in
// front of it. The whole chain resolves before TryMove returns.
func TryMove(g *Grid, e *Entity, dir Direction, source CollapseSource) MoveReport {
	r := &resolver{grid: g, source: source}
	dx, dy := dir.Delta()
	report := MoveReport{Target: e.pos.Add(dx, dy)}
	report.Success = r.push(e, dx, dy)
	report.Displacements = r.moved
	report.Collapses = r.collapsed
	return report
}

// MovePlayer moves the level's player. Without a player nothing happens.
func MovePlayer(g *Grid, dir Direction, source CollapseSource) MoveReport {
	player := g.Player()
	if player == nil {
		return MoveReport{}
	}
	return TryMove(g, player, dir, source)
}

type resolver struct {
	grid      *Grid
	source    CollapseSource
	moved     []Displacement
	collapsed []CollapseEvent
}

// push is the recursive step. Each level of recursion advances one cell along a straight
// line, so the chain ends at a free cell, a blocker or the boundary.
func (r *resolver) push(e *Entity, dx, dy int) bool {
	target := e.pos.Add(dx, dy)
	if !r.grid.InBounds(target) {
		return false
	}

	for _, occ := range r.grid.EntitiesAt(target) {
		if occ.kind != KindSuperpositionWall || occ.collapse != Uncollapsed {
			continue
		}
		result := Collapse(occ, r.source)
		r.collapsed = append(r.collapsed, CollapseEvent{
			Entity:   occ.id,
			Position: target,
			Result:   result,
			Outcome:  result.String(),
		})
		if result == CollapsedEmpty {
			r.grid.Remove(occ)
		}
	}

	occupants := r.grid.EntitiesAt(target)
	if e.kind == KindPlayer {
		for _, occ := range occupants {
			if occ.kind == KindPlayerBlockingTile {
				return false
			}
		}
	}

	var first *Entity
	for _, occ := range occupants {
		if occ.Category(e) == Blocks {
			first = occ
			break
		}
	}

	if first != nil {
		if first.Capability() != Movable {
			return false
		}
		if !r.push(first, dx, dy) {
			return false
		}
	}

	r.relocate(e, target, false)
	r.mirror(e, dx, dy)
	return true
}

// mirror moves e's partner by the same delta. The partner's destination is only bounds
// checked; occupants there are not consulted.
func (r *resolver) mirror(e *Entity, dx, dy int) {
	partner := r.grid.Entity(e.partner)
	if partner == nil {
		return
	}
	dest := partner.pos.Add(dx, dy)
	if !r.grid.InBounds(dest) {
		return
	}
	r.relocate(partner, dest, true)
}

func (r *resolver) relocate(e *Entity, to Position, mirrored bool) {
	from := e.pos
	if err := r.grid.Relocate(e, to); err != nil {
		return
	}
	r.moved = append(r.moved, Displacement{
		Entity:   e.id,
		Kind:     e.kind,
		From:     from,
		To:       to,
		Mirrored: mirrored,
	})
}
