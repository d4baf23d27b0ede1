package engine

// EntityID identifies an entity within one grid. Ids are never reused inside a level.
type EntityID uint32

// NoEntity is the zero id, used for "no partner" and "nothing selected"
const NoEntity EntityID = 0

// Entity is a single game object. Kind-specific payload lives in the same struct:
// entanglable/partner only matter for blocks, collapse fields only for superposition walls.
type Entity struct {
	id   EntityID
	kind Kind
	pos  Position

	placed bool

	entanglable bool
	partner     EntityID

	collapseProbability float64
	collapse            CollapseState
}

// NewEntity builds an unplaced entity of the given kind at pos
func NewEntity(kind Kind, pos Position) *Entity {
	return &Entity{kind: kind, pos: pos}
}

// NewBlock builds an unplaced movable block
func NewBlock(pos Position, entanglable bool) *Entity {
	return &Entity{kind: KindBlock, pos: pos, entanglable: entanglable}
}

// NewSuperpositionWall builds an unplaced, uncollapsed superposition wall
func NewSuperpositionWall(pos Position, probability float64) *Entity {
	return &Entity{kind: KindSuperpositionWall, pos: pos, collapseProbability: probability}
}

func (e *Entity) ID() EntityID { return e.id }

func (e *Entity) Kind() Kind { return e.kind }

func (e *Entity) Pos() Position { return e.pos }

func (e *Entity) Entanglable() bool { return e.entanglable }

func (e *Entity) Partner() EntityID { return e.partner }

func (e *Entity) Collapse() CollapseState { return e.collapse }

// CollapseProbability is the chance a superposition wall turns solid on first contact
func (e *Entity) CollapseProbability() float64 { return e.collapseProbability }

// Entangled reports whether the entity currently has a partner
func (e *Entity) Entangled() bool { return e.partner != NoEntity }

// Capability reports whether a push can displace the entity.
// The player moves only on input and is never pushed.
func (e *Entity) Capability() Capability {
	switch e.kind {
	case KindBlock, KindQuantumBox:
		return Movable
	default:
		return Immovable
	}
}

// Category reports how the entity reacts to mover entering its cell
func (e *Entity) Category(mover *Entity) BlockCategory {
	switch e.kind {
	case KindGoal:
		return PassThrough
	case KindPlayerBlockingTile:
		if mover != nil && mover.kind == KindPlayer {
			return Blocks
		}
		return PlayerOnlyBlock
	case KindSuperpositionWall:
		if e.collapse == CollapsedEmpty {
			return PassThrough
		}
		return Blocks
	default:
		return Blocks
	}
}

// Token returns the layout character for the entity
func (e *Entity) Token() byte {
	switch e.kind {
	case KindWall:
		return '#'
	case KindPlayer:
		return 'P'
	case KindQuantumBox:
		return 'B'
	case KindGoal:
		return 'X'
	case KindBlock:
		if e.entanglable {
			return 'E'
		}
		return 'M'
	case KindSuperpositionWall:
		if e.collapse == CollapsedSolid {
			return '#'
		}
		return 'Q'
	case KindPlayerBlockingTile:
		return 'T'
	}
	return '.'
}

// View returns the serialisable view of the entity
func (e *Entity) View() EntityView {
	v := EntityView{
		ID:          e.id,
		Kind:        e.kind,
		X:           e.pos.X,
		Y:           e.pos.Y,
		Entanglable: e.entanglable,
		Partner:     e.partner,
	}
	if e.kind == KindSuperpositionWall {
		v.CollapseProbability = e.collapseProbability
		v.Collapse = e.collapse.String()
	}
	return v
}
