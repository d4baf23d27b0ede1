package engine

import (
	"fmt"
	"strings"
)

// Kind identifies the variant of an Entity
type Kind uint8

const (
	KindWall Kind = iota + 1
	KindPlayer
	KindBlock
	KindQuantumBox
	KindGoal
	KindSuperpositionWall
	KindPlayerBlockingTile
)

// Capability tells whether an entity can be displaced by a push
type Capability uint8

const (
	Immovable Capability = iota
	Movable
)

// BlockCategory tells how an occupant reacts to something entering its cell
type BlockCategory uint8

const (
	Blocks BlockCategory = iota
	PassThrough
	PlayerOnlyBlock
)

// CollapseState is the lifecycle of a superposition wall
type CollapseState uint8

const (
	Uncollapsed CollapseState = iota
	CollapsedSolid
	CollapsedEmpty
)

// Validation constants
const (
	MaxGridSize  = 64
	MaxBulkMoves = 50
)

var kindNames = map[Kind]string{
	KindWall:               "wall",
	KindPlayer:             "player",
	KindBlock:              "block",
	KindQuantumBox:         "quantum_box",
	KindGoal:               "goal",
	KindSuperpositionWall:  "superposition_wall",
	KindPlayerBlockingTile: "player_blocking_tile",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText encodes the kind by name so JSON views stay readable
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown entity kind %q", string(text))
}

func (s CollapseState) String() string {
	switch s {
	case CollapsedSolid:
		return "solid"
	case CollapsedEmpty:
		return "empty"
	default:
		return "uncollapsed"
	}
}

// Position represents x,y coordinates
type Position struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// Add returns the position shifted by dx, dy
func (p Position) Add(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Direction is one of the four cardinal moves
type Direction uint8

const (
	Up Direction = iota + 1
	Down
	Left
	Right
)

// Directions lists every direction in the order the API reports them
var Directions = []Direction{Up, Down, Left, Right}

// ParseDirection maps "up", "down", "left" or "right" (any case) to a Direction
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, true
	case "down":
		return Down, true
	case "left":
		return Left, true
	case "right":
		return Right, true
	}
	return 0, false
}

// Delta returns the unit displacement of the direction
func (d Direction) Delta() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "none"
}

// EntityView is the serialisable view of one entity
type EntityView struct {
	ID                  EntityID `json:"id"`
	Kind                Kind     `json:"kind"`
	X                   int      `json:"x"`
	Y                   int      `json:"y"`
	Entanglable         bool     `json:"entanglable,omitempty"`
	Partner             EntityID `json:"partner,omitempty"`
	CollapseProbability float64  `json:"collapse_probability,omitempty"`
	Collapse            string   `json:"collapse,omitempty"`
}

// GameState represents the complete, client-facing game state
type GameState struct {
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	Rows        []string           `json:"rows"`
	Entities    []EntityView       `json:"entities"`
	PlayerPos   *Position          `json:"player_pos,omitempty"`
	Selected    EntityID           `json:"selected,omitempty"`
	Message     string             `json:"message"`
	Victory     bool               `json:"victory"`
	ConfigName  string             `json:"config_name"`
	MoveHistory []MoveHistoryEntry `json:"move_history"`
	TotalMoves  int                `json:"total_moves"`

	// CurrentMoves tracks only the moves since the last reset. It mirrors MoveHistory entries
	// but gets cleared on reset while MoveHistory remains cumulative.
	CurrentMoves      []MoveHistoryEntry `json:"current_moves"`
	CurrentMovesCount int                `json:"current_moves_count"`

	// Computed helper view (not required for core game logic)
	LocalView3x3 []string `json:"local_view_3x3,omitempty"`
}

// MoveHistoryEntry represents a single move in the game history
type MoveHistoryEntry struct {
	Action       string   `json:"action" msgpack:"action"`
	FromPosition Position `json:"from_position" msgpack:"from"`
	ToPosition   Position `json:"to_position" msgpack:"to"`
	Pushed       int      `json:"pushed,omitempty" msgpack:"pushed"`
	Collapses    int      `json:"collapses,omitempty" msgpack:"collapses"`
	Timestamp    int64    `json:"timestamp" msgpack:"ts"`
	Success      bool     `json:"success" msgpack:"ok"`
	MoveNumber   int      `json:"move_number" msgpack:"n"`
}
