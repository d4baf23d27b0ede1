package engine

import (
	"fmt"
	"time"
)

// GameEngine runs one loaded level. It is not safe for concurrent use; callers
// serialise access.
type GameEngine struct {
	config    *LevelConfig
	grid      *Grid
	source    CollapseSource
	selection SelectionState
	victory   bool
	message   string

	// history is cumulative across resets, current only covers moves since the last one
	history []MoveHistoryEntry
	current []MoveHistoryEntry
}

// NewEngine creates a new game engine for the level, collapsing superposition walls
// with a time-seeded random source
func NewEngine(config *LevelConfig) (*GameEngine, error) {
	return NewEngineWithSource(config, NewRandomSource(time.Now().UnixNano()))
}

// NewEngineWithSource creates a game engine that draws from source. Tests and the solver
// pass a FixedSource to make collapses deterministic.
func NewEngineWithSource(config *LevelConfig, source CollapseSource) (*GameEngine, error) {
	if err := ValidateLevelConfig(config); err != nil {
		return nil, err
	}
	if source == nil {
		source = globalSource{}
	}

	e := &GameEngine{
		config:  config,
		source:  source,
		history: []MoveHistoryEntry{},
		current: []MoveHistoryEntry{},
	}
	e.load()
	return e, nil
}

func (e *GameEngine) load() {
	e.grid = LoadLevel(e.config.Layout, e.config.Options(e.source))
	e.selection = SelectionState{}
	e.victory = CheckVictory(e.grid)
	e.message = e.config.WelcomeMessage()
	if e.victory {
		e.message = e.config.VictoryMessage()
	}
}

// Grid exposes the live grid. Mutating it bypasses history and victory tracking.
func (e *GameEngine) Grid() *Grid {
	return e.grid
}

// Selection returns the entanglement selection state
func (e *GameEngine) Selection() SelectionState {
	return e.selection
}

// GetState builds the client-facing view of the level
func (e *GameEngine) GetState() *GameState {
	state := &GameState{
		Width:             e.grid.Width(),
		Height:            e.grid.Height(),
		Rows:              e.grid.Rows(),
		Entities:          make([]EntityView, 0, e.grid.Len()),
		Selected:          e.selection.Selected,
		Message:           e.message,
		Victory:           e.victory,
		ConfigName:        e.config.Name,
		MoveHistory:       append([]MoveHistoryEntry{}, e.history...),
		TotalMoves:        len(e.history),
		CurrentMoves:      append([]MoveHistoryEntry{}, e.current...),
		CurrentMovesCount: len(e.current),
	}
	for _, ent := range e.grid.Entities() {
		state.Entities = append(state.Entities, ent.View())
	}
	if pos, ok := e.GetPlayerPosition(); ok {
		state.PlayerPos = &pos
		state.LocalView3x3 = LocalView(e.grid, pos)
	}
	return state
}

// Reset reloads the level. Cumulative history survives, the current segment does not.
func (e *GameEngine) Reset() *GameState {
	e.load()
	e.current = []MoveHistoryEntry{}
	return e.GetState()
}

// IsVictory returns whether a quantum box sits on a goal
func (e *GameEngine) IsVictory() bool {
	return e.victory
}

// GetPlayerPosition returns the player's cell, if the level has a player
func (e *GameEngine) GetPlayerPosition() (Position, bool) {
	p := e.grid.Player()
	if p == nil {
		return Position{}, false
	}
	return p.pos, true
}

// Move attempts to move the player in the named direction
func (e *GameEngine) Move(direction string) bool {
	dir, ok := ParseDirection(direction)
	if !ok {
		e.message = fmt.Sprintf("Invalid direction %q", direction)
		return false
	}
	return e.MoveDirection(dir).Success
}

// MoveDirection moves the player one cell, resolving pushes, collapses and entangled
// mirrors, and records the attempt in the history. A completed level accepts no moves.
func (e *GameEngine) MoveDirection(dir Direction) MoveReport {
	if e.victory {
		e.message = "Level complete. Reset or advance to the next level."
		return MoveReport{}
	}

	from, hasPlayer := e.GetPlayerPosition()
	report := MovePlayer(e.grid, dir, e.source)
	to, _ := e.GetPlayerPosition()

	if hasPlayer {
		e.record(MoveHistoryEntry{
			Action:       dir.String(),
			FromPosition: from,
			ToPosition:   to,
			Pushed:       report.Pushed(),
			Collapses:    len(report.Collapses),
			Timestamp:    time.Now().Unix(),
			Success:      report.Success,
		})
	}

	e.victory = CheckVictory(e.grid)
	switch {
	case e.victory:
		e.message = e.config.VictoryMessage()
	case report.Success:
		e.message = fmt.Sprintf("Moved %s", dir)
	default:
		e.message = e.config.BlockedMessage(dir)
	}
	return report
}

func (e *GameEngine) record(entry MoveHistoryEntry) {
	entry.MoveNumber = len(e.history) + 1
	e.history = append(e.history, entry)
	e.current = append(e.current, entry)
}

// CanMove reports whether a move would certainly succeed. The check runs on a copy of
// the grid and treats every uncollapsed superposition wall as solid unless its
// probability is zero.
func (e *GameEngine) CanMove(direction string) bool {
	dir, ok := ParseDirection(direction)
	if !ok || e.victory {
		return false
	}
	return MovePlayer(e.grid.Clone(), dir, FixedSource(0)).Success
}

// GetPossibleMoves returns all directions CanMove accepts
func (e *GameEngine) GetPossibleMoves() []string {
	var possible []string
	for _, dir := range Directions {
		if e.CanMove(dir.String()) {
			possible = append(possible, dir.String())
		}
	}
	return possible
}

// Select feeds a pick at (x, y) into the entanglement selection machine
func (e *GameEngine) Select(x, y int) SelectionOutcome {
	var outcome SelectionOutcome
	e.selection, outcome = Select(e.grid, e.selection, Position{X: x, Y: y})

	switch outcome {
	case SelectionSelected:
		e.message = fmt.Sprintf("Selected block at (%d,%d)", x, y)
	case SelectionDeselected:
		e.message = "Selection cleared"
	case SelectionEntangled:
		e.message = "Blocks entangled"
	case SelectionUnentangled:
		e.message = "Entanglement broken"
	default:
		e.message = fmt.Sprintf("No entanglable block at (%d,%d)", x, y)
	}
	return outcome
}

// GetConfig returns the level being played
func (e *GameEngine) GetConfig() *LevelConfig {
	return e.config
}

// SetConfig switches to another level and starts it from scratch, history included
func (e *GameEngine) SetConfig(config *LevelConfig) error {
	if err := ValidateLevelConfig(config); err != nil {
		return err
	}
	e.config = config
	e.history = []MoveHistoryEntry{}
	e.current = []MoveHistoryEntry{}
	e.load()
	return nil
}

// GetMoveHistory returns the complete move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return e.history
}

// GetLastMove returns the last move made, or nil if no moves
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.history) == 0 {
		return nil
	}
	return &e.history[len(e.history)-1]
}

// EngineSnapshot is everything needed to resume a level where it was left
type EngineSnapshot struct {
	Grid      GridSnapshot       `json:"grid" msgpack:"grid"`
	Selection SelectionState     `json:"selection" msgpack:"selection"`
	Victory   bool               `json:"victory" msgpack:"victory"`
	Message   string             `json:"message" msgpack:"message"`
	History   []MoveHistoryEntry `json:"history" msgpack:"history"`
	Current   []MoveHistoryEntry `json:"current" msgpack:"current"`
}

// Snapshot captures the engine state for persistence
func (e *GameEngine) Snapshot() EngineSnapshot {
	return EngineSnapshot{
		Grid:      e.grid.Snapshot(),
		Selection: e.selection,
		Victory:   e.victory,
		Message:   e.message,
		History:   append([]MoveHistoryEntry{}, e.history...),
		Current:   append([]MoveHistoryEntry{}, e.current...),
	}
}

// Restore replaces the engine state with a snapshot taken from the same level
func (e *GameEngine) Restore(s EngineSnapshot) error {
	grid, err := RestoreGrid(s.Grid)
	if err != nil {
		return err
	}
	e.grid = grid
	e.selection = s.Selection
	if e.grid.Entity(e.selection.Selected) == nil {
		e.selection = SelectionState{}
	}
	e.victory = CheckVictory(grid)
	e.message = s.Message
	e.history = append([]MoveHistoryEntry{}, s.History...)
	e.current = append([]MoveHistoryEntry{}, s.Current...)
	return nil
}

// SelectForEntanglement applies one selection pick to a grid
func SelectForEntanglement(g *Grid, state SelectionState, pos Position) (SelectionState, SelectionOutcome) {
	return Select(g, state, pos)
}
