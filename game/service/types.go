package service

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoLevels        = errors.New("no levels available")
	ErrNoMoreLevels    = errors.New("all levels complete")
	ErrLevelNotWon     = errors.New("level is not complete yet")
	ErrInvalidMove     = errors.New("invalid direction")
	ErrEmptyMoveList   = errors.New("no moves given")
)

// Stop reason codes reported by moves and bulk moves
const (
	StopBlockedBoundary = "blocked_boundary"
	StopBlockedWall     = "blocked_wall"
	StopBlockedChain    = "blocked_chain"
	StopBlockedTile     = "blocked_tile"
	StopCollapsedSolid  = "collapsed_solid"
	StopInvalidMove     = "invalid_direction"
	StopNoPlayer        = "no_player"
	StopLevelComplete   = "level_complete"
	StopVictory         = "victory"
)

// Event types
const (
	EventMove       = "move"
	EventPush       = "push"
	EventMirror     = "mirror"
	EventCollapse   = "collapse"
	EventBlocked    = "blocked"
	EventVictory    = "victory"
	EventReset      = "reset"
	EventSelect     = "select"
	EventLevel      = "level"
	EventEntangle   = "entangle"
	EventUnentangle = "unentangle"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	GameState      *engine.GameState   `json:"game_state"`
	GameConfig     *engine.LevelConfig `json:"game_config"`
}

// MoveResult contains the result of a move operation
type MoveResult struct {
	Success     bool              `json:"success"`
	GameState   *engine.GameState `json:"game_state"`
	Message     string            `json:"message"`
	Events      []GameEvent       `json:"events,omitempty"`
	Step        *StepInfo         `json:"step,omitempty"`
	AttemptedTo *AttemptInfo      `json:"attempted_to,omitempty"`
}

// BulkMoveResult contains the result of multiple moves
type BulkMoveResult struct {
	// Summary
	MovesExecuted  int               `json:"moves_executed"`
	RequestedMoves int               `json:"requested_moves"`
	Success        bool              `json:"success"`
	GameState      *engine.GameState `json:"game_state"`
	Events         []GameEvent       `json:"events"`
	StoppedReason  string            `json:"stopped_reason,omitempty"`   // Human-readable reason
	StopReasonCode string            `json:"stop_reason_code,omitempty"` // blocked_boundary|blocked_wall|blocked_chain|blocked_tile|collapsed_solid|invalid_direction|no_player|level_complete|victory
	StoppedOnMove  int               `json:"stopped_on_move,omitempty"`  // 1-based index of the move that caused stop
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`

	// Start/end snapshot
	StartPos    engine.Position `json:"start_pos"`
	EndPos      engine.Position `json:"end_pos"`
	TotalPushed int             `json:"total_pushed"`
	Collapses   int             `json:"collapses"`

	// Per-step compact trace (only for this call)
	Steps []StepInfo `json:"steps,omitempty"`

	// Failure diagnostics
	AttemptedTo *AttemptInfo `json:"attempted_to,omitempty"`

	// Final status aids
	Victory       bool     `json:"victory"`
	Message       string   `json:"message,omitempty"`
	PossibleMoves []string `json:"possible_moves,omitempty"`
	LocalView3x3  []string `json:"local_view_3x3,omitempty"`
}

// StepInfo is a compact record for each executed move
type StepInfo struct {
	Idx       int                    `json:"idx"`
	Dir       string                 `json:"dir"`
	From      engine.Position        `json:"from"`
	To        engine.Position        `json:"to"`
	Pushed    int                    `json:"pushed,omitempty"`
	Mirrored  int                    `json:"mirrored,omitempty"`
	Collapses []engine.CollapseEvent `json:"collapses,omitempty"`
	Success   bool                   `json:"success"`
	Victory   bool                   `json:"victory,omitempty"`
}

// AttemptInfo details the cell a rejected move tried to enter
type AttemptInfo struct {
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Occupants []string `json:"occupants,omitempty"`
	Reason    string   `json:"reason"`
}

// SelectResult contains the result of an entanglement selection
type SelectResult struct {
	Outcome   string            `json:"outcome"`
	Selected  engine.EntityID   `json:"selected,omitempty"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	Events    []GameEvent       `json:"events,omitempty"`
}

// CellInfo describes one grid cell
type CellInfo struct {
	X         int                 `json:"x"`
	Y         int                 `json:"y"`
	InBounds  bool                `json:"in_bounds"`
	Token     string              `json:"token"`
	Occupants []engine.EntityView `json:"occupants"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"` // move, push, mirror, collapse, blocked, victory, reset, select, entangle, unentangle, level
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Position  engine.Position `json:"position,omitempty"`
	Entity    engine.EntityID `json:"entity,omitempty"`
}

func newEvent(eventType, message string) GameEvent {
	return GameEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a level
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Index       int    `json:"index"` // Position in play order
}
