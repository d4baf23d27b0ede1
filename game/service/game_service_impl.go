package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
)

// gameServiceImpl implements the GameService interface. Its mutex is the single
// authority for push resolution: every engine mutation in the process runs under it.
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// CreateSession creates a new game session on the named level, or on the first level
// in play order when no name is given
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	available, err := s.configs.ListConfigs()
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	if len(available) == 0 {
		return nil, ErrNoLevels
	}

	configID := strings.TrimSuffix(configName, ".json")
	if configID == "" {
		configID = available[0].ConfigID
	}

	config, err := s.configs.LoadConfig(configID)
	if err != nil {
		ids := make([]string, 0, len(available))
		for _, cfg := range available {
			ids = append(ids, cfg.ConfigID)
		}
		return nil, fmt.Errorf("level '%s' not found. Available levels: %v: %w", configID, ids, err)
	}

	// Let session manager generate a proper 4-character ID
	session, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.WithFields(log.Fields{"session": session.ID, "level": configID}).Info("session created")
	return sessionInfo(session), nil
}

func sessionInfo(session *Session) *SessionInfo {
	return &SessionInfo{
		ID:             session.ID,
		ConfigName:     session.ConfigID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		GameState:      session.Engine.GetState(),
		GameConfig:     session.Config,
	}
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sessionInfo(session), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}

	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// Move executes a single move for a session
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string, reset bool) (*MoveResult, error) {
	dir, ok := engine.ParseDirection(direction)
	if !ok {
		return nil, fmt.Errorf("%w: %q (use up, down, left or right)", ErrInvalidMove, direction)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	events := []GameEvent{}
	if reset {
		sess.Engine.Reset()
		events = append(events, newEvent(EventReset, "Level reset to initial state"))
	}

	step, attempt, stepEvents := s.executeMove(sess, 1, dir)
	events = append(events, stepEvents...)

	state := sess.Engine.GetState()
	result := &MoveResult{
		Success:   step.Success,
		GameState: state,
		Message:   state.Message,
		Events:    events,
	}
	if step.Success {
		result.Step = step
	} else {
		result.AttemptedTo = attempt
	}

	s.persist(sessionID, "move")
	return result, nil
}

// executeMove runs one move and describes it. On rejection it also reports which cell
// refused the move and why.
func (s *gameServiceImpl) executeMove(sess *Session, idx int, dir engine.Direction) (*StepInfo, *AttemptInfo, []GameEvent) {
	eng := sess.Engine
	from, hasPlayer := eng.GetPlayerPosition()
	wasVictory := eng.IsVictory()

	report := eng.MoveDirection(dir)
	to, _ := eng.GetPlayerPosition()

	step := &StepInfo{
		Idx:       idx,
		Dir:       dir.String(),
		From:      from,
		To:        to,
		Pushed:    report.Pushed(),
		Collapses: report.Collapses,
		Success:   report.Success,
		Victory:   eng.IsVictory(),
	}

	var events []GameEvent
	for _, c := range report.Collapses {
		ev := newEvent(EventCollapse, fmt.Sprintf("Superposition wall at (%d,%d) collapsed %s", c.Position.X, c.Position.Y, c.Outcome))
		ev.Position = c.Position
		ev.Entity = c.Entity
		events = append(events, ev)
	}

	if !report.Success {
		attempt := &AttemptInfo{X: report.Target.X, Y: report.Target.Y}
		switch {
		case wasVictory:
			attempt.Reason = StopLevelComplete
		case !hasPlayer:
			attempt.Reason = StopNoPlayer
		default:
			attempt.Reason = blockReason(eng.Grid(), report)
			for _, occ := range eng.Grid().EntitiesAt(report.Target) {
				attempt.Occupants = append(attempt.Occupants, occ.Kind().String())
			}
		}
		ev := newEvent(EventBlocked, fmt.Sprintf("Move %s blocked: %s", dir, attempt.Reason))
		ev.Position = report.Target
		events = append(events, ev)
		return step, attempt, events
	}

	for _, d := range report.Displacements {
		switch {
		case d.Mirrored:
			step.Mirrored++
			ev := newEvent(EventMirror, fmt.Sprintf("Entangled %s mirrored to (%d,%d)", d.Kind, d.To.X, d.To.Y))
			ev.Position = d.To
			ev.Entity = d.Entity
			events = append(events, ev)
		case d.Kind != engine.KindPlayer:
			ev := newEvent(EventPush, fmt.Sprintf("Pushed %s to (%d,%d)", d.Kind, d.To.X, d.To.Y))
			ev.Position = d.To
			ev.Entity = d.Entity
			events = append(events, ev)
		}
	}

	ev := newEvent(EventMove, fmt.Sprintf("Moved %s to (%d,%d)", dir, to.X, to.Y))
	ev.Position = to
	events = append(events, ev)

	if step.Victory {
		events = append(events, newEvent(EventVictory, sess.Config.VictoryMessage()))
	}
	return step, nil, events
}

// blockReason classifies a rejected move from the grid left behind by it
func blockReason(g *engine.Grid, report engine.MoveReport) string {
	if !g.InBounds(report.Target) {
		return StopBlockedBoundary
	}
	for _, c := range report.Collapses {
		if c.Position == report.Target && c.Result == engine.CollapsedSolid {
			return StopCollapsedSolid
		}
	}
	player := g.Player()
	for _, occ := range g.EntitiesAt(report.Target) {
		if occ.Kind() == engine.KindPlayerBlockingTile {
			return StopBlockedTile
		}
		if occ.Category(player) == engine.Blocks {
			if occ.Capability() == engine.Movable {
				return StopBlockedChain
			}
			return StopBlockedWall
		}
	}
	return StopBlockedChain
}

// BulkMove executes multiple moves in sequence, stopping at the first rejected move
// or at victory
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*BulkMoveResult, error) {
	if len(moves) == 0 && !reset {
		return nil, ErrEmptyMoveList
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Events:         make([]GameEvent, 0),
		Success:        true,
	}

	// Handle reset
	if reset {
		sess.Engine.Reset()
		result.Events = append(result.Events, newEvent(EventReset, "Level reset to initial state"))
	}
	result.StartPos, _ = sess.Engine.GetPlayerPosition()

	// Limit moves to prevent abuse
	if len(moves) > engine.MaxBulkMoves {
		result.Truncated = true
		result.Limit = engine.MaxBulkMoves
		moves = moves[:engine.MaxBulkMoves]
	}

	for i, move := range moves {
		dir, ok := engine.ParseDirection(move)
		if !ok {
			result.Success = false
			result.StopReasonCode = StopInvalidMove
			result.StoppedReason = fmt.Sprintf("move %d invalid: %q", i+1, move)
			result.StoppedOnMove = i + 1
			break
		}

		step, attempt, events := s.executeMove(sess, i+1, dir)
		result.Events = append(result.Events, events...)
		result.Collapses += len(step.Collapses)

		if !step.Success {
			result.Success = false
			result.AttemptedTo = attempt
			result.StopReasonCode = attempt.Reason
			result.StoppedReason = fmt.Sprintf("move %d blocked: %s", i+1, move)
			result.StoppedOnMove = i + 1
			break
		}

		result.MovesExecuted++
		result.TotalPushed += step.Pushed
		result.Steps = append(result.Steps, *step)

		if step.Victory {
			result.StopReasonCode = StopVictory
			if i+1 < len(moves) {
				result.StoppedReason = fmt.Sprintf("level complete after move %d", i+1)
				result.StoppedOnMove = i + 1
			}
			break
		}
	}

	state := sess.Engine.GetState()
	result.GameState = state
	result.EndPos, _ = sess.Engine.GetPlayerPosition()
	result.Victory = state.Victory
	result.Message = state.Message
	result.PossibleMoves = sess.Engine.GetPossibleMoves()
	result.LocalView3x3 = state.LocalView3x3

	s.persist(sessionID, "bulk move")
	return result, nil
}

// Select feeds an entanglement pick into the session's selection machine
func (s *gameServiceImpl) Select(ctx context.Context, sessionID string, x, y int) (*SelectResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	outcome := sess.Engine.Select(x, y)
	state := sess.Engine.GetState()
	result := &SelectResult{
		Outcome:   outcome.String(),
		Selected:  state.Selected,
		GameState: state,
		Message:   state.Message,
	}

	eventType := EventSelect
	switch outcome {
	case engine.SelectionEntangled:
		eventType = EventEntangle
	case engine.SelectionUnentangled:
		eventType = EventUnentangle
	}
	ev := newEvent(eventType, state.Message)
	ev.Position = engine.Position{X: x, Y: y}
	result.Events = []GameEvent{ev}

	s.persist(sessionID, "select")
	return result, nil
}

// Reset resets a game session to the level's initial layout
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	state := sess.Engine.Reset()

	s.persist(sessionID, "reset")
	return state, nil
}

// NextLevel moves a session that has won its level on to the next level in play order
func (s *gameServiceImpl) NextLevel(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	if !sess.Engine.IsVictory() {
		return nil, ErrLevelNotWon
	}

	nextID, config, err := s.configs.NextConfig(sess.ConfigID)
	if err != nil {
		if errors.Is(err, ErrNoMoreLevels) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find next level: %w", err)
	}
	if err := sess.Engine.SetConfig(config); err != nil {
		return nil, fmt.Errorf("failed to load level %s: %w", nextID, err)
	}
	sess.ConfigID = nextID
	sess.Config = config

	log.WithFields(log.Fields{"session": sessionID, "level": nextID}).Info("advanced to next level")
	s.persist(sessionID, "next level")
	return sessionInfo(sess), nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sess.Engine.GetState(), nil
}

// DescribeCell lists the occupants of one cell
func (s *gameServiceImpl) DescribeCell(ctx context.Context, sessionID string, x, y int) (*CellInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	grid := sess.Engine.Grid()
	pos := engine.Position{X: x, Y: y}
	info := &CellInfo{
		X:         x,
		Y:         y,
		InBounds:  grid.InBounds(pos),
		Occupants: engine.DescribeCell(grid, pos),
	}
	if info.InBounds {
		info.Token = string(grid.Rows()[y][x])
	}
	return info, nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	history := sess.Engine.GetMoveHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	moves := []engine.MoveHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			// most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				moves = append(moves, history[i])
			}
		} else {
			moves = append(moves, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available levels in play order
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific level
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a level to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.LevelConfig) error {
	return s.configs.SaveConfig(configName, config)
}

func (s *gameServiceImpl) persist(sessionID, action string) {
	if err := s.sessions.Save(sessionID); err != nil {
		log.WithError(err).WithFields(log.Fields{"session": sessionID, "action": action}).Warn("failed to persist session")
	}
}
