package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
	"github.com/wricardo/mcp-training/babaqm/game/service"
)

// Version is reported to MCP clients
const Version = "1.0.0"

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Baba QM",
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Baba QM - MCP Interface

A push puzzle: walk the player (P) and push a quantum box (B) onto a goal (X).
Every call is proxied to the REST API server.

AVAILABLE TOOLS:
- create_session: Start a session on a level (first level when none given)
- list_sessions / get_session: Inspect sessions
- game_state: Grid, entities and entanglements
- move: Single move (up/down/left/right) - requires intent explanation
- bulk_move: Several moves at once, stops at the first blocked move or a win
- select_block: Pick entanglable blocks (E) to link or unlink them
- reset_level: Reload the current level
- next_level: Advance after a win
- move_history: Past moves, paginated
- list_levels: Levels in play order
- describe_cell: Occupants of one cell
- game_instructions: Full rules

NOTE: The 'intent' parameter on move/bulk_move serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session, optionally on a specific level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "string",
					"description": "Level id from list_levels (optional, defaults to the first level)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current game state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move",
		Description: "Move the player one cell, pushing whatever is in the way",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"up", "down", "left", "right"},
					"description": "Direction to move",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Why you are making this move",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset the level before moving",
				},
			},
			Required: []string{"session_id", "direction", "intent"},
		},
	}, c.handleMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bulk_move",
		Description: fmt.Sprintf("Execute up to %d moves in sequence", engine.MaxBulkMoves),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"moves": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"up", "down", "left", "right"},
					},
					"description": "Moves to execute",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "What this sequence is meant to achieve",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset the level before moving",
				},
			},
			Required: []string{"session_id", "moves", "intent"},
		},
	}, c.handleBulkMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "select_block",
		Description: "Select an entanglable block (E). Selecting two unlinked blocks entangles them; selecting a linked block unlinks its pair",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "Column, 0 is the left edge",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Row, 0 is the top edge",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleSelectBlock)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_level",
		Description: "Reload the current level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "next_level",
		Description: "Advance a won session to the next level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleNextLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_history",
		Description: "Get the move history of a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Moves per page (default 20)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleMoveHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List available levels in play order",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the complete rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "List every entity in one grid cell, including hidden ones under the player or on goals",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "Column",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Row",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// intArg reads a JSON number argument
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func logIntent(tool, sessionID, intent string) {
	if intent != "" {
		log.WithFields(log.Fields{"tool": tool, "session": sessionID, "intent": intent}).Debug("mcp intent")
	}
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	level, _ := args["level"].(string)

	body := map[string]string{}
	if level != "" {
		body["config_id"] = level
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nLevel: %s\n", session.ID, session.ConfigName)
	if session.GameState != nil {
		result += "\n" + formatGameState(session.GameState)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status := "playing"
		if s.GameState != nil && s.GameState.Victory {
			status = "won"
		}
		fmt.Fprintf(&b, "- %s (Level: %s, %s, Created: %s)\n",
			s.ID, s.ConfigName, status, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	direction, _ := args["direction"].(string)
	intent, _ := args["intent"].(string)
	reset, _ := args["reset"].(bool)

	logIntent("move", sessionID, intent)

	body := map[string]interface{}{
		"direction": direction,
		"reset":     reset,
	}

	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/move"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleBulkMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	movesRaw, _ := args["moves"].([]interface{})
	intent, _ := args["intent"].(string)
	reset, _ := args["reset"].(bool)

	logIntent("bulk_move", sessionID, intent)

	moves := make([]string, 0, len(movesRaw))
	for _, m := range movesRaw {
		if move, ok := m.(string); ok {
			moves = append(moves, move)
		}
	}

	body := map[string]interface{}{
		"moves": moves,
		"reset": reset,
	}

	var result service.BulkMoveResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/bulk-move"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBulkMoveResult(sessionID, &result)), nil
}

func (c *Client) handleSelectBlock(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required integers"), nil
	}

	var result service.SelectResult
	body := map[string]int{"x": x, "y": y}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/select"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSelectResult(x, y, &result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}

	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleNextLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/next-level"), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Advanced to level: %s\n\n%s", session.ConfigName, formatGameState(session.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)

	query := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		query.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		query.Set("limit", fmt.Sprint(limit))
	}
	path := sessionPath(sessionID, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatHistory(&history)

	// the current segment comes from the live state
	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err == nil {
		result += "\n" + formatCurrentSegment(&state)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var levels []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &levels); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(levels) == 0 {
		return mcp.NewToolResultText("No levels available."), nil
	}

	var b strings.Builder
	b.WriteString("Available Levels:\n\n")
	for _, level := range levels {
		fmt.Fprintf(&b, "%d. %s (%s)\n", level.Index+1, level.ConfigID, level.Name)
		if level.Description != "" {
			fmt.Fprintf(&b, "   %s\n", level.Description)
		}
		fmt.Fprintf(&b, "   Grid: %dx%d\n", level.Width, level.Height)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(gameInstructions), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required integers"), nil
	}
	if x < 0 || y < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds", x, y)), nil
	}

	var cell service.CellInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, fmt.Sprintf("/cells/%d/%d", x, y)), nil, &cell); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCell(&cell)), nil
}

const gameInstructions = `Baba QM - Complete Instructions

GAME OBJECTIVE:
Push the quantum box (B) onto a goal (X). The level is won the moment any quantum box
shares a cell with a goal.

GRID LEGEND:
• P - Player (you)
• B - Quantum box, pushable, the thing that wins
• X - Goal
• # - Wall, never moves (also a superposition wall that collapsed solid)
• M - Block, pushable
• E - Entanglable block, pushable, can be linked to another E
• Q - Superposition wall, undecided until something tries to enter it
• T - Tile that stops the player but lets pushed objects through
• . - Empty

Coordinates are (x,y) with (0,0) at the top-left; x grows right and y grows down.

PUSHING:
• Moving into a movable object pushes it one cell; a line of movable objects moves together.
• A push fails if the chain runs into a wall, a solid superposition wall, or the edge.
• Goals never block. A box on a goal can still be pushed off it.
• A rejected move changes nothing, except that superposition walls it touched stay collapsed.

SUPERPOSITION WALLS (Q):
• Each Q has a collapse probability. The first time anything tries to enter it, it
  collapses: solid (becomes #) with that probability, empty (disappears) otherwise.
• The outcome is permanent until the level resets, and a reset draws new outcomes.

ENTANGLEMENT:
• Use select_block on one E block, then on a second unlinked E block to entangle them.
• When you push one block of a pair, its partner moves the same way in the same step.
• Selecting a linked block unlinks its pair. Selecting the same block twice cancels.
• The partner's move only checks the grid edge, so it can slide into occupied cells.

MOVEMENT COMMANDS:
• up, down, left, right
• bulk_move runs up to 50 moves and stops at the first blocked move or at the win.
• reset=true on move/bulk_move reloads the level first.

LEVELS:
• Levels play in order. After a win, next_level loads the next one.
• A won level is frozen: further moves are rejected until you advance or reset.

STRATEGY:
• Never push a box into a corner that is not a goal; it can't be pulled back out.
• Probe risky Q walls with something you can afford to lose, or route around them.
• Plan entangled pushes for both blocks: the partner moves even when you only look at one.
• Use describe_cell when a cell shows one token but may hold more (a goal under a box).

Good luck!`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", session.ID)
	fmt.Fprintf(&b, "Level: %s\n", session.ConfigName)
	fmt.Fprintf(&b, "Created: %s\n", session.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Last Accessed: %s\n", session.LastAccessedAt.Format(time.RFC3339))
	if session.GameConfig != nil && session.GameConfig.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", session.GameConfig.Description)
	}
	if session.GameState != nil {
		b.WriteString("\n")
		b.WriteString(formatGameState(session.GameState))
	}
	return b.String()
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state"
	}

	var b strings.Builder
	if state.ConfigName != "" {
		fmt.Fprintf(&b, "Level: %s (%dx%d)\n", state.ConfigName, state.Width, state.Height)
	}
	if state.PlayerPos != nil {
		fmt.Fprintf(&b, "Position: (%d,%d)\n", state.PlayerPos.X, state.PlayerPos.Y)
	} else {
		b.WriteString("Position: none\n")
	}
	fmt.Fprintf(&b, "Moves: %d\n", state.CurrentMovesCount)
	if state.Victory {
		b.WriteString("🎉 VICTORY!\n")
	}
	if state.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", state.Message)
	}

	if len(state.Rows) > 0 {
		b.WriteString("\nGrid:\n")
		b.WriteString(formatRows(state.Rows))
	}

	if pairs := entangledPairs(state); len(pairs) > 0 {
		b.WriteString("\nEntangled: ")
		b.WriteString(strings.Join(pairs, ", "))
		b.WriteString("\n")
	}
	if state.Selected != 0 {
		for _, e := range state.Entities {
			if e.ID == state.Selected {
				fmt.Fprintf(&b, "Selected: block at (%d,%d)\n", e.X, e.Y)
			}
		}
	}
	if walls := pendingWalls(state); len(walls) > 0 {
		b.WriteString("Superposition walls: ")
		b.WriteString(strings.Join(walls, ", "))
		b.WriteString("\n")
	}

	return b.String()
}

// formatRows prints the grid with a column ruler and row numbers
func formatRows(rows []string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var b strings.Builder
	b.WriteString("    ")
	for x := 0; x < width; x++ {
		b.WriteByte(byte('0' + x%10))
	}
	b.WriteString("\n")
	for y, row := range rows {
		fmt.Fprintf(&b, "%3d %s\n", y, row)
	}
	return b.String()
}

func entangledPairs(state *engine.GameState) []string {
	byID := make(map[engine.EntityID]engine.EntityView, len(state.Entities))
	for _, e := range state.Entities {
		byID[e.ID] = e
	}

	var pairs []string
	for _, e := range state.Entities {
		if e.Partner == 0 || e.ID > e.Partner {
			continue
		}
		if p, ok := byID[e.Partner]; ok {
			pairs = append(pairs, fmt.Sprintf("(%d,%d)<->(%d,%d)", e.X, e.Y, p.X, p.Y))
		}
	}
	return pairs
}

func pendingWalls(state *engine.GameState) []string {
	var walls []string
	for _, e := range state.Entities {
		if e.Kind == engine.KindSuperpositionWall && (e.Collapse == "" || e.Collapse == engine.Uncollapsed.String()) {
			walls = append(walls, fmt.Sprintf("(%d,%d) p=%.2f", e.X, e.Y, e.CollapseProbability))
		}
	}
	return walls
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	if result.Success {
		b.WriteString("✓ Move successful\n")
	} else {
		b.WriteString("✗ Move failed\n")
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}

	if s := result.Step; s != nil && s.Success {
		fmt.Fprintf(&b, "Step: %s (%d,%d)→(%d,%d)", s.Dir, s.From.X, s.From.Y, s.To.X, s.To.Y)
		if s.Pushed > 0 {
			fmt.Fprintf(&b, " pushed=%d", s.Pushed)
		}
		if s.Mirrored > 0 {
			fmt.Fprintf(&b, " mirrored=%d", s.Mirrored)
		}
		b.WriteString("\n")
	}
	if a := result.AttemptedTo; a != nil {
		fmt.Fprintf(&b, "Blocked: attempted (%d,%d) reason=%s", a.X, a.Y, a.Reason)
		if len(a.Occupants) > 0 {
			fmt.Fprintf(&b, " occupants=%s", strings.Join(a.Occupants, ","))
		}
		b.WriteString("\n")
	}

	if len(result.Events) > 0 {
		b.WriteString("Events:\n")
		for _, event := range result.Events {
			fmt.Fprintf(&b, "- %s: %s\n", event.Type, event.Message)
		}
	}

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatBulkMoveResult(sessionID string, result *service.BulkMoveResult) string {
	var b strings.Builder

	level := ""
	if result.GameState != nil {
		level = result.GameState.ConfigName
	}
	fmt.Fprintf(&b, "Session: %s • Level: %s\n", sessionID, level)
	fmt.Fprintf(&b, "Executed %d/%d moves\n", result.MovesExecuted, result.RequestedMoves)
	if result.Truncated {
		fmt.Fprintf(&b, "Truncated to the first %d moves\n", result.Limit)
	}
	if result.StoppedReason != "" {
		fmt.Fprintf(&b, "Stopped on move %d: %s (%s)\n", result.StoppedOnMove, result.StoppedReason, result.StopReasonCode)
	}
	fmt.Fprintf(&b, "Start (%d,%d) → End (%d,%d), pushed=%d, collapses=%d\n",
		result.StartPos.X, result.StartPos.Y, result.EndPos.X, result.EndPos.Y, result.TotalPushed, result.Collapses)

	if len(result.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for _, s := range result.Steps {
			b.WriteString(formatStepLine(s))
		}
	}

	if a := result.AttemptedTo; a != nil {
		fmt.Fprintf(&b, "\nBlocked: attempted (%d,%d) reason=%s", a.X, a.Y, a.Reason)
		if len(a.Occupants) > 0 {
			fmt.Fprintf(&b, " occupants=%s", strings.Join(a.Occupants, ","))
		}
		b.WriteString("\n")
	}

	if len(result.Events) > 0 {
		b.WriteString("\nEvents:\n")
		for _, event := range result.Events {
			fmt.Fprintf(&b, "- %s: %s\n", event.Type, event.Message)
		}
	}

	if len(result.PossibleMoves) > 0 {
		b.WriteString("\nPossible moves: ")
		b.WriteString(strings.Join(result.PossibleMoves, ","))
		b.WriteString("\n")
	}
	if len(result.LocalView3x3) > 0 {
		b.WriteString("Local 3x3:\n")
		b.WriteString(strings.Join(result.LocalView3x3, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

// formatStepLine renders a single compact step line
func formatStepLine(s service.StepInfo) string {
	status := "✗"
	if s.Success {
		status = "✓"
	}
	line := fmt.Sprintf("%d. %s (%d,%d)→(%d,%d) %s", s.Idx, s.Dir, s.From.X, s.From.Y, s.To.X, s.To.Y, status)
	if s.Pushed > 0 {
		line += fmt.Sprintf(" pushed=%d", s.Pushed)
	}
	if s.Mirrored > 0 {
		line += fmt.Sprintf(" mirrored=%d", s.Mirrored)
	}
	for _, c := range s.Collapses {
		line += fmt.Sprintf(" collapse(%d,%d)=%s", c.Position.X, c.Position.Y, c.Outcome)
	}
	if s.Victory {
		line += " 🎉"
	}
	return line + "\n"
}

func formatSelectResult(x, y int, result *service.SelectResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Select (%d,%d): %s\n", x, y, result.Outcome)
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}
	for _, event := range result.Events {
		fmt.Fprintf(&b, "- %s: %s\n", event.Type, event.Message)
	}
	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatCell(cell *service.CellInfo) string {
	if !cell.InBounds {
		return fmt.Sprintf("Cell (%d,%d) is outside the grid", cell.X, cell.Y)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cell (%d,%d) shows %q\n", cell.X, cell.Y, cell.Token)
	if len(cell.Occupants) == 0 {
		b.WriteString("Empty\n")
		return b.String()
	}
	b.WriteString("Occupants:\n")
	for _, e := range cell.Occupants {
		fmt.Fprintf(&b, "- %s (id %d)", e.Kind, e.ID)
		if e.Entanglable {
			b.WriteString(" entanglable")
		}
		if e.Partner != 0 {
			fmt.Fprintf(&b, " partner=%d", e.Partner)
		}
		if e.Kind == engine.KindSuperpositionWall {
			fmt.Fprintf(&b, " p=%.2f %s", e.CollapseProbability, e.Collapse)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (Page %d/%d, Total: %d moves)\n\n", history.Page, history.TotalPages, history.TotalMoves)

	for _, move := range history.Moves {
		status := "✓"
		if !move.Success {
			status = "✗"
		}
		fmt.Fprintf(&b, "#%d %s %s (%d,%d)→(%d,%d)", move.MoveNumber, status, move.Action,
			move.FromPosition.X, move.FromPosition.Y, move.ToPosition.X, move.ToPosition.Y)
		if move.Pushed > 0 {
			fmt.Fprintf(&b, " pushed=%d", move.Pushed)
		}
		if move.Collapses > 0 {
			fmt.Fprintf(&b, " collapses=%d", move.Collapses)
		}
		b.WriteString("\n")
	}

	if history.HasNext {
		fmt.Fprintf(&b, "\nMore moves on page %d\n", history.Page+1)
	}
	return b.String()
}

// formatCurrentSegment summarizes the moves since the last reset
func formatCurrentSegment(state *engine.GameState) string {
	if state == nil {
		return ""
	}
	if state.CurrentMovesCount == 0 {
		return "Current attempt: no moves since the last reset\n"
	}

	actions := make([]string, 0, len(state.CurrentMoves))
	for _, m := range state.CurrentMoves {
		actions = append(actions, m.Action)
	}
	return fmt.Sprintf("Current attempt (%d moves): %s\n", state.CurrentMovesCount, strings.Join(actions, ","))
}
