package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/babaqm/game/config"
	"github.com/wricardo/mcp-training/babaqm/game/engine"
	"github.com/wricardo/mcp-training/babaqm/game/service"
	"github.com/wricardo/mcp-training/babaqm/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	// Session Management
	CreateSessionFunc func(ctx context.Context, configName string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	// Game Operations
	MoveFunc      func(ctx context.Context, sessionID, direction string, reset bool) (*service.MoveResult, error)
	BulkMoveFunc  func(ctx context.Context, sessionID string, moves []string, reset bool) (*service.BulkMoveResult, error)
	SelectFunc    func(ctx context.Context, sessionID string, x, y int) (*service.SelectResult, error)
	ResetFunc     func(ctx context.Context, sessionID string) (*engine.GameState, error)
	NextLevelFunc func(ctx context.Context, sessionID string) (*service.SessionInfo, error)

	// Game State
	GetGameStateFunc   func(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)
	DescribeCellFunc   func(ctx context.Context, sessionID string, x, y int) (*service.CellInfo, error)

	// Configuration
	ListConfigsFunc func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc  func(ctx context.Context, configName string) (*engine.LevelConfig, error)
	SaveConfigFunc  func(ctx context.Context, configName string, config *engine.LevelConfig) error
}

// Session Management
func (m *MockGameService) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, configName)
	}
	return &service.SessionInfo{
		ID:         "ab12",
		ConfigName: configName,
		CreatedAt:  time.Now(),
	}, nil
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{
		ID:         sessionID,
		ConfigName: "01_intro",
		CreatedAt:  time.Now(),
	}, nil
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

// Game Operations
func (m *MockGameService) Move(ctx context.Context, sessionID, direction string, reset bool) (*service.MoveResult, error) {
	if m.MoveFunc != nil {
		return m.MoveFunc(ctx, sessionID, direction, reset)
	}
	return &service.MoveResult{
		Success:   true,
		GameState: &engine.GameState{},
	}, nil
}

func (m *MockGameService) BulkMove(ctx context.Context, sessionID string, moves []string, reset bool) (*service.BulkMoveResult, error) {
	if m.BulkMoveFunc != nil {
		return m.BulkMoveFunc(ctx, sessionID, moves, reset)
	}
	return &service.BulkMoveResult{
		Success:   true,
		GameState: &engine.GameState{},
	}, nil
}

func (m *MockGameService) Select(ctx context.Context, sessionID string, x, y int) (*service.SelectResult, error) {
	if m.SelectFunc != nil {
		return m.SelectFunc(ctx, sessionID, x, y)
	}
	return &service.SelectResult{
		Outcome:   "ignored",
		GameState: &engine.GameState{},
	}, nil
}

func (m *MockGameService) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, sessionID)
	}
	return &engine.GameState{}, nil
}

func (m *MockGameService) NextLevel(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.NextLevelFunc != nil {
		return m.NextLevelFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, GameState: &engine.GameState{}}, nil
}

// Game State
func (m *MockGameService) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.GetGameStateFunc != nil {
		return m.GetGameStateFunc(ctx, sessionID)
	}
	return &engine.GameState{}, nil
}

func (m *MockGameService) GetMoveHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetMoveHistoryFunc != nil {
		return m.GetMoveHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{
		Moves:      []engine.MoveHistoryEntry{},
		Page:       opts.Page,
		PageSize:   opts.Limit,
		TotalPages: 1,
	}, nil
}

func (m *MockGameService) DescribeCell(ctx context.Context, sessionID string, x, y int) (*service.CellInfo, error) {
	if m.DescribeCellFunc != nil {
		return m.DescribeCellFunc(ctx, sessionID, x, y)
	}
	return &service.CellInfo{X: x, Y: y, InBounds: true, Token: "."}, nil
}

// Configuration
func (m *MockGameService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockGameService) LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, configName)
	}
	return &engine.LevelConfig{
		Name:   configName,
		Layout: []string{"PBX"},
	}, nil
}

func (m *MockGameService) SaveConfig(ctx context.Context, configName string, config *engine.LevelConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, configName, config)
	}
	return nil
}

// Test helpers
func setupTestServer(t *testing.T, mockService *MockGameService) *Server {
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return NewServer(mockService, hub)
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

func serve(t *testing.T, mock *MockGameService, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	server := setupTestServer(t, mock)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest(method, path, body))
	return w
}

func sessionNotFound(id string) error {
	return fmt.Errorf("session %s: %w", id, service.ErrSessionNotFound)
}

// Session Management Tests

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    map[string]string
		setupMock      func(*MockGameService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:        "Create session with default level",
			requestBody: nil,
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != "" {
						t.Errorf("Expected empty level, got %s", configName)
					}
					return &service.SessionInfo{
						ID:             "ab12",
						ConfigName:     "01_intro",
						CreatedAt:      time.Now(),
						LastAccessedAt: time.Now(),
					}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ID != "ab12" {
					t.Errorf("Expected session ID ab12, got %s", resp.ID)
				}
			},
		},
		{
			name:        "Create session with config_id",
			requestBody: map[string]string{"config_id": "03_quantum"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != "03_quantum" {
						t.Errorf("Expected level 03_quantum, got %s", configName)
					}
					return &service.SessionInfo{ID: "cd34", ConfigName: configName}, nil
				}
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "Create session with level alias",
			requestBody: map[string]string{"level": "02_entangle"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != "02_entangle" {
						t.Errorf("Expected level 02_entangle, got %s", configName)
					}
					return &service.SessionInfo{ID: "ef56", ConfigName: configName}, nil
				}
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "Unknown level",
			requestBody: map[string]string{"config_id": "nope"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("%w: nope", config.ErrConfigNotFound)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "No levels installed",
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, service.ErrNoLevels
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "Handle service error",
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("service error")
				}
			},
			expectedStatus: http.StatusInternalServerError,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] != "service error" {
					t.Errorf("Expected error message 'service error', got %s", resp["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			w := serve(t, mockService, "POST", "/api/sessions", tt.requestBody)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	sessions := func() []*service.SessionInfo {
		return []*service.SessionInfo{
			{ID: "old", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now.Add(-time.Minute)},
			{ID: "new", CreatedAt: now, LastAccessedAt: now.Add(-time.Hour)},
			{ID: "mid", CreatedAt: now.Add(-time.Hour), LastAccessedAt: now},
		}
	}

	tests := []struct {
		name        string
		query       string
		expectedIDs []string
		total       int
	}{
		{"default sorts by access desc", "", []string{"mid", "old", "new"}, 3},
		{"created ascending", "?sort=created&order=asc", []string{"old", "mid", "new"}, 3},
		{"limit", "?sort=created&limit=2", []string{"new", "mid"}, 3},
		{"invalid limit ignored", "?limit=abc", []string{"mid", "old", "new"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockGameService{
				ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
					return sessions(), nil
				},
			}

			w := serve(t, mock, "GET", "/api/sessions"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)

			if resp.Total != tt.total {
				t.Errorf("Expected total %d, got %d", tt.total, resp.Total)
			}
			if resp.Count != len(tt.expectedIDs) {
				t.Fatalf("Expected %d sessions, got %d", len(tt.expectedIDs), resp.Count)
			}
			for i, id := range tt.expectedIDs {
				if resp.Sessions[i].ID != id {
					t.Errorf("Position %d: expected %s, got %s", i, id, resp.Sessions[i].ID)
				}
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		w := serve(t, &MockGameService{}, "GET", "/api/sessions/ab12", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp service.SessionInfo
		parseResponse(t, w, &resp)
		if resp.ID != "ab12" {
			t.Errorf("Expected session ab12, got %s", resp.ID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		mock := &MockGameService{
			GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
				return nil, sessionNotFound(sessionID)
			},
		}
		w := serve(t, mock, "GET", "/api/sessions/zzzz", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestDeleteSession(t *testing.T) {
	deleted := ""
	mock := &MockGameService{
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			if sessionID == "gone" {
				return sessionNotFound(sessionID)
			}
			deleted = sessionID
			return nil
		},
	}

	w := serve(t, mock, "DELETE", "/api/sessions/ab12", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if deleted != "ab12" {
		t.Errorf("Expected ab12 to be deleted, got %q", deleted)
	}

	w = serve(t, mock, "DELETE", "/api/sessions/gone", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

// Game Operation Tests

func TestMove(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*MockGameService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:        "Valid move up",
			requestBody: map[string]interface{}{"direction": "up"},
			setupMock: func(m *MockGameService) {
				m.MoveFunc = func(ctx context.Context, sessionID, direction string, reset bool) (*service.MoveResult, error) {
					if direction != "up" {
						t.Errorf("Expected direction 'up', got %s", direction)
					}
					return &service.MoveResult{
						Success:   true,
						GameState: &engine.GameState{PlayerPos: &engine.Position{X: 5, Y: 4}},
						Step:      &service.StepInfo{Dir: "up", Success: true},
					}, nil
				}
			},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.MoveResult
				parseResponse(t, w, &resp)
				if !resp.Success {
					t.Error("Expected success to be true")
				}
				if resp.GameState.PlayerPos == nil || resp.GameState.PlayerPos.Y != 4 {
					t.Errorf("Expected Y position 4, got %+v", resp.GameState.PlayerPos)
				}
			},
		},
		{
			name:        "Move with reset",
			requestBody: map[string]interface{}{"direction": "right", "reset": true},
			setupMock: func(m *MockGameService) {
				m.MoveFunc = func(ctx context.Context, sessionID, direction string, reset bool) (*service.MoveResult, error) {
					if !reset {
						t.Error("Expected reset to be true")
					}
					return &service.MoveResult{Success: true, GameState: &engine.GameState{}}, nil
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "Blocked move is still a 200",
			requestBody: map[string]interface{}{"direction": "left"},
			setupMock: func(m *MockGameService) {
				m.MoveFunc = func(ctx context.Context, sessionID, direction string, reset bool) (*service.MoveResult, error) {
					return &service.MoveResult{
						Success:     false,
						GameState:   &engine.GameState{},
						AttemptedTo: &service.AttemptInfo{X: 0, Y: 1, Reason: service.StopBlockedWall},
					}, nil
				}
			},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.MoveResult
				parseResponse(t, w, &resp)
				if resp.Success {
					t.Error("Expected success to be false")
				}
				if resp.AttemptedTo == nil || resp.AttemptedTo.Reason != service.StopBlockedWall {
					t.Errorf("Expected blocked_wall attempt, got %+v", resp.AttemptedTo)
				}
			},
		},
		{
			name:        "Invalid direction",
			requestBody: map[string]interface{}{"direction": "sideways"},
			setupMock: func(m *MockGameService) {
				m.MoveFunc = func(ctx context.Context, sessionID, direction string, reset bool) (*service.MoveResult, error) {
					return nil, fmt.Errorf("%w: %s", service.ErrInvalidMove, direction)
				}
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid request body",
			requestBody:    "not json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "Session not found",
			requestBody: map[string]interface{}{"direction": "up"},
			setupMock: func(m *MockGameService) {
				m.MoveFunc = func(ctx context.Context, sessionID, direction string, reset bool) (*service.MoveResult, error) {
					return nil, sessionNotFound(sessionID)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			w := serve(t, mockService, "POST", "/api/sessions/ab12/move", tt.requestBody)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}

			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestBulkMove(t *testing.T) {
	t.Run("executes moves", func(t *testing.T) {
		mock := &MockGameService{
			BulkMoveFunc: func(ctx context.Context, sessionID string, moves []string, reset bool) (*service.BulkMoveResult, error) {
				if len(moves) != 3 {
					t.Errorf("Expected 3 moves, got %d", len(moves))
				}
				return &service.BulkMoveResult{
					MovesExecuted:  2,
					RequestedMoves: 3,
					StopReasonCode: service.StopVictory,
					Victory:        true,
					GameState:      &engine.GameState{Victory: true},
				}, nil
			},
		}

		w := serve(t, mock, "POST", "/api/sessions/ab12/bulk-move",
			map[string]interface{}{"moves": []string{"up", "right", "down"}})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp service.BulkMoveResult
		parseResponse(t, w, &resp)
		if resp.MovesExecuted != 2 || resp.StopReasonCode != service.StopVictory {
			t.Errorf("Unexpected result: %+v", resp)
		}
	})

	t.Run("empty move list", func(t *testing.T) {
		mock := &MockGameService{
			BulkMoveFunc: func(ctx context.Context, sessionID string, moves []string, reset bool) (*service.BulkMoveResult, error) {
				return nil, service.ErrEmptyMoveList
			},
		}
		w := serve(t, mock, "POST", "/api/sessions/ab12/bulk-move", map[string]interface{}{"moves": []string{}})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		expectedStatus int
	}{
		{"valid coordinates", map[string]int{"x": 2, "y": 3}, http.StatusOK},
		{"zero coordinates", map[string]int{"x": 0, "y": 0}, http.StatusOK},
		{"missing y", map[string]int{"x": 2}, http.StatusBadRequest},
		{"not json", "nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotX, gotY int
			mock := &MockGameService{
				SelectFunc: func(ctx context.Context, sessionID string, x, y int) (*service.SelectResult, error) {
					gotX, gotY = x, y
					return &service.SelectResult{
						Outcome:   "selected",
						GameState: &engine.GameState{},
					}, nil
				},
			}

			w := serve(t, mock, "POST", "/api/sessions/ab12/select", tt.requestBody)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if w.Code != http.StatusOK {
				return
			}

			want := tt.requestBody.(map[string]int)
			if gotX != want["x"] || gotY != want["y"] {
				t.Errorf("Expected (%d,%d), got (%d,%d)", want["x"], want["y"], gotX, gotY)
			}
			var resp service.SelectResult
			parseResponse(t, w, &resp)
			if resp.Outcome != "selected" {
				t.Errorf("Expected outcome selected, got %s", resp.Outcome)
			}
		})
	}
}

func TestReset(t *testing.T) {
	mock := &MockGameService{
		ResetFunc: func(ctx context.Context, sessionID string) (*engine.GameState, error) {
			if sessionID == "gone" {
				return nil, sessionNotFound(sessionID)
			}
			return &engine.GameState{Message: "Level reset"}, nil
		},
	}

	w := serve(t, mock, "POST", "/api/sessions/ab12/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	parseResponse(t, w, &resp)
	if resp.State == nil || resp.State.Message != "Level reset" {
		t.Errorf("Expected reset state, got %+v", resp.State)
	}

	w = serve(t, mock, "POST", "/api/sessions/gone/reset", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestNextLevel(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"advances", nil, http.StatusOK},
		{"level not won", service.ErrLevelNotWon, http.StatusConflict},
		{"no more levels", service.ErrNoMoreLevels, http.StatusConflict},
		{"unknown session", sessionNotFound("ab12"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockGameService{
				NextLevelFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.SessionInfo{
						ID:         sessionID,
						ConfigName: "02_entangle",
						GameState:  &engine.GameState{ConfigName: "02_entangle"},
					}, nil
				},
			}

			w := serve(t, mock, "POST", "/api/sessions/ab12/next-level", nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.err == nil {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ConfigName != "02_entangle" {
					t.Errorf("Expected level 02_entangle, got %s", resp.ConfigName)
				}
			}
		})
	}
}

func TestGetHistory(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected service.HistoryOptions
	}{
		{"defaults", "", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
		{"custom", "?page=3&limit=5&order=asc", service.HistoryOptions{Page: 3, Limit: 5, Order: "asc"}},
		{"invalid values fall back", "?page=-1&limit=x&order=sideways", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.HistoryOptions
			mock := &MockGameService{
				GetMoveHistoryFunc: func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
					got = opts
					return &service.HistoryResponse{Page: opts.Page, PageSize: opts.Limit}, nil
				},
			}

			w := serve(t, mock, "GET", "/api/sessions/ab12/history"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if got != tt.expected {
				t.Errorf("Expected options %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestGetGameState(t *testing.T) {
	mock := &MockGameService{
		GetGameStateFunc: func(ctx context.Context, sessionID string) (*engine.GameState, error) {
			return &engine.GameState{Width: 3, Height: 1, Rows: []string{"PBX"}}, nil
		},
	}

	w := serve(t, mock, "GET", "/api/sessions/ab12/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var state engine.GameState
	parseResponse(t, w, &state)
	if len(state.Rows) != 1 || state.Rows[0] != "PBX" {
		t.Errorf("Unexpected rows %v", state.Rows)
	}
}

func TestDescribeCell(t *testing.T) {
	mock := &MockGameService{
		DescribeCellFunc: func(ctx context.Context, sessionID string, x, y int) (*service.CellInfo, error) {
			return &service.CellInfo{X: x, Y: y, InBounds: true, Token: "B"}, nil
		},
	}

	w := serve(t, mock, "GET", "/api/sessions/ab12/cells/4/7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var cell service.CellInfo
	parseResponse(t, w, &cell)
	if cell.X != 4 || cell.Y != 7 || cell.Token != "B" {
		t.Errorf("Unexpected cell %+v", cell)
	}

	w = serve(t, mock, "GET", "/api/sessions/ab12/cells/-1/7", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected non-numeric coordinates to miss the route, got %d", w.Code)
	}
}

// Level Tests

func TestListLevels(t *testing.T) {
	mock := &MockGameService{
		ListConfigsFunc: func(ctx context.Context) ([]*service.ConfigInfo, error) {
			return []*service.ConfigInfo{
				{ConfigID: "01_intro", Name: "Intro", Index: 0},
				{ConfigID: "02_entangle", Name: "Entangle", Index: 1},
			}, nil
		},
	}

	w := serve(t, mock, "GET", "/api/levels", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var levels []service.ConfigInfo
	parseResponse(t, w, &levels)
	if len(levels) != 2 || levels[1].ConfigID != "02_entangle" {
		t.Errorf("Unexpected levels %+v", levels)
	}
}

func TestGetLevel(t *testing.T) {
	mock := &MockGameService{
		LoadConfigFunc: func(ctx context.Context, configName string) (*engine.LevelConfig, error) {
			if configName != "01_intro" {
				return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configName)
			}
			return &engine.LevelConfig{Name: "Intro", Layout: []string{"PBX"}}, nil
		},
	}

	for _, path := range []string{"/api/levels/01_intro", "/api/levels/01_intro.json"} {
		w := serve(t, mock, "GET", path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, w.Code)
		}
	}

	w := serve(t, mock, "GET", "/api/levels/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCreateLevel(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		saveErr        error
		expectedID     string
		expectedStatus int
	}{
		{
			name:           "explicit id",
			requestBody:    map[string]interface{}{"id": "05_custom", "name": "Custom", "layout": []string{"PBX"}},
			expectedID:     "05_custom",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "id from name",
			requestBody:    map[string]interface{}{"name": "custom", "layout": []string{"PBX"}},
			expectedID:     "custom",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing id and name",
			requestBody:    map[string]interface{}{"layout": []string{"PBX"}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid level",
			requestBody:    map[string]interface{}{"id": "bad", "layout": []string{}},
			saveErr:        fmt.Errorf("%w: layout is required", config.ErrInvalidConfig),
			expectedID:     "bad",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var savedID string
			var saved *engine.LevelConfig
			mock := &MockGameService{
				SaveConfigFunc: func(ctx context.Context, configName string, level *engine.LevelConfig) error {
					savedID, saved = configName, level
					return tt.saveErr
				},
			}

			w := serve(t, mock, "POST", "/api/levels", tt.requestBody)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if savedID != tt.expectedID {
				t.Errorf("Expected id %q, got %q", tt.expectedID, savedID)
			}
			if tt.expectedStatus == http.StatusCreated && (saved == nil || len(saved.Layout) != 1) {
				t.Errorf("Expected layout to be passed through, got %+v", saved)
			}
		})
	}
}

func TestSolveLevel(t *testing.T) {
	mock := &MockGameService{
		LoadConfigFunc: func(ctx context.Context, configName string) (*engine.LevelConfig, error) {
			switch configName {
			case "easy":
				return &engine.LevelConfig{Name: "easy", Layout: []string{"P.BX"}}, nil
			case "random":
				return &engine.LevelConfig{Name: "random", Layout: []string{"PQBX"}}, nil
			}
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configName)
		},
	}

	w := serve(t, mock, "GET", "/api/levels/easy/solution", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Solved bool     `json:"solved"`
		Moves  []string `json:"moves"`
	}
	parseResponse(t, w, &resp)
	if !resp.Solved || strings.Join(resp.Moves, ",") != "right,right" {
		t.Errorf("Unexpected solution %+v", resp)
	}

	w = serve(t, mock, "GET", "/api/levels/random/solution", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for random walls, got %d", w.Code)
	}

	w = serve(t, mock, "GET", "/api/levels/missing/solution", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestUnifiedSessions(t *testing.T) {
	all := []*service.SessionInfo{
		{ID: "a", ConfigName: "01_intro", GameState: &engine.GameState{Victory: true}},
		{ID: "b", ConfigName: "01_intro", GameState: &engine.GameState{}},
		{ID: "c", ConfigName: "02_entangle", GameState: &engine.GameState{}},
	}
	mock := &MockGameService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return all, nil
		},
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			for _, s := range all {
				if s.ID == sessionID {
					return s, nil
				}
			}
			return nil, sessionNotFound(sessionID)
		},
	}

	tests := []struct {
		query string
		count int
		won   int
	}{
		{"", 3, 1},
		{"?level=01_intro", 2, 1},
		{"?sessionIds=c,%20missing,b", 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := serve(t, mock, "GET", "/api/sessions/unified"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp struct {
				Count int `json:"count"`
				Won   int `json:"won"`
			}
			parseResponse(t, w, &resp)
			if resp.Count != tt.count || resp.Won != tt.won {
				t.Errorf("Expected count=%d won=%d, got %+v", tt.count, tt.won, resp)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	w := serve(t, &MockGameService{}, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	parseResponse(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", resp)
	}
}

func TestWebSocket(t *testing.T) {
	mock := &MockGameService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			return nil, sessionNotFound(sessionID)
		},
	}

	w := serve(t, mock, "GET", "/ws", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without session, got %d", w.Code)
	}

	w = serve(t, mock, "GET", "/ws?session=zzzz", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown session, got %d", w.Code)
	}

	server := NewServer(&MockGameService{}, nil)
	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/ws?session=ab12", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 without a hub, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sessionNotFound("x"), http.StatusNotFound},
		{service.ErrNoLevels, http.StatusNotFound},
		{fmt.Errorf("%w: x", config.ErrConfigNotFound), http.StatusNotFound},
		{service.ErrInvalidMove, http.StatusBadRequest},
		{service.ErrEmptyMoveList, http.StatusBadRequest},
		{config.ErrInvalidConfig, http.StatusBadRequest},
		{service.ErrLevelNotWon, http.StatusConflict},
		{service.ErrNoMoreLevels, http.StatusConflict},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
