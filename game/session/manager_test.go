package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
)

func createTestConfig() *engine.LevelConfig {
	return &engine.LevelConfig{
		Name:        "Test Level",
		Description: "Test level",
		Layout: []string{
			"#######",
			"#P.BX.#",
			"#.E.E.#",
			"#######",
		},
		Messages: engine.LevelMessages{
			Welcome: "Welcome!",
			Victory: "Solved!",
		},
	}
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	t.Run("create with specific ID", func(t *testing.T) {
		session, err := manager.Create("test123", testLevelID, config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		if session.ID != "test123" {
			t.Errorf("Expected ID test123, got %s", session.ID)
		}
		if session.ConfigID != testLevelID {
			t.Errorf("Expected level %s, got %s", testLevelID, session.ConfigID)
		}
		if session.Engine == nil {
			t.Error("Engine should not be nil")
		}
		if session.Config != config {
			t.Error("Config should be the one passed in")
		}
		if session.CreatedAt.IsZero() || session.LastAccessedAt.IsZero() {
			t.Error("Timestamps should be set")
		}
	})

	t.Run("create with generated ID", func(t *testing.T) {
		session, err := manager.Create("", testLevelID, config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got %q", session.ID)
		}
	})

	t.Run("duplicate ID is rejected case-insensitively", func(t *testing.T) {
		if _, err := manager.Create("TEST123", testLevelID, config); err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("path-like ID is rejected", func(t *testing.T) {
		if _, err := manager.Create("a/b", testLevelID, config); err != ErrInvalidSessionID {
			t.Errorf("Expected ErrInvalidSessionID, got %v", err)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		if _, err := manager.Create("broken", "x", &engine.LevelConfig{}); err == nil {
			t.Error("Expected error for a level without layout")
		}
		if _, err := manager.Get("broken"); err != ErrSessionNotFound {
			t.Error("Failed creation must not register the session")
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	created, err := manager.Create("AbCd", testLevelID, createTestConfig())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	for _, id := range []string{"AbCd", "abcd", "ABCD"} {
		session, err := manager.Get(id)
		if err != nil {
			t.Errorf("Get(%q) failed: %v", id, err)
			continue
		}
		if session != created {
			t.Errorf("Get(%q) returned a different session", id)
		}
	}

	if _, err := manager.Get("none"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_ListAndCount(t *testing.T) {
	manager := NewManager()
	if manager.Count() != 0 || len(manager.List()) != 0 {
		t.Fatal("New manager should be empty")
	}

	for i := 0; i < 3; i++ {
		if _, err := manager.Create(fmt.Sprintf("s%d", i), testLevelID, createTestConfig()); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
	}

	if manager.Count() != 3 {
		t.Errorf("Expected 3 sessions, got %d", manager.Count())
	}
	if len(manager.List()) != 3 {
		t.Errorf("Expected 3 listed sessions, got %d", len(manager.List()))
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()
	if _, err := manager.Create("gone", testLevelID, createTestConfig()); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if err := manager.Delete("GONE"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get("gone"); err != ErrSessionNotFound {
		t.Error("Session should be gone after delete")
	}
	if err := manager.Delete("gone"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}

	if err := manager.DeleteFromMemory("gone"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	session, err := manager.Create("touch", testLevelID, createTestConfig())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	before := session.LastAccessedAt
	time.Sleep(5 * time.Millisecond)

	if err := manager.UpdateLastAccessed("touch"); err != nil {
		t.Fatalf("UpdateLastAccessed failed: %v", err)
	}
	if !session.LastAccessedAt.After(before) {
		t.Error("LastAccessedAt should move forward")
	}

	if err := manager.UpdateLastAccessed("none"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_CleanupExpiredSessions(t *testing.T) {
	manager := NewManager()
	old, _ := manager.Create("old", testLevelID, createTestConfig())
	if _, err := manager.Create("new", testLevelID, createTestConfig()); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	old.LastAccessedAt = time.Now().Add(-2 * time.Hour)

	removed := manager.CleanupExpiredSessions(time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 removed session, got %d", removed)
	}
	if _, err := manager.Get("old"); err != ErrSessionNotFound {
		t.Error("Expired session should be removed")
	}
	if _, err := manager.Get("new"); err != nil {
		t.Error("Fresh session should remain")
	}
}

func TestManager_SaveWithoutPersistence(t *testing.T) {
	manager := NewManager()
	if err := manager.Save("anything"); err != nil {
		t.Errorf("Save without persistence should be a no-op, got %v", err)
	}
	if err := manager.LoadPersistedSessions(); err != nil {
		t.Errorf("LoadPersistedSessions without persistence should be a no-op, got %v", err)
	}
	if err := manager.SaveAllSessions(); err != nil {
		t.Errorf("SaveAllSessions without persistence should be a no-op, got %v", err)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := manager.Create("", testLevelID, config)
			if err != nil {
				errs <- err
				return
			}
			if _, err := manager.Get(strings.ToUpper(session.ID)); err != nil {
				errs <- err
				return
			}
			manager.UpdateLastAccessed(session.ID)
			manager.List()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent operation failed: %v", err)
	}
	if manager.Count() != 50 {
		t.Errorf("Expected 50 sessions, got %d", manager.Count())
	}
}
