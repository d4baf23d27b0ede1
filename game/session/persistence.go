package session

import (
	"time"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
	"github.com/wricardo/mcp-training/babaqm/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// LevelLoader is the part of the level manager that persistence needs to rebuild an engine
type LevelLoader interface {
	LoadConfig(name string) (*engine.LevelConfig, error)
}

// PersistedSessionData is the on-disk form of a session. The level itself is not stored,
// only its id; the grid snapshot carries every entity so the level file may change
// without corrupting a saved game.
type PersistedSessionData struct {
	ID             string                `msgpack:"id"`
	ConfigID       string                `msgpack:"config_id"`
	CreatedAt      time.Time             `msgpack:"created_at"`
	LastAccessedAt time.Time             `msgpack:"last_accessed_at"`
	Engine         engine.EngineSnapshot `msgpack:"engine"`
}
