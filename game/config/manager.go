package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
	"github.com/wricardo/mcp-training/babaqm/game/service"
)

var (
	ErrConfigNotFound = errors.New("level not found")
	ErrInvalidConfig  = errors.New("invalid level")
)

// Manager handles level discovery, loading and caching. Levels are the *.json files of
// one directory, played in filename order.
type Manager struct {
	levelsDir string
	configs   map[string]*engine.LevelConfig
	mu        sync.RWMutex
}

// NewManager creates a level manager, creating the directory if it is missing
func NewManager(levelsDir string) (*Manager, error) {
	if err := os.MkdirAll(levelsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create levels directory: %w", err)
	}

	return &Manager{
		levelsDir: levelsDir,
		configs:   make(map[string]*engine.LevelConfig),
	}, nil
}

// Dir returns the levels directory
func (m *Manager) Dir() string {
	return m.levelsDir
}

// LoadConfig loads a level by id (its filename without .json)
func (m *Manager) LoadConfig(name string) (*engine.LevelConfig, error) {
	id, err := levelID(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	// Check cache first
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	data, err := os.ReadFile(filepath.Join(m.levelsDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, id)
		}
		return nil, fmt.Errorf("failed to read level file: %w", err)
	}

	config, err := engine.ParseLevelConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, id, err)
	}
	if config.Name == "" {
		config.Name = id
	}

	m.configs[id] = config
	return config, nil
}

// LevelIDs returns the ids of every level file in play order
func (m *Manager) LevelIDs() ([]string, error) {
	entries, err := os.ReadDir(m.levelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read levels directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// ListConfigs returns information about all loadable levels in play order
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	ids, err := m.LevelIDs()
	if err != nil {
		return nil, err
	}

	configs := make([]*service.ConfigInfo, 0, len(ids))
	for _, id := range ids {
		config, err := m.LoadConfig(id)
		if err != nil {
			// Skip invalid levels
			log.WithError(err).WithField("level", id).Debug("skipping level")
			continue
		}

		width, height := engine.Dimensions(config.Layout)
		configs = append(configs, &service.ConfigInfo{
			Filename:    id + ".json",
			ConfigID:    id,
			Name:        config.Name,
			Description: config.Description,
			Width:       width,
			Height:      height,
			Index:       len(configs),
		})
	}

	return configs, nil
}

// GetDefault returns the first level in play order, or nil when there are none
func (m *Manager) GetDefault() *engine.LevelConfig {
	configs, err := m.ListConfigs()
	if err != nil || len(configs) == 0 {
		return nil
	}
	config, err := m.LoadConfig(configs[0].ConfigID)
	if err != nil {
		return nil
	}
	return config
}

// NextConfig returns the level that follows current in play order
func (m *Manager) NextConfig(current string) (string, *engine.LevelConfig, error) {
	configs, err := m.ListConfigs()
	if err != nil {
		return "", nil, err
	}
	if len(configs) == 0 {
		return "", nil, service.ErrNoLevels
	}

	for i, info := range configs {
		if info.ConfigID != current {
			continue
		}
		if i+1 >= len(configs) {
			return "", nil, service.ErrNoMoreLevels
		}
		next := configs[i+1].ConfigID
		config, err := m.LoadConfig(next)
		return next, config, err
	}
	return "", nil, fmt.Errorf("%w: %s", ErrConfigNotFound, current)
}

// ConfigID returns the id of a loaded level, or "" if it did not come from this manager
func (m *Manager) ConfigID(config *engine.LevelConfig) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, c := range m.configs {
		if c == config {
			return id
		}
	}
	return ""
}

// RefreshCache drops every cached level so the next load reads from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = make(map[string]*engine.LevelConfig)
}

// ReloadConfig drops one cached level and reads it again
func (m *Manager) ReloadConfig(name string) error {
	id, err := levelID(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.configs, id)
	m.mu.Unlock()

	_, err = m.LoadConfig(id)
	return err
}

// ValidateConfig checks a level without saving it
func (m *Manager) ValidateConfig(config *engine.LevelConfig) error {
	if err := engine.ValidateLevelConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SaveConfig writes a level to disk and caches it
func (m *Manager) SaveConfig(name string, config *engine.LevelConfig) error {
	id, err := levelID(name)
	if err != nil {
		return err
	}
	if err := engine.ValidateLevelConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if config.Name == "" {
		config.Name = id
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal level: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.levelsDir, id+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write level file: %w", err)
	}

	m.mu.Lock()
	m.configs[id] = config
	m.mu.Unlock()

	return nil
}

// levelID strips an optional .json suffix and rejects ids that would escape the directory
func levelID(name string) (string, error) {
	id := strings.TrimSuffix(name, ".json")
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: bad level id %q", ErrInvalidConfig, name)
	}
	return id, nil
}
