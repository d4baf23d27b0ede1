package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// LevelConfig represents a level file. Only Layout matters to the engine; the rest is
// display metadata.
type LevelConfig struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Layout      []string `json:"layout"`

	// QuantumProbability, when present, is the collapse probability of every Q token.
	// Absent, each Q draws its own probability when the level loads.
	QuantumProbability *float64 `json:"quantum_probability,omitempty"`

	Messages LevelMessages `json:"messages,omitempty"`
}

// LevelMessages are optional texts shown by clients
type LevelMessages struct {
	Welcome string `json:"welcome,omitempty"`
	Victory string `json:"victory,omitempty"`
	Blocked string `json:"blocked,omitempty"`
}

const (
	defaultWelcome = "Push the quantum box onto a goal."
	defaultVictory = "Level complete!"
	defaultBlocked = "Can't move %s"
)

// Dimensions returns the grid size a layout produces: one row per string, as wide as
// the longest row
func Dimensions(layout []string) (width, height int) {
	for _, row := range layout {
		if len(row) > width {
			width = len(row)
		}
	}
	return width, len(layout)
}

// ValidateLevelConfig checks a level for structural problems. Unknown tokens are not an
// error; they load as empty cells.
func ValidateLevelConfig(config *LevelConfig) error {
	if config == nil {
		return fmt.Errorf("level validation: config is nil")
	}
	if len(config.Layout) == 0 {
		return fmt.Errorf("level validation: layout is required")
	}

	width, height := Dimensions(config.Layout)
	if width == 0 {
		return fmt.Errorf("level validation: layout rows are empty")
	}
	if width > MaxGridSize || height > MaxGridSize {
		return fmt.Errorf("level validation: grid must be at most %dx%d, got %dx%d",
			MaxGridSize, MaxGridSize, width, height)
	}

	players := 0
	for _, row := range config.Layout {
		for i := 0; i < len(row); i++ {
			if row[i] == 'P' {
				players++
			}
		}
	}
	if players > 1 {
		return fmt.Errorf("level validation: layout must contain at most one player (P), got %d", players)
	}

	if p := config.QuantumProbability; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("level validation: quantum_probability must be within [0,1], got %v", *p)
	}
	return nil
}

// ParseLevelConfig decodes and validates a level file's contents
func ParseLevelConfig(data []byte) (*LevelConfig, error) {
	var config LevelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse level: %w", err)
	}
	if err := ValidateLevelConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadLevelFile reads a level from a JSON file
func LoadLevelFile(filename string) (*LevelConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseLevelConfig(data)
}

// LoadOptions tunes how a layout becomes a grid
type LoadOptions struct {
	QuantumProbability *float64
	// Source draws the initial probability of Q tokens; defaults to math/rand
	Source CollapseSource
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// LoadLevel builds a fresh grid from a layout: row index is y, column index is x.
// Unknown tokens leave the cell empty, and only the first P becomes the player.
func LoadLevel(layout []string, opts LoadOptions) *Grid {
	source := opts.Source
	if source == nil {
		source = globalSource{}
	}

	width, height := Dimensions(layout)
	g := NewGrid(width, height)
	hasPlayer := false

	for y, row := range layout {
		for x := 0; x < len(row); x++ {
			pos := Position{X: x, Y: y}
			var e *Entity
			switch row[x] {
			case '#':
				e = NewEntity(KindWall, pos)
			case 'P':
				if hasPlayer {
					continue
				}
				hasPlayer = true
				e = NewEntity(KindPlayer, pos)
			case 'B':
				e = NewEntity(KindQuantumBox, pos)
			case 'X':
				e = NewEntity(KindGoal, pos)
			case 'M':
				e = NewBlock(pos, false)
			case 'E':
				e = NewBlock(pos, true)
			case 'Q':
				p := source.Float64()
				if opts.QuantumProbability != nil {
					p = *opts.QuantumProbability
				}
				e = NewSuperpositionWall(pos, p)
			case 'T':
				e = NewEntity(KindPlayerBlockingTile, pos)
			default:
				continue
			}
			// in bounds by construction
			g.Place(e)
		}
	}
	return g
}

// ResetLevel discards the current grid and loads the layout again
func ResetLevel(layout []string, opts LoadOptions) *Grid {
	return LoadLevel(layout, opts)
}

// Options returns the load options a config implies
func (c *LevelConfig) Options(source CollapseSource) LoadOptions {
	return LoadOptions{QuantumProbability: c.QuantumProbability, Source: source}
}

// WelcomeMessage returns the configured welcome text or the default
func (c *LevelConfig) WelcomeMessage() string {
	if c.Messages.Welcome != "" {
		return c.Messages.Welcome
	}
	return defaultWelcome
}

// VictoryMessage returns the configured victory text or the default
func (c *LevelConfig) VictoryMessage() string {
	if c.Messages.Victory != "" {
		return c.Messages.Victory
	}
	return defaultVictory
}

// BlockedMessage returns the configured blocked text with its first %s replaced by the
// direction. Any other % sequence is kept as written.
func (c *LevelConfig) BlockedMessage(dir Direction) string {
	msg := c.Messages.Blocked
	if msg == "" {
		msg = defaultBlocked
	}
	return strings.Replace(msg, "%s", dir.String(), 1)
}
