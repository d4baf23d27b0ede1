// Package validate inspects level files before they are played. It checks:
//   - structure, via engine.ValidateLevelConfig
//   - tokens outside the level alphabet (# P B X M E Q T .)
//   - presence of a player, a quantum box and a goal
//   - connectivity: every goal lies in the region the player can walk to
//
// Structural failures make a level invalid. Everything else is reported as a warning,
// since a level missing a goal still loads and plays.
package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zyedidia/generic/mapset"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
)

// Tokens is the level alphabet
const Tokens = "#PBXMEQT."

// Report captures the outcome of inspecting a single level
type Report struct {
	ID       string
	Name     string
	Width    int
	Height   int
	Counts   map[byte]int
	Valid    bool
	Errors   []string
	Warnings []string
}

// Count returns how many times an entity token appears in the layout. Empty cells are
// not counted.
func (r *Report) Count(token byte) int {
	return r.Counts[token]
}

// CheckFile loads and inspects a level file. The id is the filename without .json.
func CheckFile(path string) *Report {
	id := strings.TrimSuffix(filepath.Base(path), ".json")
	config, err := engine.LoadLevelFile(path)
	if err != nil {
		return &Report{ID: id, Counts: map[byte]int{}, Errors: []string{err.Error()}}
	}
	return Check(id, config)
}

// Check inspects a decoded level
func Check(id string, config *engine.LevelConfig) *Report {
	report := &Report{ID: id, Valid: true, Counts: map[byte]int{}}
	if config == nil {
		report.Valid = false
		report.Errors = append(report.Errors, "level is nil")
		return report
	}

	report.Name = config.Name
	if report.Name == "" {
		report.Name = id
	}
	report.Width, report.Height = engine.Dimensions(config.Layout)

	if err := engine.ValidateLevelConfig(config); err != nil {
		report.Valid = false
		report.Errors = append(report.Errors, err.Error())
	}

	report.Counts = engine.CountTokens(config.Layout)
	for y, row := range config.Layout {
		if len(row) != report.Width {
			report.warn("row %d is %d wide, padded to %d with empty cells", y, len(row), report.Width)
		}
		for x := 0; x < len(row); x++ {
			if strings.IndexByte(Tokens, row[x]) < 0 {
				report.warn("unknown token %q at (%d,%d) loads as an empty cell", row[x], x, y)
			}
		}
	}

	if report.Count('P') == 0 {
		report.warn("no player (P): every move is rejected")
	}
	if report.Count('B') == 0 {
		report.warn("no quantum box (B): the level cannot be won")
	}
	if report.Count('X') == 0 {
		report.warn("no goal (X): the level cannot be won")
	}

	if report.Valid && report.Count('P') == 1 {
		for _, goal := range unreachableGoals(config.Layout) {
			report.warn("goal at (%d,%d) is walled off from the player", goal.X, goal.Y)
		}
	}
	return report
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// unreachableGoals flood-fills from the player over every cell that is not a wall or a
// player-blocking tile, and returns the goals the fill never touched. Blocks and
// superposition walls count as passable.
func unreachableGoals(layout []string) []engine.Position {
	width, height := engine.Dimensions(layout)
	token := func(p engine.Position) byte {
		if p.Y < 0 || p.Y >= height || p.X < 0 || p.X >= width {
			return '#'
		}
		if p.X >= len(layout[p.Y]) {
			return '.'
		}
		return layout[p.Y][p.X]
	}

	var start engine.Position
	var goals []engine.Position
	for y, row := range layout {
		for x := 0; x < len(row); x++ {
			switch row[x] {
			case 'P':
				start = engine.Position{X: x, Y: y}
			case 'X':
				goals = append(goals, engine.Position{X: x, Y: y})
			}
		}
	}

	visited := mapset.New[engine.Position]()
	visited.Put(start)
	queue := []engine.Position{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dir := range engine.Directions {
			dx, dy := dir.Delta()
			next := current.Add(dx, dy)
			if t := token(next); t == '#' || t == 'T' || visited.Has(next) {
				continue
			}
			visited.Put(next)
			queue = append(queue, next)
		}
	}

	var unreachable []engine.Position
	for _, goal := range goals {
		if !visited.Has(goal) {
			unreachable = append(unreachable, goal)
		}
	}
	return unreachable
}
