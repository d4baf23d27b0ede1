package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
	"github.com/wricardo/mcp-training/babaqm/game/service"
)

// Levels is the catalogue the terminal client plays through, in order
type Levels interface {
	LevelIDs() ([]string, error)
	LoadConfig(name string) (*engine.LevelConfig, error)
}

// Model is the Bubbletea model for the terminal client. It owns its engine; nothing
// else touches it.
type Model struct {
	levels Levels
	ids    []string
	index  int
	source engine.CollapseSource
	game   *engine.GameEngine

	// aiming is set while the entanglement cursor is active
	aiming bool
	cursor engine.Position

	finished bool
	quitting bool
	err      error
}

// NewModel loads the level catalogue and starts the level named start, or the first one.
// A nil source collapses superposition walls at random.
func NewModel(levels Levels, start string, source engine.CollapseSource) (Model, error) {
	ids, err := levels.LevelIDs()
	if err != nil {
		return Model{}, err
	}
	if len(ids) == 0 {
		return Model{}, service.ErrNoLevels
	}

	m := Model{levels: levels, ids: ids, source: source}
	if start != "" {
		m.index = -1
		for i, id := range ids {
			if id == start {
				m.index = i
			}
		}
		if m.index < 0 {
			return Model{}, fmt.Errorf("level %q not found, available: %v", start, ids)
		}
	}

	if err := m.load(m.index); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Run plays the catalogue in the terminal until the player quits
func Run(levels Levels, start string) error {
	model, err := NewModel(levels, start, nil)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func (m *Model) load(index int) error {
	config, err := m.levels.LoadConfig(m.ids[index])
	if err != nil {
		return fmt.Errorf("level %s: %w", m.ids[index], err)
	}

	var game *engine.GameEngine
	if m.source != nil {
		game, err = engine.NewEngineWithSource(config, m.source)
	} else {
		game, err = engine.NewEngine(config)
	}
	if err != nil {
		return fmt.Errorf("level %s: %w", m.ids[index], err)
	}

	m.index = index
	m.game = game
	m.aiming = false
	return nil
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles key presses
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	if m.finished {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		m.step(engine.Up)
	case "down", "j":
		m.step(engine.Down)
	case "left", "h":
		m.step(engine.Left)
	case "right", "l":
		m.step(engine.Right)

	case "e":
		m.aiming = !m.aiming
		if m.aiming {
			if pos, ok := m.game.GetPlayerPosition(); ok {
				m.cursor = pos
			}
		}

	case " ", "enter":
		if m.aiming {
			m.game.Select(m.cursor.X, m.cursor.Y)
		}

	case "r":
		m.game.Reset()
		m.aiming = false
		m.err = nil

	case "n":
		if !m.game.IsVictory() {
			return m, nil
		}
		if m.index+1 >= len(m.ids) {
			m.finished = true
			return m, nil
		}
		if err := m.load(m.index + 1); err != nil {
			m.err = err
		}
	}

	return m, nil
}

// step moves the cursor while aiming and the player otherwise
func (m *Model) step(dir engine.Direction) {
	if !m.aiming {
		m.game.MoveDirection(dir)
		return
	}

	dx, dy := dir.Delta()
	next := m.cursor.Add(dx, dy)
	if m.game.Grid().InBounds(next) {
		m.cursor = next
	}
}

// View renders the board and the side panel
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.finished {
		return winnerStyle.Render("All levels complete!") + "\n\n" + helpStyle.Render("q: quit") + "\n"
	}

	state := m.game.GetState()
	board := RenderBoard(state, m.cursor, m.aiming)
	hud := RenderHUD(state, m.index+1, len(m.ids), m.aiming)

	view := lipgloss.JoinHorizontal(lipgloss.Top, board, "  ", hud) + "\n"
	if m.err != nil {
		view += errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	return view
}
