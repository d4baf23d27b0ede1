package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
)

// Color palette
var (
	wallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#333344"))

	playerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff88")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff44ff")).
			Bold(true)

	goalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffcc00"))

	blockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0772B"))

	entanglableStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#44aaff"))

	entangledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#44aaff")).
			Underline(true).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1a1a2e")).
			Background(lipgloss.Color("#44aaff"))

	superpositionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8888ff")).
				Italic(true)

	tileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff6600"))

	cursorStyle = lipgloss.NewStyle().Reverse(true)

	// HUD styles
	hudBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff8844")).
			Bold(true)

	winnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff88")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff4444"))
)

var tokenStyles = map[byte]lipgloss.Style{
	'#': wallStyle,
	'.': emptyStyle,
	'P': playerStyle,
	'B': boxStyle,
	'X': goalStyle,
	'M': blockStyle,
	'E': entanglableStyle,
	'Q': superpositionStyle,
	'T': tileStyle,
}

// RenderBoard draws the grid. Entangled blocks are underlined, the selected block is
// highlighted and, while aiming, the cursor cell is reversed.
func RenderBoard(state *engine.GameState, cursor engine.Position, aiming bool) string {
	if state == nil || len(state.Rows) == 0 {
		return "No level loaded"
	}

	entangled := make(map[engine.Position]bool)
	var selected *engine.Position
	for _, e := range state.Entities {
		pos := engine.Position{X: e.X, Y: e.Y}
		if e.Partner != 0 {
			entangled[pos] = true
		}
		if state.Selected != 0 && e.ID == state.Selected {
			selected = &pos
		}
	}

	var b strings.Builder
	for y, row := range state.Rows {
		for x := 0; x < len(row); x++ {
			pos := engine.Position{X: x, Y: y}
			token := row[x]

			style, ok := tokenStyles[token]
			if !ok {
				style = emptyStyle
			}
			if token == 'E' && entangled[pos] {
				style = entangledStyle
			}
			if selected != nil && *selected == pos {
				style = selectedStyle
			}
			if aiming && cursor == pos {
				style = cursorStyle
			}

			b.WriteString(style.Render(string(token)))
		}
		if y < len(state.Rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderHUD draws the side panel
func RenderHUD(state *engine.GameState, level, levels int, aiming bool) string {
	var lines []string

	lines = append(lines, titleStyle.Render("BABA QM"))
	lines = append(lines, fmt.Sprintf("Level %d/%d: %s", level, levels, state.ConfigName))
	lines = append(lines, fmt.Sprintf("Moves: %d", state.CurrentMovesCount))
	lines = append(lines, "")

	if state.Victory {
		lines = append(lines, winnerStyle.Render("Level complete!"))
		lines = append(lines, "n: next level")
	} else if state.Message != "" {
		lines = append(lines, state.Message)
	}

	if aiming {
		lines = append(lines, "", selectedStyle.Render("ENTANGLE"), "arrows: cursor", "space: select", "e: done")
	}

	lines = append(lines, "",
		helpStyle.Render("arrows/hjkl: move"),
		helpStyle.Render("e: entangle  r: reset"),
		helpStyle.Render("q: quit"),
	)

	return hudBorderStyle.Render(strings.Join(lines, "\n"))
}
