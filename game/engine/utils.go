package engine

import "strings"

// CountKind counts the entities of a specific kind on the grid
func CountKind(g *Grid, kind Kind) int {
	count := 0
	for _, e := range g.Entities() {
		if e.kind == kind {
			count++
		}
	}
	return count
}

// CountTokens counts layout tokens, ignoring empty cells and unknown characters
func CountTokens(layout []string) map[byte]int {
	counts := make(map[byte]int)
	for _, row := range layout {
		for i := 0; i < len(row); i++ {
			switch c := row[i]; c {
			case '#', 'P', 'B', 'X', 'M', 'E', 'Q', 'T':
				counts[c]++
			}
		}
	}
	return counts
}

// DescribeCell returns the views of every occupant of pos
func DescribeCell(g *Grid, pos Position) []EntityView {
	occupants := g.EntitiesAt(pos)
	views := make([]EntityView, 0, len(occupants))
	for _, e := range occupants {
		views = append(views, e.View())
	}
	return views
}

// LocalView renders the 3x3 neighbourhood of center. Cells outside the grid show as walls.
func LocalView(g *Grid, center Position) []string {
	lines := make([]string, 0, 3)
	for dy := -1; dy <= 1; dy++ {
		var row strings.Builder
		for dx := -1; dx <= 1; dx++ {
			pos := center.Add(dx, dy)
			if !g.InBounds(pos) {
				row.WriteByte('#')
				continue
			}
			row.WriteByte(g.cellToken(pos))
		}
		lines = append(lines, row.String())
	}
	return lines
}
