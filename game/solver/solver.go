package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"github.com/wricardo/mcp-training/babaqm/game/engine"
)

var (
	// ErrNondeterministic is returned for grids holding a superposition wall whose
	// collapse is left to chance
	ErrNondeterministic = errors.New("level has superposition walls with uncertain collapse")
	ErrNoPlayer         = errors.New("level has no player")
)

// DefaultMaxStates bounds the search when Options.MaxStates is zero
const DefaultMaxStates = 200000

// any draw works for walls with probability 0 or 1
var certainSource = engine.FixedSource(0.5)

// Options tunes the search
type Options struct {
	MaxStates int
}

// Result describes the outcome of a search
type Result struct {
	Solved bool     `json:"solved"`
	Moves  []string `json:"moves,omitempty"`
	// Explored counts distinct states visited
	Explored int `json:"explored"`
	// Exhausted is set when every reachable state was visited without a win
	Exhausted bool `json:"exhausted"`
	// Limited is set when the search stopped at MaxStates
	Limited bool `json:"limited"`
}

// step is one search edge: a player move, or the selection picks that pair or split
// entangled blocks
type step struct {
	dir   engine.Direction
	picks []engine.Position
}

type node struct {
	grid *engine.Grid
	path []step
}

// SolveLevel loads a level and searches it for the shortest winning move sequence
func SolveLevel(ctx context.Context, config *engine.LevelConfig, opts Options) (*Result, error) {
	if err := engine.ValidateLevelConfig(config); err != nil {
		return nil, err
	}
	return Solve(ctx, engine.LoadLevel(config.Layout, config.Options(certainSource)), opts)
}

// Solve runs a breadth-first search from grid, which is not modified. Edges are the four
// player moves plus every selection that entangles two free blocks or breaks a pair.
// Every move counts, including rejected ones, since a rejected move may still collapse a
// superposition wall. An entanglement counts as a single step.
func Solve(ctx context.Context, grid *engine.Grid, opts Options) (*Result, error) {
	if grid.Player() == nil {
		return nil, ErrNoPlayer
	}
	if err := checkDeterministic(grid); err != nil {
		return nil, err
	}
	if opts.MaxStates <= 0 {
		opts.MaxStates = DefaultMaxStates
	}

	result := &Result{}
	if engine.CheckVictory(grid) {
		result.Solved = true
		return result, nil
	}

	visited := mapset.New[string]()
	visited.Put(stateKey(grid))
	queue := []node{{grid: grid.Clone()}}

	for steps := 0; len(queue) > 0; steps++ {
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		current := queue[0]
		queue = queue[1:]

		for _, edge := range successors(current.grid) {
			key := stateKey(edge.grid)
			if visited.Has(key) {
				continue
			}
			visited.Put(key)

			path := make([]step, len(current.path)+1)
			copy(path, current.path)
			path[len(current.path)] = edge.step

			if engine.CheckVictory(edge.grid) {
				result.Solved = true
				result.Moves = stepNames(path)
				result.Explored = visited.Size()
				log.WithFields(log.Fields{"steps": len(path), "explored": result.Explored}).Debug("solution found")
				return result, nil
			}

			if visited.Size() >= opts.MaxStates {
				result.Limited = true
				result.Explored = visited.Size()
				return result, nil
			}
			queue = append(queue, node{grid: edge.grid, path: path})
		}
	}

	result.Exhausted = true
	result.Explored = visited.Size()
	return result, nil
}

type successor struct {
	grid *engine.Grid
	step step
}

func successors(g *engine.Grid) []successor {
	var out []successor
	for _, dir := range engine.Directions {
		next := g.Clone()
		engine.MovePlayer(next, dir, certainSource)
		out = append(out, successor{grid: next, step: step{dir: dir}})
	}

	// picks go through engine.Select so the recorded cells replay exactly, even when
	// mirrored blocks share a cell
	cells := entanglableCells(g)
	for i, a := range cells {
		next := g.Clone()
		if _, outcome := engine.Select(next, engine.SelectionState{}, a); outcome == engine.SelectionUnentangled {
			out = append(out, successor{grid: next, step: step{picks: []engine.Position{a}}})
		}
		for _, b := range cells[i+1:] {
			next := g.Clone()
			state, _ := engine.Select(next, engine.SelectionState{}, a)
			if state.Idle() {
				continue
			}
			if _, outcome := engine.Select(next, state, b); outcome == engine.SelectionEntangled {
				out = append(out, successor{grid: next, step: step{picks: []engine.Position{a, b}}})
			}
		}
	}
	return out
}

// entanglableCells lists each cell holding an entanglable block once, in id order
func entanglableCells(g *engine.Grid) []engine.Position {
	var blocks []*engine.Entity
	for _, e := range g.Entities() {
		if e.Kind() == engine.KindBlock && e.Entanglable() {
			blocks = append(blocks, e)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID() < blocks[j].ID() })

	seen := mapset.New[engine.Position]()
	var cells []engine.Position
	for _, e := range blocks {
		if seen.Has(e.Pos()) {
			continue
		}
		seen.Put(e.Pos())
		cells = append(cells, e.Pos())
	}
	return cells
}

func checkDeterministic(g *engine.Grid) error {
	for _, e := range g.Entities() {
		if e.Kind() != engine.KindSuperpositionWall || e.Collapse() != engine.Uncollapsed {
			continue
		}
		if p := e.CollapseProbability(); p != 0 && p != 1 {
			return fmt.Errorf("%w: wall at (%d,%d) has probability %.2f", ErrNondeterministic, e.Pos().X, e.Pos().Y, p)
		}
	}
	return nil
}

// stateKey identifies a grid by the entities that can change: the player, pushable
// blocks with their partners, and superposition walls. Static entities never move, so
// they are left out.
func stateKey(g *engine.Grid) string {
	type item struct {
		id      engine.EntityID
		x, y    int
		c       engine.CollapseState
		partner engine.EntityID
	}
	var items []item
	for _, e := range g.Entities() {
		switch e.Kind() {
		case engine.KindPlayer, engine.KindBlock, engine.KindQuantumBox, engine.KindSuperpositionWall:
			items = append(items, item{id: e.ID(), x: e.Pos().X, y: e.Pos().Y, c: e.Collapse(), partner: e.Partner()})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].id < items[j].id })

	var b strings.Builder
	for _, it := range items {
		b.WriteString(strconv.Itoa(int(it.id)))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(it.x))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(it.y))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(it.c)))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(it.partner)))
		b.WriteByte(';')
	}
	return b.String()
}

// stepNames spells a path the way players enter it: direction names, and
// select(x,y) for each selection pick
func stepNames(path []step) []string {
	var names []string
	for _, st := range path {
		if st.picks == nil {
			names = append(names, st.dir.String())
			continue
		}
		for _, p := range st.picks {
			names = append(names, FormatPick(p))
		}
	}
	return names
}

// FormatPick renders a selection pick as select(x,y)
func FormatPick(p engine.Position) string {
	return fmt.Sprintf("select(%d,%d)", p.X, p.Y)
}

// ParsePick reads a step written by FormatPick
func ParsePick(s string) (engine.Position, bool) {
	var p engine.Position
	if _, err := fmt.Sscanf(s, "select(%d,%d)", &p.X, &p.Y); err != nil {
		return engine.Position{}, false
	}
	return p, true
}
