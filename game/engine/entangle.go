package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNotEntanglable   = errors.New("entity cannot be entangled")
	ErrAlreadyEntangled = errors.New("entity is already entangled")
)

// Entangle pairs two distinct, unpaired, entanglable blocks. Both sides are written here
// and in Unentangle only, which keeps the relation symmetric.
func Entangle(a, b *Entity) error {
	if a == nil || b == nil || a == b {
		return ErrNotEntanglable
	}
	for _, e := range []*Entity{a, b} {
		if e.kind != KindBlock || !e.entanglable {
			return fmt.Errorf("entangle %d: %w", e.id, ErrNotEntanglable)
		}
		if e.Entangled() {
			return fmt.Errorf("entangle %d: %w", e.id, ErrAlreadyEntangled)
		}
	}
	a.partner = b.id
	b.partner = a.id
	return nil
}

// Unentangle clears a and its partner
func Unentangle(g *Grid, a *Entity) {
	if a == nil || !a.Entangled() {
		return
	}
	if p := g.Entity(a.partner); p != nil && p.partner == a.id {
		p.partner = NoEntity
	}
	a.partner = NoEntity
}

// SelectionOutcome describes what a selection click did
type SelectionOutcome uint8

const (
	SelectionIgnored SelectionOutcome = iota
	SelectionSelected
	SelectionDeselected
	SelectionEntangled
	SelectionUnentangled
)

func (o SelectionOutcome) String() string {
	switch o {
	case SelectionSelected:
		return "selected"
	case SelectionDeselected:
		return "deselected"
	case SelectionEntangled:
		return "entangled"
	case SelectionUnentangled:
		return "unentangled"
	}
	return "ignored"
}

// SelectionState is the entanglement selection machine: Idle, or Selected(block)
type SelectionState struct {
	Selected EntityID `json:"selected,omitempty" msgpack:"selected,omitempty"`
}

// Idle reports whether no block is selected
func (s SelectionState) Idle() bool { return s.Selected == NoEntity }

// Select applies one pick at pos and returns the next state.
//
//	Idle        + unpaired block -> Selected(block)
//	Selected(a) + a              -> Idle
//	any         + entangled blk  -> break the pair, Idle
//	Selected(a) + unpaired b     -> entangle(a, b), Idle
//
// Picks on cells without an entanglable block leave the state unchanged.
func Select(g *Grid, state SelectionState, pos Position) (SelectionState, SelectionOutcome) {
	picked := entanglableAt(g, pos)
	if picked == nil {
		return state, SelectionIgnored
	}

	selected := g.Entity(state.Selected)
	if selected == nil {
		// stale selection, e.g. after a reset
		state = SelectionState{}
	}

	switch {
	case picked.Entangled():
		Unentangle(g, picked)
		return SelectionState{}, SelectionUnentangled
	case state.Idle():
		return SelectionState{Selected: picked.id}, SelectionSelected
	case picked == selected:
		return SelectionState{}, SelectionDeselected
	}

	if err := Entangle(selected, picked); err != nil {
		// the selected block got paired some other way; start over from the new pick
		return SelectionState{Selected: picked.id}, SelectionSelected
	}
	return SelectionState{}, SelectionEntangled
}

// entanglableAt returns the first entanglable block in the cell
func entanglableAt(g *Grid, pos Position) *Entity {
	for _, e := range g.EntitiesAt(pos) {
		if e.kind == KindBlock && e.entanglable {
			return e
		}
	}
	return nil
}
