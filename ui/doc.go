// Package ui is the terminal client: a Bubbletea program that plays the level catalogue
// in order on a local engine.
//
// Keys: arrows or hjkl move; e toggles the entanglement cursor, which the same keys then
// steer and space or enter selects under; r resets; n advances after a win; q or esc quits.
package ui
