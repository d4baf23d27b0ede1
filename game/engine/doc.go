// Package engine provides the core game logic for the Baba QM push puzzle.
//
// The engine package implements the game mechanics including:
//   - A multi-occupant grid that indexes every entity by cell
//   - Push resolution with chained pushes and entangled mirroring
//   - Superposition walls that collapse once on first contact
//   - Entanglement selection and the victory check
//   - Level loading and validation
//
// Core Types:
//
// Grid is the spatial index and the only place entity positions change. TryMove resolves
// one move against it and returns a MoveReport. GameEngine wraps a single level with its
// history, selection state and messages, and implements the Engine interface used by the
// service layer.
//
// Usage:
//
//	config, err := engine.LoadLevelFile("levels/01_intro.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Move the player
//	success := gameEngine.Move("right")
//	state := gameEngine.GetState()
//
// Game Rules:
//
// The player pushes blocks around the grid. A level is won when a quantum box shares a
// cell with a goal. Walls never move; superposition walls turn solid or vanish the first
// time something tries to enter them; player-blocking tiles stop only the player.
// Entangled blocks copy each other's displacement.
package engine
