// Package config provides level management for the Baba QM puzzle.
//
// The config package handles:
//   - Discovering level files in a directory, in filename order
//   - Loading, validating and caching levels
//   - Finding the level that follows another one
//   - Saving new levels
//
// Level Format:
//
// Levels are JSON files. Only "layout" is required; each row is one line of tokens
// (# wall, P player, B quantum box, X goal, M block, E entanglable block, Q superposition
// wall, T player-blocking tile). The file name without .json is the level id, and the
// display name defaults to it.
//
// Usage:
//
//	manager, err := config.NewManager("levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadConfig("01_intro")
//	next, nextLevel, err := manager.NextConfig("01_intro")
package config
