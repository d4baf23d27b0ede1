// Package service provides the business logic layer for the Baba QM puzzle.
//
// The service package implements:
//   - Multi-session game management
//   - Level selection and progression
//   - Move processing with per-step diagnostics
//   - Entanglement selection
//   - Move history pagination
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and persistence.
// ConfigManager loads levels and knows their play order.
//
// Architecture:
//
// The service layer sits between the transports (HTTP/WebSocket/MCP) and the game
// engine. All engine mutations run under the service mutex, so a push chain always
// resolves completely before another request can observe the grid.
//
// Usage:
//
//	configMgr, _ := config.NewManager("levels")
//	sessionMgr := session.NewManager()
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := gameService.CreateSession(ctx, "01_intro")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.BulkMove(ctx, info.ID, []string{"right", "right"}, false)
//
// Events:
//
// Every operation reports what happened as GameEvents (move, push, mirror, collapse,
// blocked, victory, ...). Rejected moves carry a stop reason code such as
// blocked_wall or collapsed_solid.
package service
