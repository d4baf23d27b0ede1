// Package mcp exposes the Baba QM puzzle to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the REST API
// served by package api, so an agent and a browser watching the WebSocket stream see
// the same sessions.
//
// MCP Tools:
//   - create_session, list_sessions, get_session: session management
//   - game_state: grid with a column ruler, entanglements and pending superposition walls
//   - move, bulk_move: movement, with a required intent string
//   - select_block: entanglement selection by coordinate
//   - reset_level, next_level: level control
//   - move_history: paginated history plus the moves since the last reset
//   - list_levels, describe_cell, game_instructions
//
// Transport Modes:
//
// The same server backs both the stdio transport (server.ServeStdio) used by local
// MCP clients and the /mcp HTTP endpoint mounted by the server command.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
