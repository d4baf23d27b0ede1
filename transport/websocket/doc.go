// Package websocket provides WebSocket transport for the Baba QM puzzle.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - State broadcasting after every move, selection, reset and level change
//   - Connection lifecycle management with ping/pong keepalive
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns all connections
// on a single goroutine. Registration, broadcasts and client counts are all requests
// sent to that goroutine over channels, so the client map is never shared.
//
// Message Protocol:
//
// Messages are JSON documents, one per frame:
//
//	{"session_id": "ab12", "event": "state_update", "game_state": {...}}
//	{"session_id": "ab12", "event": "victory", "data": {...}}
//
// Clients choose their session with the query parameter ?session=ab12. Incoming frames
// are ignored.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
