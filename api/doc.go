// Package api provides the HTTP REST API for the Baba QM puzzle.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"config_id": "01_intro"}, empty for the first level)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/unified - Sessions with their states (?sessionIds=a,b or ?level=01_intro)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current game state
//   - POST /api/sessions/{id}/move - {"direction": "up", "reset": false}
//   - POST /api/sessions/{id}/bulk-move - {"moves": ["up", "left"], "reset": false}
//   - POST /api/sessions/{id}/select - {"x": 2, "y": 3} entanglement selection
//   - POST /api/sessions/{id}/reset - Reload the level
//   - POST /api/sessions/{id}/next-level - Advance after a win
//   - GET /api/sessions/{id}/history - Move history (?page=&limit=&order=)
//   - GET /api/sessions/{id}/cells/{x}/{y} - Occupants of one cell
//
// Levels:
//   - GET /api/levels - Levels in play order
//   - POST /api/levels - Save a level ({"id": "05_custom", "layout": [...]})
//   - GET /api/levels/{name} - Level definition
//   - GET /api/levels/{name}/solution - Shortest solution, for levels without random walls
//
// Other:
//   - GET /api/health - Liveness
//   - GET /ws?session={id} - WebSocket state stream
//
// Errors are JSON documents of the form {"error": "..."}. Unknown sessions and levels
// are 404, malformed input is 400 and out-of-order level changes are 409. A blocked move
// is not an error; it returns 200 with success=false.
package api
