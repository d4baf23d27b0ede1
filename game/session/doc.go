// Package session provides session management for the Baba QM puzzle.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Random 4-character session IDs, matched case-insensitively
//   - Optional write-through persistence with lazy reload
//   - Expiry of idle sessions from memory
//
// Persistence:
//
// FilePersistence stores one msgpack file per session under the sessions directory.
// A file holds the session metadata, the id of the level it plays and a full engine
// snapshot (entities, collapse states, entanglement, selection and history), so a
// restarted server resumes every game exactly where it stopped.
//
// Usage:
//
//	levels, _ := config.NewManager("levels")
//	store, err := session.NewFilePersistence("sessions", levels)
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(store)
//	manager.LoadPersistedSessions()
//
//	sess, err := manager.Create("", "01_intro", level)
//	sess, err = manager.Get(sess.ID)
package session
