// Package solver finds the shortest winning move sequence for a level.
//
// The search is breadth-first over player moves. States are keyed by the positions of
// everything that can move plus the collapse state of superposition walls, and visited
// keys are kept in a mapset. Levels whose superposition walls collapse by chance have no
// single answer and are rejected with ErrNondeterministic; walls with probability 0 or 1
// are fine.
//
//	result, err := solver.SolveLevel(ctx, level, solver.Options{MaxStates: 50000})
//	if err == nil && result.Solved {
//		fmt.Println(strings.Join(result.Moves, " "))
//	}
package solver
