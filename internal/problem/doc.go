// Package problem orchestrates a simulation run: it owns the state machine
// from Initialise through Solve to Completed or Failed, drives the solver
// across the printing grid, persists checkpoint rows, and dispatches
// post-processing.
//
// # State machine
//
//	Uninitialised -> Initialised -> Solving -> {Completed | Failed}
//
// Misuse (Solve before Initialise) is a configuration error, not a panic.
//
// # Failure unwind
//
// Every collective call is followed by Group.ReplicateError so a failure on
// any rank puts all ranks on the unwind path in the same iteration. The
// unwind releases the solver exactly once, releases the in-flight vector
// only when it is not the retained solution, runs every modifier's
// Finalise, closes the writer and runs post-processing. The retained
// solution survives Solve so a later Solve (after extending the run's
// duration) continues from it in memory.
package problem
