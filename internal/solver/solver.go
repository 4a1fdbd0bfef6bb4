// Package solver defines the contract the orchestrator drives one printing
// interval at a time, the boundary-condition container shared with it, and
// reference implementations good enough to produce physically plausible
// traces for tests and demos.
package solver

import (
	"context"

	"github.com/cardiolab/systole/internal/field"
)

// Solver advances the coupled field equations across one time window.
//
// The returned vector may be the initial-condition vector (in-place solvers)
// or a fresh allocation from the same factory; the caller compares identities
// before releasing anything. Solve is a collective operation: in a process
// group every rank must call it together.
type Solver interface {
	// SetTimes sets the window [t0, t1] the next Solve advances across.
	SetTimes(t0, t1 float64)

	// SetTimeStep sets the inner sub-cycling step.
	SetTimeStep(dt float64)

	// SetInitialCondition hands the solver the field state at t0. The
	// solver borrows the vector; ownership stays with the caller.
	SetInitialCondition(v *field.Vector)

	// Solve advances from t0 to t1 and returns the solution vector.
	Solve(ctx context.Context) (*field.Vector, error)
}

// TimeAdaptivityController lets a caller shrink or grow the inner time step
// between printing intervals, based on the current field state.
type TimeAdaptivityController interface {
	ComputeTimeStep(currentTime float64, v *field.Vector) float64
}

// Adaptive is implemented by solvers that accept a time-adaptivity
// controller.
type Adaptive interface {
	SetTimeAdaptivity(c TimeAdaptivityController)
}

// Destroyable is implemented by solvers that hold resources beyond their
// Go allocation. The orchestrator destroys a solver exactly once per solve,
// on both the success and the failure path.
type Destroyable interface {
	Destroy()
}
