package problem

import (
	"github.com/cardiolab/systole/internal/field"
	"github.com/cardiolab/systole/internal/parallel"
)

// Modifier is an output modifier: a hook that observes every printed
// timestep. Modifiers run in registration order, and every registered
// modifier's Finalise runs on both the success and the failure path.
type Modifier interface {
	// Start runs once before the first timestep.
	Start(f *field.Factory, g parallel.Group) error
	// ProcessStep observes the solution at one printed time. dim is the
	// number of stacked unknowns per node.
	ProcessStep(t float64, v *field.Vector, dim int) error
	// Finalise runs exactly once when the run ends, however it ends.
	Finalise() error
}
