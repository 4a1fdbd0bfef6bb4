package solver

import (
	"fmt"

	"github.com/cardiolab/systole/internal/mesh"
)

// BoundaryConditions holds the per-stripe boundary data of a problem:
// Neumann fluxes and Dirichlet values keyed by boundary node. An empty
// container means zero flux everywhere, the natural condition for an
// insulated slab.
//
// The container is shared by reference between the orchestrator and the
// solver it hands it to; neither copies it.
type BoundaryConditions struct {
	stride    int
	neumann   []map[int]float64
	dirichlet []map[int]float64
}

// DefaultZeroNeumann builds the zero-flux container for a mesh and problem
// dimension. The orchestrator synthesizes one lazily at solve time when the
// variant supplies none.
func DefaultZeroNeumann(m *mesh.Mesh, stride int) *BoundaryConditions {
	b := &BoundaryConditions{
		stride:    stride,
		neumann:   make([]map[int]float64, stride),
		dirichlet: make([]map[int]float64, stride),
	}
	for s := 0; s < stride; s++ {
		b.neumann[s] = make(map[int]float64)
		b.dirichlet[s] = make(map[int]float64)
	}
	return b
}

// Stride returns the number of stacked unknowns the container covers.
func (b *BoundaryConditions) Stride() int { return b.stride }

// SetNeumann sets the boundary flux of one stripe at one node.
func (b *BoundaryConditions) SetNeumann(stripe, node int, flux float64) error {
	if stripe < 0 || stripe >= b.stride {
		return fmt.Errorf("solver: stripe %d out of range for stride %d", stripe, b.stride)
	}
	b.neumann[stripe][node] = flux
	return nil
}

// SetDirichlet pins the value of one stripe at one node.
func (b *BoundaryConditions) SetDirichlet(stripe, node int, value float64) error {
	if stripe < 0 || stripe >= b.stride {
		return fmt.Errorf("solver: stripe %d out of range for stride %d", stripe, b.stride)
	}
	b.dirichlet[stripe][node] = value
	return nil
}

// Dirichlet returns the pinned values of one stripe. The map is live, not a
// copy.
func (b *BoundaryConditions) Dirichlet(stripe int) map[int]float64 {
	return b.dirichlet[stripe]
}

// Neumann returns the boundary fluxes of one stripe. The map is live, not a
// copy.
func (b *BoundaryConditions) Neumann(stripe int) map[int]float64 {
	return b.neumann[stripe]
}

// IsZeroFlux reports whether the container is the pure default: no Dirichlet
// pins and no nonzero fluxes.
func (b *BoundaryConditions) IsZeroFlux() bool {
	for s := 0; s < b.stride; s++ {
		if len(b.dirichlet[s]) > 0 {
			return false
		}
		for _, flux := range b.neumann[s] {
			if flux != 0 {
				return false
			}
		}
	}
	return true
}
