// Package mesh constructs the regular slab meshes simulations run on and
// owns the node partition a run's vectors are allocated over.
package mesh

import (
	"fmt"

	"github.com/cardiolab/systole/internal/field"
	"github.com/cardiolab/systole/internal/parallel"
	"github.com/cardiolab/systole/internal/simdef"
)

// Mesh is a regular lattice over a 1, 2 or 3 dimensional slab. Nodes are
// numbered in x-fastest order; each rank owns a contiguous block of them.
type Mesh struct {
	dim     int
	counts  [3]int // nodes per axis; unused axes hold 1
	spacing float64
	nodes   int

	group   parallel.Group
	factory *field.Factory
	perm    []int // output permutation; nil means identity
}

// NewSlab builds a slab mesh with a node at every lattice point of the given
// extent and spacing, partitioned across the ranks of g.
func NewSlab(g parallel.Group, dim int, extent []float64, h float64) (*Mesh, error) {
	if dim < 1 || dim > 3 {
		return nil, simdef.NewConfigError(simdef.CfgBadGeometry, "geometry.dim",
			fmt.Sprintf("unsupported dimension %d", dim))
	}
	if h <= 0 {
		return nil, simdef.NewConfigError(simdef.CfgBadGeometry, "geometry.spacing",
			fmt.Sprintf("spacing %v must be positive", h))
	}
	if len(extent) != dim {
		return nil, simdef.NewConfigError(simdef.CfgBadGeometry, "geometry.extent",
			fmt.Sprintf("extent has %d entries for a %dD mesh", len(extent), dim))
	}

	m := &Mesh{dim: dim, spacing: h, group: g, counts: [3]int{1, 1, 1}}
	total := 1
	for axis := 0; axis < dim; axis++ {
		if extent[axis] <= 0 {
			return nil, simdef.NewConfigError(simdef.CfgBadGeometry, "geometry.extent",
				fmt.Sprintf("extent[%d] = %v must be positive", axis, extent[axis]))
		}
		n := int(extent[axis]/h+0.5) + 1
		if n < 2 {
			return nil, simdef.NewConfigError(simdef.CfgBadGeometry, "geometry.spacing",
				fmt.Sprintf("spacing %v leaves fewer than two nodes along axis %d", h, axis))
		}
		m.counts[axis] = n
		total *= n
	}
	m.nodes = total
	m.factory = field.NewFactory(g, total)
	return m, nil
}

// FromDefinition builds the mesh a definition describes.
func FromDefinition(g parallel.Group, def *simdef.Definition) (*Mesh, error) {
	return NewSlab(g, def.Geometry.Dim, def.Geometry.Extent, def.Geometry.Spacing)
}

// Dim returns the spatial dimension.
func (m *Mesh) Dim() int { return m.dim }

// Nodes returns the global node count.
func (m *Mesh) Nodes() int { return m.nodes }

// Spacing returns the lattice constant.
func (m *Mesh) Spacing() float64 { return m.spacing }

// AxisNodes returns the node count along one axis (1 for unused axes).
func (m *Mesh) AxisNodes(axis int) int { return m.counts[axis] }

// Group returns the process group the mesh is partitioned over.
func (m *Mesh) Group() parallel.Group { return m.group }

// Factory returns the vector factory bound to this mesh's partition.
func (m *Mesh) Factory() *field.Factory { return m.factory }

// Lo returns the first locally owned node index.
func (m *Mesh) Lo() int { return m.factory.Lo() }

// Hi returns one past the last locally owned node index.
func (m *Mesh) Hi() int { return m.factory.Hi() }

// NodeCoords returns the physical coordinates of a node, one entry per
// dimension.
func (m *Mesh) NodeCoords(node int) []float64 {
	coords := make([]float64, m.dim)
	rest := node
	for axis := 0; axis < m.dim; axis++ {
		coords[axis] = float64(rest%m.counts[axis]) * m.spacing
		rest /= m.counts[axis]
	}
	return coords
}

// IsBoundary reports whether the node lies on the slab surface.
func (m *Mesh) IsBoundary(node int) bool {
	rest := node
	for axis := 0; axis < m.dim; axis++ {
		i := rest % m.counts[axis]
		if i == 0 || i == m.counts[axis]-1 {
			return true
		}
		rest /= m.counts[axis]
	}
	return false
}

// BoundaryNodes returns every boundary node index in increasing order.
func (m *Mesh) BoundaryNodes() []int {
	var out []int
	for n := 0; n < m.nodes; n++ {
		if m.IsBoundary(n) {
			out = append(out, n)
		}
	}
	return out
}

// Permutation returns the output node reordering, or nil for identity.
func (m *Mesh) Permutation() []int { return m.perm }

// ApplyPermutation installs an output node reordering. The permutation is
// best-effort: an inapplicable one (wrong length, not a bijection) is
// rejected with an error and callers disable the feature for the run.
func (m *Mesh) ApplyPermutation(p []int) error {
	if len(p) != m.nodes {
		return fmt.Errorf("mesh: permutation has %d entries for %d nodes", len(p), m.nodes)
	}
	seen := make([]bool, m.nodes)
	for _, idx := range p {
		if idx < 0 || idx >= m.nodes || seen[idx] {
			return fmt.Errorf("mesh: permutation is not a bijection over %d nodes", m.nodes)
		}
		seen[idx] = true
	}
	m.perm = append([]int(nil), p...)
	return nil
}
