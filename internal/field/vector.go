// Package field provides the distributed field vectors a simulation solves
// for, and the factory that allocates them.
//
// A Vector holds the local slice of a global per-node field: Stride unknowns
// per node, nodes partitioned contiguously across the ranks of a
// parallel.Group. The Factory keeps an allocation ledger so release-exactly-
// once is checkable: the orchestrator's unwind paths are verified in tests
// against Live().
package field

import "fmt"

// Vector is one rank's slice of a global per-node field. Node indices are
// global; only nodes in [Lo, Hi) are addressable locally.
type Vector struct {
	stride int
	nodes  int // global node count
	lo, hi int // local node range [lo, hi)
	data   []float64
}

// Stride returns the number of stacked unknowns per node.
func (v *Vector) Stride() int { return v.stride }

// GlobalNodes returns the global node count.
func (v *Vector) GlobalNodes() int { return v.nodes }

// Lo returns the first locally owned node index.
func (v *Vector) Lo() int { return v.lo }

// Hi returns one past the last locally owned node index.
func (v *Vector) Hi() int { return v.hi }

// At returns the value of the given stripe at a locally owned node.
func (v *Vector) At(node, stripe int) float64 {
	return v.data[(node-v.lo)*v.stride+stripe]
}

// Set stores the value of the given stripe at a locally owned node.
func (v *Vector) Set(node, stripe int, val float64) {
	v.data[(node-v.lo)*v.stride+stripe] = val
}

// Local returns the backing slice, node-major: all stripes of node Lo,
// then node Lo+1, and so on. The caller must not hold it past a Release.
func (v *Vector) Local() []float64 { return v.data }

// LocalStripe returns a freshly allocated copy of one stripe over the
// local node range, in node order.
func (v *Vector) LocalStripe(stripe int) []float64 {
	out := make([]float64, v.hi-v.lo)
	for n := v.lo; n < v.hi; n++ {
		out[n-v.lo] = v.At(n, stripe)
	}
	return out
}

// CopyInto copies this vector's values into dst, which must share the same
// partition and stride.
func (v *Vector) CopyInto(dst *Vector) error {
	if dst.stride != v.stride || dst.lo != v.lo || dst.hi != v.hi {
		return fmt.Errorf("field: copy between incompatible vectors (stride %d/%d, range [%d,%d)/[%d,%d))",
			v.stride, dst.stride, v.lo, v.hi, dst.lo, dst.hi)
	}
	copy(dst.data, v.data)
	return nil
}
