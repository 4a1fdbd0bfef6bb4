package field

import (
	"fmt"
	"sync"

	"github.com/cardiolab/systole/internal/parallel"
)

// Factory allocates vectors over one fixed partition and tracks every
// allocation until it is released.
//
// The ledger is the safety net for the single most delicate invariant in the
// solve loop: a vector aliased between "initial condition" and "solution"
// must be released exactly once. Double releases and foreign vectors are
// surfaced as errors, not silently absorbed.
type Factory struct {
	group  parallel.Group
	nodes  int
	lo, hi int

	mu   sync.Mutex
	live map[*Vector]struct{}
}

// NewFactory creates a factory for nodes global nodes partitioned in
// contiguous blocks across the ranks of g.
func NewFactory(g parallel.Group, nodes int) *Factory {
	lo, hi := Partition(nodes, g.Size(), g.Rank())
	return &Factory{
		group: g,
		nodes: nodes,
		lo:    lo,
		hi:    hi,
		live:  make(map[*Vector]struct{}),
	}
}

// Partition returns the contiguous node block [lo, hi) owned by rank in a
// group of the given size. Blocks differ in length by at most one node.
func Partition(nodes, size, rank int) (lo, hi int) {
	lo = rank * nodes / size
	hi = (rank + 1) * nodes / size
	return lo, hi
}

// Group returns the process group this factory partitions over.
func (f *Factory) Group() parallel.Group { return f.group }

// Nodes returns the global node count.
func (f *Factory) Nodes() int { return f.nodes }

// Lo returns the first locally owned node index.
func (f *Factory) Lo() int { return f.lo }

// Hi returns one past the last locally owned node index.
func (f *Factory) Hi() int { return f.hi }

// NewVector allocates a zeroed vector with the given stride and registers
// it in the ledger.
func (f *Factory) NewVector(stride int) *Vector {
	if stride < 1 {
		panic(fmt.Sprintf("field: vector stride %d < 1", stride))
	}
	v := &Vector{
		stride: stride,
		nodes:  f.nodes,
		lo:     f.lo,
		hi:     f.hi,
		data:   make([]float64, (f.hi-f.lo)*stride),
	}
	f.mu.Lock()
	f.live[v] = struct{}{}
	f.mu.Unlock()
	return v
}

// Release removes a vector from the ledger. Releasing a vector twice, or
// one this factory did not create, is an error.
func (f *Factory) Release(v *Vector) error {
	if v == nil {
		return fmt.Errorf("field: release of nil vector")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[v]; !ok {
		return fmt.Errorf("field: release of vector not owned by this factory (double release?)")
	}
	delete(f.live, v)
	return nil
}

// Live returns the number of outstanding vectors.
func (f *Factory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Gather assembles one stripe of v in global node order on root. Non-root
// ranks receive nil. Collective: every rank of the group must call it.
func Gather(g parallel.Group, v *Vector, stripe int) ([]float64, error) {
	if stripe < 0 || stripe >= v.Stride() {
		return nil, fmt.Errorf("field: gather stripe %d out of range for stride %d", stripe, v.Stride())
	}
	return g.GatherFloat64(0, v.LocalStripe(stripe))
}
