package parallel

import (
	"fmt"
	"sync"
)

// NewLocal builds a group of n ranks that run as goroutines in one process.
// It returns one Group handle per rank; each participating goroutine must use
// exactly one handle. Collectives synchronize through a shared generation
// barrier, so the lockstep contract of Group is enforced for real: a rank
// that skips a collective blocks the others.
func NewLocal(n int) []Group {
	if n < 1 {
		panic(fmt.Sprintf("parallel: group size %d < 1", n))
	}
	s := &localState{
		size:  n,
		errs:  make([]error, n),
		bools: make([]bool, n),
		parts: make([][]float64, n),
	}
	s.cond = sync.NewCond(&s.mu)
	groups := make([]Group, n)
	for r := range groups {
		groups[r] = &localGroup{rank: r, state: s}
	}
	return groups
}

type localState struct {
	mu   sync.Mutex
	cond *sync.Cond
	size int

	arrived    int
	generation int

	// Per-rank slots for the collective in flight. The last rank through a
	// barrier clears them before releasing the others.
	errs  []error
	bools []bool
	parts [][]float64
	bcast float64
}

// barrier blocks until all ranks have arrived. onLast, if non-nil, runs on
// the final arriver while it still holds the state lock, before any waiter
// is released.
func (s *localState) barrier(onLast func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.generation
	s.arrived++
	if s.arrived == s.size {
		if onLast != nil {
			onLast()
		}
		s.arrived = 0
		s.generation++
		s.cond.Broadcast()
		return
	}
	for gen == s.generation {
		s.cond.Wait()
	}
}

type localGroup struct {
	rank  int
	state *localState
}

func (g *localGroup) Rank() int { return g.rank }
func (g *localGroup) Size() int { return g.state.size }

func (g *localGroup) Barrier() { g.state.barrier(nil) }

func (g *localGroup) ReplicateError(err error) error {
	s := g.state
	s.mu.Lock()
	s.errs[g.rank] = err
	s.mu.Unlock()
	s.barrier(nil)

	s.mu.Lock()
	out := s.errs[g.rank]
	if out == nil {
		for r, e := range s.errs {
			if e != nil {
				out = &ReplicatedError{Rank: r}
				break
			}
		}
	}
	s.mu.Unlock()

	// Everyone reads before the slots are reused.
	s.barrier(func() {
		for r := range s.errs {
			s.errs[r] = nil
		}
	})
	return out
}

func (g *localGroup) AnyTrue(v bool) bool {
	s := g.state
	s.mu.Lock()
	s.bools[g.rank] = v
	s.mu.Unlock()
	s.barrier(nil)

	s.mu.Lock()
	out := false
	for _, b := range s.bools {
		if b {
			out = true
			break
		}
	}
	s.mu.Unlock()

	s.barrier(func() {
		for r := range s.bools {
			s.bools[r] = false
		}
	})
	return out
}

func (g *localGroup) GatherFloat64(root int, local []float64) ([]float64, error) {
	s := g.state
	if root < 0 || root >= s.size {
		return nil, fmt.Errorf("parallel: gather root %d out of range for group of size %d", root, s.size)
	}
	part := make([]float64, len(local))
	copy(part, local)
	s.mu.Lock()
	s.parts[g.rank] = part
	s.mu.Unlock()
	s.barrier(nil)

	var out []float64
	if g.rank == root {
		s.mu.Lock()
		total := 0
		for _, p := range s.parts {
			total += len(p)
		}
		out = make([]float64, 0, total)
		for _, p := range s.parts {
			out = append(out, p...)
		}
		s.mu.Unlock()
	}

	s.barrier(func() {
		for r := range s.parts {
			s.parts[r] = nil
		}
	})
	return out, nil
}

func (g *localGroup) BroadcastFloat64(root int, v float64) float64 {
	s := g.state
	if root < 0 || root >= s.size {
		panic(fmt.Sprintf("parallel: broadcast root %d out of range for group of size %d", root, s.size))
	}
	s.mu.Lock()
	if g.rank == root {
		s.bcast = v
	}
	s.mu.Unlock()
	s.barrier(nil)

	s.mu.Lock()
	out := s.bcast
	s.mu.Unlock()

	s.barrier(nil)
	return out
}
