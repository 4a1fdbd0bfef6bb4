package solver

import (
	"context"
	"fmt"

	"github.com/cardiolab/systole/internal/field"
	"github.com/cardiolab/systole/internal/parallel"
	"github.com/cardiolab/systole/internal/tissue"
)

// BidomainSolver advances a two-unknown problem: transmembrane voltage on
// stripe 0, extracellular potential on stripe 1. The voltage dynamics reuse
// the monodomain splitting; the extracellular potential is a lumped
// zero-mean estimate over the tissue nodes, with the electrode magnitude
// superimposed on boundary nodes while the protocol is switched on.
type BidomainSolver struct {
	inner *MonodomainSolver
	fac   *field.Factory

	electrodeOn, electrodeOff float64
	electrodeMagnitude        float64

	ic      *field.Vector
	scratch *field.Vector
}

var _ Solver = (*BidomainSolver)(nil)

// NewBidomain builds the reference bidomain solver. Electrode parameters
// may be zero when the definition has no electrode protocol.
func NewBidomain(t *tissue.Tissue, bc *BoundaryConditions, g parallel.Group, onTime, offTime, magnitude float64) (*BidomainSolver, error) {
	if bc.Stride() != 2 {
		return nil, fmt.Errorf("solver: bidomain needs a stride-2 boundary container, got %d", bc.Stride())
	}
	inner, err := NewMonodomain(t, bc, g)
	if err != nil {
		return nil, err
	}
	return &BidomainSolver{
		inner:              inner,
		fac:                t.Mesh().Factory(),
		electrodeOn:        onTime,
		electrodeOff:       offTime,
		electrodeMagnitude: magnitude,
	}, nil
}

// SetTimes sets the window the next Solve advances across.
func (s *BidomainSolver) SetTimes(t0, t1 float64) { s.inner.SetTimes(t0, t1) }

// SetTimeStep sets the inner sub-cycling step.
func (s *BidomainSolver) SetTimeStep(dt float64) { s.inner.SetTimeStep(dt) }

// SetInitialCondition hands the solver the field state at t0.
func (s *BidomainSolver) SetInitialCondition(v *field.Vector) {
	s.ic = v
}

// SetTimeAdaptivity installs a time-adaptivity controller on the voltage
// half of the problem.
func (s *BidomainSolver) SetTimeAdaptivity(c TimeAdaptivityController) {
	s.inner.SetTimeAdaptivity(c)
}

// Destroy releases the solver and its scratch vector.
func (s *BidomainSolver) Destroy() {
	if s.scratch != nil {
		_ = s.fac.Release(s.scratch)
		s.scratch = nil
	}
	s.inner.Destroy()
}

// Solve advances both unknowns across the window. The solution is written
// in place into the initial-condition vector.
func (s *BidomainSolver) Solve(ctx context.Context) (*field.Vector, error) {
	ic := s.ic
	if ic == nil {
		return nil, fmt.Errorf("solver: no initial condition set")
	}
	if ic.Stride() != 2 {
		return nil, fmt.Errorf("solver: bidomain needs stride-2 vectors, got %d", ic.Stride())
	}

	// Advance the voltage stripe through the monodomain core on a
	// stride-1 scratch vector.
	if s.scratch == nil {
		s.scratch = s.fac.NewVector(1)
	}
	m := s.inner.mesh
	for n := m.Lo(); n < m.Hi(); n++ {
		s.scratch.Set(n, 0, ic.At(n, 0))
	}
	s.inner.SetInitialCondition(s.scratch)
	solved, err := s.inner.Solve(ctx)
	if err != nil {
		return nil, err
	}
	if solved != s.scratch {
		// The adaptive path handed back a fresh vector; adopt it.
		_ = s.fac.Release(s.scratch)
		s.scratch = solved
	}

	// Zero-mean extracellular estimate over the tissue nodes; bath nodes
	// carry potential only.
	tis := s.inner.tissue
	sum, count := 0.0, 0
	for n := m.Lo(); n < m.Hi(); n++ {
		if !tis.IsBathNode(n) {
			sum += solved.At(n, 0)
			count++
		}
	}
	mean := 0.0
	if count > 0 {
		mean = sum / float64(count)
	}

	t1 := s.inner.t1
	electrodeActive := s.electrodeMagnitude != 0 && t1 > s.electrodeOn && t1 <= s.electrodeOff
	for n := m.Lo(); n < m.Hi(); n++ {
		if tis.IsBathNode(n) {
			ic.Set(n, 0, 0)
		} else {
			ic.Set(n, 0, solved.At(n, 0))
		}
		phi := -0.5 * (solved.At(n, 0) - mean)
		if electrodeActive && m.IsBoundary(n) {
			phi += s.electrodeMagnitude
		}
		ic.Set(n, 1, phi)
	}
	return ic, nil
}
