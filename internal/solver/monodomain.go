package solver

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cardiolab/systole/internal/field"
	"github.com/cardiolab/systole/internal/mesh"
	"github.com/cardiolab/systole/internal/parallel"
	"github.com/cardiolab/systole/internal/tissue"
)

// refactorRatio is the threshold below which an adapted time step makes the
// solver write into a fresh vector instead of reusing the initial condition.
// Both return paths of the Solver contract stay exercised this way.
const refactorRatio = 0.5

// MonodomainSolver advances the monodomain equation with Strang-style
// operator splitting per printing interval: half a reaction step, one
// implicit diffusion step, half a reaction step, sub-cycled at the inner
// time step.
//
// The reference implementation is serial; distributed runs drive it through
// a size-1 group per rank or substitute their own Solver.
type MonodomainSolver struct {
	mesh   *mesh.Mesh
	tissue *tissue.Tissue
	bc     *BoundaryConditions
	fac    *field.Factory

	t0, t1 float64
	dt     float64
	ic     *field.Vector
	adapt  TimeAdaptivityController

	destroyed bool
}

// NewMonodomain builds the reference monodomain solver over the tissue's
// mesh. The group must be size 1.
func NewMonodomain(t *tissue.Tissue, bc *BoundaryConditions, g parallel.Group) (*MonodomainSolver, error) {
	if g.Size() != 1 {
		return nil, fmt.Errorf("solver: reference monodomain solver is serial, got group of size %d", g.Size())
	}
	if bc == nil {
		return nil, fmt.Errorf("solver: nil boundary conditions")
	}
	return &MonodomainSolver{
		mesh:   t.Mesh(),
		tissue: t,
		bc:     bc,
		fac:    t.Mesh().Factory(),
	}, nil
}

// SetTimes sets the window the next Solve advances across.
func (s *MonodomainSolver) SetTimes(t0, t1 float64) {
	s.t0, s.t1 = t0, t1
}

// SetTimeStep sets the inner sub-cycling step.
func (s *MonodomainSolver) SetTimeStep(dt float64) {
	s.dt = dt
}

// SetInitialCondition hands the solver the field state at t0.
func (s *MonodomainSolver) SetInitialCondition(v *field.Vector) {
	s.ic = v
}

// SetTimeAdaptivity installs a time-adaptivity controller.
func (s *MonodomainSolver) SetTimeAdaptivity(c TimeAdaptivityController) {
	s.adapt = c
}

// Destroy releases the solver. Further Solve calls fail.
func (s *MonodomainSolver) Destroy() {
	s.destroyed = true
}

// Solve advances from t0 to t1. The result is written in place into the
// initial-condition vector, except when the adaptivity controller shrank
// the step past the refactor threshold, in which case a fresh vector is
// allocated and returned.
func (s *MonodomainSolver) Solve(ctx context.Context) (*field.Vector, error) {
	if s.destroyed {
		return nil, fmt.Errorf("solver: Solve on destroyed solver")
	}
	if s.ic == nil {
		return nil, fmt.Errorf("solver: no initial condition set")
	}
	if s.t1 <= s.t0 {
		return nil, fmt.Errorf("solver: window [%v, %v] is empty", s.t0, s.t1)
	}
	if s.dt <= 0 {
		return nil, fmt.Errorf("solver: time step %v must be positive", s.dt)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dt := s.dt
	out := s.ic
	if s.adapt != nil {
		adapted := s.adapt.ComputeTimeStep(s.t0, s.ic)
		if adapted <= 0 {
			return nil, fmt.Errorf("solver: adaptivity controller returned step %v", adapted)
		}
		if adapted < s.dt*refactorRatio {
			out = s.fac.NewVector(s.ic.Stride())
			if err := s.ic.CopyInto(out); err != nil {
				return nil, err
			}
		}
		dt = adapted
	}

	// Push the field state into the cells, then sub-cycle.
	v := make([]float64, s.mesh.Nodes())
	for n := s.mesh.Lo(); n < s.mesh.Hi(); n++ {
		v[n] = s.ic.At(n, 0)
		if cell := s.tissue.Cell(n); cell != nil {
			cell.SetVoltage(v[n])
		}
	}

	diffuse, err := s.diffusionStep(dt)
	if err != nil {
		return nil, err
	}

	for t := s.t0; t < s.t1-1e-12; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h := math.Min(dt, s.t1-t)
		s.reactionStep(t, h/2, v)
		if err := diffuse(v); err != nil {
			return nil, err
		}
		s.reactionStep(t+h/2, h/2, v)
		t += h
	}

	for node, val := range s.bc.Dirichlet(0) {
		v[node] = val
	}
	for n := s.mesh.Lo(); n < s.mesh.Hi(); n++ {
		out.Set(n, 0, v[n])
		if cell := s.tissue.Cell(n); cell != nil {
			cell.SetVoltage(v[n])
		}
	}
	return out, nil
}

// reactionStep advances every cell's ODE state by h with forward Euler,
// reading the voltage from v and writing it back.
func (s *MonodomainSolver) reactionStep(t, h float64, v []float64) {
	for n := s.mesh.Lo(); n < s.mesh.Hi(); n++ {
		cell := s.tissue.Cell(n)
		if cell == nil {
			continue // bath
		}
		y := cell.State()
		y[0] = v[n]
		rates := cell.ReactionRates(t, y)
		for i := range y {
			y[i] += h * rates[i]
		}
		cell.SetState(y)
		v[n] = y[0]
	}
}

// diffusionStep factorizes the implicit Euler diffusion operator once for
// the given step width and returns a closure applying one solve.
//
// 1D slabs use a tridiagonal band Cholesky; higher dimensions fall back to
// a dense lattice Laplacian. Zero flux is built in through mirrored
// boundary coefficients.
func (s *MonodomainSolver) diffusionStep(dt float64) (func(v []float64) error, error) {
	n := s.mesh.Nodes()
	h := s.mesh.Spacing()
	lambda := s.tissue.Conductivity() * dt / (h * h)

	if s.mesh.Dim() == 1 {
		band := mat.NewSymBandDense(n, 1, nil)
		for i := 0; i < n; i++ {
			diag := 1.0 + 2*lambda
			if i == 0 || i == n-1 {
				diag = 1.0 + lambda
			}
			band.SetSymBand(i, i, diag)
			if i+1 < n {
				band.SetSymBand(i, i+1, -lambda)
			}
		}
		var ch mat.BandCholesky
		if ok := ch.Factorize(band); !ok {
			return nil, fmt.Errorf("solver: diffusion operator is not positive definite")
		}
		return func(v []float64) error {
			var sol mat.VecDense
			if err := ch.SolveVecTo(&sol, mat.NewVecDense(n, v)); err != nil {
				return fmt.Errorf("solver: diffusion solve: %w", err)
			}
			copy(v, sol.RawVector().Data)
			return nil
		}, nil
	}

	// Dense fallback for 2D and 3D slabs.
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		degree := 0
		for _, j := range s.latticeNeighbors(i) {
			degree++
			if j > i {
				sym.SetSym(i, j, -lambda)
			}
		}
		sym.SetSym(i, i, 1.0+float64(degree)*lambda)
	}
	var ch mat.Cholesky
	if ok := ch.Factorize(sym); !ok {
		return nil, fmt.Errorf("solver: diffusion operator is not positive definite")
	}
	return func(v []float64) error {
		var sol mat.VecDense
		if err := ch.SolveVecTo(&sol, mat.NewVecDense(n, v)); err != nil {
			return fmt.Errorf("solver: diffusion solve: %w", err)
		}
		copy(v, sol.RawVector().Data)
		return nil
	}, nil
}

// latticeNeighbors returns the lattice neighbors of a node across every axis.
func (s *MonodomainSolver) latticeNeighbors(node int) []int {
	var out []int
	stride := 1
	rest := node
	for axis := 0; axis < s.mesh.Dim(); axis++ {
		count := s.mesh.AxisNodes(axis)
		i := rest % count
		if i > 0 {
			out = append(out, node-stride)
		}
		if i < count-1 {
			out = append(out, node+stride)
		}
		stride *= count
		rest /= count
	}
	return out
}
