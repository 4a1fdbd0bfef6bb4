// Package testutil provides deterministic fakes for orchestration tests:
// solvers that fail on cue or record their call pattern. Kept free of the
// orchestrator packages so any of them can import it.
package testutil

import (
	"context"
	"fmt"

	"github.com/cardiolab/systole/internal/field"
	"github.com/cardiolab/systole/internal/solver"
)

// FailingSolver succeeds until call number FailOn (1-based), then fails
// every call. FailOn 0 fails immediately.
type FailingSolver struct {
	FailOn int

	calls    int
	destroys int
	ic       *field.Vector
}

var _ solver.Solver = (*FailingSolver)(nil)

func (s *FailingSolver) SetTimes(t0, t1 float64)             {}
func (s *FailingSolver) SetTimeStep(dt float64)              {}
func (s *FailingSolver) SetInitialCondition(v *field.Vector) { s.ic = v }

func (s *FailingSolver) Solve(ctx context.Context) (*field.Vector, error) {
	s.calls++
	if s.calls >= s.FailOn {
		return nil, fmt.Errorf("deliberate failure on call %d", s.calls)
	}
	return s.ic, nil
}

func (s *FailingSolver) Destroy() { s.destroys++ }

// Calls returns how many times Solve ran.
func (s *FailingSolver) Calls() int { return s.calls }

// Destroys returns how many times Destroy ran.
func (s *FailingSolver) Destroys() int { return s.destroys }

// Window is one recorded solver invocation.
type Window struct {
	T0, T1 float64
	Dt     float64
}

// RecordingSolver records every window it is asked to advance and returns
// the initial condition with a fixed value written into stripe 0. When
// FreshVectors is set it allocates a new vector each call instead,
// mimicking the solver's time-adaptivity path.
type RecordingSolver struct {
	// Value written to every local stripe-0 entry each call.
	Value float64
	// FreshVectors makes every Solve return a newly allocated vector.
	FreshVectors bool
	// Factory is required when FreshVectors is set.
	Factory *field.Factory

	windows  []Window
	t0, t1   float64
	dt       float64
	ic       *field.Vector
	destroys int
}

var _ solver.Solver = (*RecordingSolver)(nil)

func (s *RecordingSolver) SetTimes(t0, t1 float64)             { s.t0, s.t1 = t0, t1 }
func (s *RecordingSolver) SetTimeStep(dt float64)              { s.dt = dt }
func (s *RecordingSolver) SetInitialCondition(v *field.Vector) { s.ic = v }

func (s *RecordingSolver) Solve(ctx context.Context) (*field.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.windows = append(s.windows, Window{T0: s.t0, T1: s.t1, Dt: s.dt})

	out := s.ic
	if s.FreshVectors {
		out = s.Factory.NewVector(s.ic.Stride())
		if err := s.ic.CopyInto(out); err != nil {
			return nil, err
		}
	}
	for n := out.Lo(); n < out.Hi(); n++ {
		out.Set(n, 0, s.Value)
	}
	return out, nil
}

func (s *RecordingSolver) Destroy() { s.destroys++ }

// Windows returns the recorded invocations in order.
func (s *RecordingSolver) Windows() []Window { return s.windows }

// Destroys returns how many times Destroy ran.
func (s *RecordingSolver) Destroys() int { return s.destroys }
