package problem

import (
	"context"
	"errors"
	"os"

	"github.com/cardiolab/systole/internal/checkpoint"
	"github.com/cardiolab/systole/internal/field"
	"github.com/cardiolab/systole/internal/postproc"
	"github.com/cardiolab/systole/internal/solver"
	"github.com/cardiolab/systole/internal/stepper"
)

// Solve advances the run from the current time to the definition's end,
// one printing interval per solver window. On success the state becomes
// Completed and the final solution is retained for in-memory resume; any
// failure unwinds (solver destroyed, vectors released, modifiers
// finalised, files closed, post-processing dispatched) and the state
// becomes Failed.
func (p *Problem) Solve(ctx context.Context) error {
	if err := p.PreSolveChecks(); err != nil {
		return err
	}
	p.state = Solving

	st, err := stepper.New(p.currentTime, p.def.Durations.End,
		p.def.Durations.PrintingStep, false, p.variant.ExtraStoppingTimes(p.def))
	if err != nil {
		p.state = Failed
		return err
	}

	// The default zero-flux container is retained across Solve calls so a
	// resumed run keeps any conditions installed on it.
	if p.bc == nil {
		p.bc = solver.DefaultZeroNeumann(p.msh, p.variant.Dim())
	}

	s, err := p.variant.NewSolver(p.tis, p.bc, p.group)
	if err = p.group.ReplicateError(err); err != nil {
		p.state = Failed
		p.timer.Reset()
		return err
	}

	resuming := p.solution != nil
	cur := p.solution
	if cur == nil {
		cur = p.CreateInitialCondition()
	}

	for _, m := range p.modifiers {
		if err := p.group.ReplicateError(m.Start(p.msh.Factory(), p.group)); err != nil {
			return p.unwind(s, cur, err)
		}
	}

	if err := p.initialiseWriter(resuming, st.EstimateTimeSteps()); err != nil {
		return p.unwind(s, cur, err)
	}

	progressDir := ""
	if p.def.OutputRequested() && p.group.Rank() == 0 {
		progressDir = p.def.Output.Dir
	}
	p.progress = newProgressReporter(p.logger, progressDir, p.currentTime, p.def.Durations.End)

	// The starting row, unless it is already the last row of an extended
	// file.
	if !p.wr.extended && p.def.OutputRequested() {
		p.timer.Begin(phaseWrite)
		err := p.appendRow(st.Time(), cur)
		p.timer.End(phaseWrite)
		if err != nil {
			return p.unwind(s, cur, err)
		}
	}

	for !st.IsTimeAtEnd() {
		t0 := st.Time()
		s.SetTimes(t0, st.NextTime())
		s.SetTimeStep(p.def.Durations.SolverStep)
		s.SetInitialCondition(cur)

		if p.onBeginTimestep != nil {
			p.onBeginTimestep(t0)
		}

		p.timer.Begin(phaseSolve)
		out, serr := s.Solve(ctx)
		p.timer.End(phaseSolve)
		if serr = p.group.ReplicateError(serr); serr != nil {
			return p.unwind(s, cur, &SolveError{Time: t0, Err: serr})
		}

		// The solver may hand back a fresh vector (time adaptivity); the
		// superseded one is released here, exactly once.
		if out != cur {
			if rerr := p.msh.Factory().Release(cur); rerr != nil {
				p.logger.Warn("superseded vector release failed", "error", rerr)
			}
			cur = out
		}
		p.solution = cur

		st.AdvanceOneTimeStep()
		p.currentTime = st.Time()

		if err := p.writeInfo(p.currentTime, cur); err != nil {
			return p.unwind(s, cur, err)
		}
		for _, m := range p.modifiers {
			if err := p.group.ReplicateError(m.ProcessStep(p.currentTime, cur, p.variant.Dim())); err != nil {
				return p.unwind(s, cur, err)
			}
		}
		if p.def.OutputRequested() {
			p.timer.Begin(phaseWrite)
			err := p.appendRow(p.currentTime, cur)
			p.timer.End(phaseWrite)
			if err != nil {
				return p.unwind(s, cur, err)
			}
		}
		p.progress.Update(p.currentTime)

		if p.onEndTimestep != nil {
			p.onEndTimestep(p.currentTime)
		}
	}

	destroySolver(s)
	p.progress.Finalise()

	var errs []error
	for _, m := range p.modifiers {
		if err := m.Finalise(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.CloseFilesAndPostProcess(); err != nil {
		errs = append(errs, err)
	}
	if err := p.group.ReplicateError(errors.Join(errs...)); err != nil {
		p.state = Failed
		p.timer.Reset()
		return err
	}

	p.timer.Report(p.logger)
	p.state = Completed
	p.logger.Info("run completed", "run_id", p.runID, "time", p.currentTime)
	return nil
}

// unwind is the single failure path out of Solve. It never loses the
// retained solution and releases everything else exactly once.
func (p *Problem) unwind(s solver.Solver, cur *field.Vector, cause error) error {
	destroySolver(s)

	if cur != nil && cur != p.solution {
		if err := p.msh.Factory().Release(cur); err != nil {
			p.logger.Warn("initial condition release failed", "error", err)
		}
	}

	for _, m := range p.modifiers {
		if err := m.Finalise(); err != nil {
			p.logger.Warn("modifier finalise failed", "error", err)
		}
	}

	if err := p.CloseFilesAndPostProcess(); err != nil {
		p.logger.Warn("close and post-process failed", "error", err)
	}

	p.timer.Reset()
	p.state = Failed
	p.logger.Error("run failed", "run_id", p.runID, "error", cause)
	return cause
}

// destroySolver releases solver resources when the implementation holds
// any.
func destroySolver(s solver.Solver) {
	if d, ok := s.(solver.Destroyable); ok {
		d.Destroy()
	}
}

// CloseFilesAndPostProcess closes the checkpoint writer and dispatches the
// requested conversions. It runs on both the success and the failure path
// and is idempotent; conversions are only dispatched once.
func (p *Problem) CloseFilesAndPostProcess() error {
	if p.wr == nil {
		return nil
	}

	var errs []error
	if p.wr.w != nil {
		if err := p.wr.w.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if p.def.OutputRequested() && p.group.Rank() == 0 && !p.wr.postProcessed {
		p.wr.postProcessed = true
		p.timer.Begin(phasePostproc)
		if err := p.runPostProcessing(); err != nil {
			errs = append(errs, err)
		}
		p.timer.End(phasePostproc)
	}
	p.group.Barrier()
	return errors.Join(errs...)
}

// runPostProcessing dispatches the definition's converters over the
// written file. Rank 0 only; a missing file (the run failed before the
// writer opened) skips quietly.
func (p *Problem) runPostProcessing() error {
	req := postproc.FromDefinition(p.def)
	if !req.Any() {
		return nil
	}
	dir, prefix := p.def.Output.Dir, p.def.Output.Prefix
	if _, err := os.Stat(checkpoint.Path(dir, prefix)); err != nil {
		p.logger.Warn("post-processing skipped, no output file", "path", checkpoint.Path(dir, prefix))
		return nil
	}
	r, err := checkpoint.OpenReader(dir, prefix)
	if err != nil {
		return err
	}
	defer r.Close()
	return postproc.Dispatch(r, req, dir, p.logger)
}
