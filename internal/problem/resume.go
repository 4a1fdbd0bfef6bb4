package problem

import (
	"fmt"

	"github.com/cardiolab/systole/internal/checkpoint"
	"github.com/cardiolab/systole/internal/simdef"
)

// RestoreFromCheckpoint loads the last written frame of the run's output
// file into a retained solution vector, so a fresh process can continue a
// run the way an in-memory resume would. Must be called after Initialise
// and before Solve.
//
// Every rank opens the file read-only and fills its own local range; the
// store itself stays rank-oblivious.
func (p *Problem) RestoreFromCheckpoint() error {
	if p.state == Uninitialised || p.tis == nil {
		return simdef.NewConfigError(simdef.CfgNotInitialised, "",
			"RestoreFromCheckpoint called before Initialise")
	}
	if !p.def.OutputRequested() {
		return fmt.Errorf("problem: cannot restore, definition has no output")
	}

	r, err := checkpoint.OpenReader(p.def.Output.Dir, p.def.Output.Prefix)
	if err != nil {
		return err
	}
	defer r.Close()

	if subset, ok, err := r.Meta("node_subset"); err != nil {
		return err
	} else if ok && subset != "" {
		return fmt.Errorf("problem: cannot restore from a node-subset output file")
	}

	count, err := r.FrameCount()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("problem: output file holds no frames")
	}

	t, data, err := r.Frame(count - 1)
	if err != nil {
		return err
	}
	voltage, ok := data["V"]
	if !ok {
		return fmt.Errorf("problem: output file has no V column")
	}
	if len(voltage) != p.msh.Nodes() {
		return fmt.Errorf("problem: stored frame has %d nodes, mesh has %d",
			len(voltage), p.msh.Nodes())
	}

	// Stored frames may be in the mesh's original node order; invert back
	// to solver order before scattering into the vector.
	fromStored := func(node int) int { return node }
	if permuted, ok, err := r.Meta("permutation"); err != nil {
		return err
	} else if ok && permuted == "1" {
		perm := p.msh.Permutation()
		if perm == nil {
			return fmt.Errorf("problem: stored frames are permuted but the mesh has no permutation")
		}
		fromStored = func(node int) int { return perm[node] }
	}

	v := p.msh.Factory().NewVector(p.variant.Dim())
	for n := p.msh.Lo(); n < p.msh.Hi(); n++ {
		v.Set(n, 0, voltage[fromStored(n)])
	}
	if p.variant.Dim() == 2 {
		if phie, ok := data["Phi_e"]; ok {
			for n := p.msh.Lo(); n < p.msh.Hi(); n++ {
				v.Set(n, 1, phie[fromStored(n)])
			}
		}
	}

	if p.solution != nil {
		if err := p.msh.Factory().Release(p.solution); err != nil {
			p.logger.Warn("stale solution release failed", "error", err)
		}
	}
	p.solution = v
	p.currentTime = t

	p.logger.Info("restored from checkpoint",
		"time", t, "frames", count, "path", r.Path())
	return nil
}
