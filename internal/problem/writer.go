package problem

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cardiolab/systole/internal/checkpoint"
	"github.com/cardiolab/systole/internal/field"
)

// runWriter holds the run's checkpoint writer state. Only rank 0 carries
// an open writer; the other ranks participate in the gathers and barriers
// around it.
type runWriter struct {
	w             *checkpoint.Writer
	extended      bool
	postProcessed bool
}

// initialiseWriter opens the checkpoint store: extend mode when the run is
// resuming and the file already exists, define mode otherwise. The
// existence check is barrier-bracketed so no rank races ahead of it, and
// any open failure is replicated group-wide.
func (p *Problem) initialiseWriter(resuming bool, estimatedSteps int) error {
	p.wr = &runWriter{}
	if !p.def.OutputRequested() {
		return nil
	}

	dir, prefix := p.def.Output.Dir, p.def.Output.Prefix

	p.group.Barrier()
	exists := false
	if p.group.Rank() == 0 {
		_, err := os.Stat(checkpoint.Path(dir, prefix))
		exists = err == nil
	}
	exists = p.group.AnyTrue(exists)
	p.group.Barrier()

	extend := resuming && exists

	var err error
	if p.group.Rank() == 0 {
		err = p.openWriter(dir, prefix, extend, estimatedSteps)
	}
	if err = p.group.ReplicateError(err); err != nil {
		return err
	}
	p.wr.extended = extend
	return nil
}

// openWriter runs on rank 0 only.
func (p *Problem) openWriter(dir, prefix string, extend bool, estimatedSteps int) error {
	var w *checkpoint.Writer
	var err error
	if extend {
		p.warnOnHashMismatch(dir, prefix)
		w, err = checkpoint.Extend(dir, prefix, p.currentTime)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		var opts []checkpoint.Option
		if p.overwrite {
			opts = append(opts, checkpoint.WithOverwrite())
		}
		w, err = checkpoint.Create(dir, prefix, opts...)
	}
	if err != nil {
		return err
	}

	if err := w.DefineColumn("V", "mV"); err != nil {
		w.Close()
		return err
	}
	if p.variant.Dim() == 2 {
		if err := w.DefineColumn("Phi_e", "mV"); err != nil {
			w.Close()
			return err
		}
	}
	for _, ev := range p.extraVars {
		if err := w.DefineColumn(ev.column, "a.u."); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.DefineUnlimitedDimension("Time", "msecs", estimatedSteps+1); err != nil {
		w.Close()
		return err
	}
	if err := w.EndDefineMode(); err != nil {
		w.Close()
		return err
	}

	if !extend {
		meta := [][2]string{
			{"run_id", p.runID},
			{"definition_hash", p.defHash},
			{"problem_dim", strconv.Itoa(p.variant.Dim())},
			{"num_nodes", strconv.Itoa(p.msh.Nodes())},
			{"node_subset", intsToMeta(p.def.Output.NodeSubset)},
			{"permutation", boolMeta(p.outputPermuted())},
			{"prefix", prefix},
		}
		for _, kv := range meta {
			if err := w.SetMeta(kv[0], kv[1]); err != nil {
				w.Close()
				return err
			}
		}
	}

	p.wr.w = w
	return nil
}

// warnOnHashMismatch compares the stored definition hash against the
// current one before extending. A mismatch is worth a warning but does not
// block the resume: duration extensions legitimately change the hash.
func (p *Problem) warnOnHashMismatch(dir, prefix string) {
	r, err := checkpoint.OpenReader(dir, prefix)
	if err != nil {
		return
	}
	defer r.Close()
	stored, ok, err := r.Meta("definition_hash")
	if err == nil && ok && stored != p.defHash {
		p.logger.Warn("resuming into a file with a different definition hash",
			"stored", stored, "current", p.defHash)
	}
}

// outputPermuted reports whether rows are written in the mesh's original
// node order rather than solver order.
func (p *Problem) outputPermuted() bool {
	return p.def.Output.OriginalOrder && p.msh.Permutation() != nil
}

// appendRow gathers the solution stripes and extra variables to rank 0 and
// writes one frame. Collective: every rank must call it.
func (p *Problem) appendRow(t float64, v *field.Vector) error {
	cols := make(map[string][]float64)

	voltage, err := field.Gather(p.group, v, 0)
	if err = p.group.ReplicateError(err); err != nil {
		return err
	}
	cols["V"] = voltage

	if p.variant.Dim() == 2 {
		phie, err := field.Gather(p.group, v, 1)
		if err = p.group.ReplicateError(err); err != nil {
			return err
		}
		cols["Phi_e"] = phie
	}

	for _, ev := range p.extraVars {
		local, err := p.extraVariableLocal(ev, t)
		if err = p.group.ReplicateError(err); err != nil {
			return err
		}
		global, err := p.group.GatherFloat64(0, local)
		if err = p.group.ReplicateError(err); err != nil {
			return err
		}
		cols[ev.column] = global
	}

	var werr error
	if p.group.Rank() == 0 {
		for name, vals := range cols {
			cols[name] = p.applyOutputOrder(vals)
		}
		werr = p.wr.w.WriteRow(t, cols)
	}
	return p.group.ReplicateError(werr)
}

// extraVariableLocal evaluates one extra output variable over the local
// node range. Bath nodes and nodes without the selected cell model emit 0.
func (p *Problem) extraVariableLocal(ev outputVariable, t float64) ([]float64, error) {
	local := make([]float64, p.msh.Hi()-p.msh.Lo())
	for n := p.msh.Lo(); n < p.msh.Hi(); n++ {
		cell := p.tis.AuxCell(n, ev.which)
		if cell == nil {
			continue
		}
		val, err := cell.AnyVariable(ev.name, t)
		if err != nil {
			return nil, fmt.Errorf("output variable %q at node %d: %w", ev.column, n, err)
		}
		local[n-p.msh.Lo()] = val
	}
	return local, nil
}

// applyOutputOrder permutes a gathered full-mesh slice into original node
// order when requested, then restricts it to the node subset. Rank 0 only.
func (p *Problem) applyOutputOrder(vals []float64) []float64 {
	if p.outputPermuted() {
		perm := p.msh.Permutation()
		ordered := make([]float64, len(vals))
		for i, v := range vals {
			ordered[perm[i]] = v
		}
		vals = ordered
	}
	if subset := p.def.Output.NodeSubset; len(subset) > 0 {
		picked := make([]float64, len(subset))
		for i, n := range subset {
			picked[i] = vals[n]
		}
		vals = picked
	}
	return vals
}

// writeInfo logs the timestep summary: time, global voltage extrema and
// the live-vector count. Collective (the extrema are gathered).
func (p *Problem) writeInfo(t float64, v *field.Vector) error {
	lo, hi := p.msh.Lo(), p.msh.Hi()
	// Empty local ranges still take part in the gather, with extrema that
	// never win the reduction.
	localMin, localMax := math.Inf(1), math.Inf(-1)
	for n := lo; n < hi; n++ {
		val := v.At(n, 0)
		if val < localMin {
			localMin = val
		}
		if val > localMax {
			localMax = val
		}
	}

	all, err := p.group.GatherFloat64(0, []float64{localMin, localMax})
	if err = p.group.ReplicateError(err); err != nil {
		return err
	}
	if p.group.Rank() == 0 {
		vMin, vMax := all[0], all[1]
		for i := 2; i < len(all); i += 2 {
			if all[i] < vMin {
				vMin = all[i]
			}
			if all[i+1] > vMax {
				vMax = all[i+1]
			}
		}
		p.logger.Info("timestep",
			"time", t,
			"v_min", vMin,
			"v_max", vMax,
			"live_vectors", p.msh.Factory().Live())
	}
	return nil
}

func intsToMeta(ns []int) string {
	if len(ns) == 0 {
		return ""
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func boolMeta(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
