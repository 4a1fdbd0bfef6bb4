package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/cardiolab/systole/internal/checkpoint"
	"github.com/cardiolab/systole/internal/mesh"
	"github.com/cardiolab/systole/internal/parallel"
	"github.com/cardiolab/systole/internal/problem"
	"github.com/cardiolab/systole/internal/simdef"
	"github.com/cardiolab/systole/internal/tissue"
)

// timeTol is the tolerance for comparing stored stop times against the
// scenario's expectations.
const timeTol = 1e-9

// Result is the observable outcome of one scenario run.
type Result struct {
	RunID     string
	FinalTime float64
	Times     []float64

	dir    string
	prefix string
}

// Run executes a scenario serially and collects its outcome.
//
// The scenario's definition is solved in workDir: output is forced on,
// with the scenario name as prefix when the definition leaves one unset.
// The bidomain variant is selected when the definition carries a bath or
// an electrode protocol, otherwise monodomain.
func Run(ctx context.Context, sc *Scenario, workDir string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	def := sc.Definition
	def.Output.Enabled = true
	def.Output.Dir = workDir
	if def.Output.Prefix == "" {
		def.Output.Prefix = sc.Name
	}
	if err := simdef.Validate(&def); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	g := parallel.Serial()
	m, err := mesh.FromDefinition(g, &def)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	var variant problem.Variant
	if def.Bath != nil || def.Electrodes != nil {
		variant = problem.NewBidomainVariant(&def)
	} else {
		variant = problem.NewMonodomainVariant(&def)
	}

	p, err := problem.New(&def, tissue.NewDefFactory(m, &def), variant,
		problem.WithMesh(m),
		problem.WithLogger(logger),
		problem.WithOverwrite(true),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if err := p.Initialise(); err != nil {
		return nil, fmt.Errorf("scenario %s: initialise: %w", sc.Name, err)
	}
	if err := p.Solve(ctx); err != nil {
		return nil, fmt.Errorf("scenario %s: solve: %w", sc.Name, err)
	}

	r, err := checkpoint.OpenReader(def.Output.Dir, def.Output.Prefix)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: reading output: %w", sc.Name, err)
	}
	defer r.Close()

	times, err := r.Times()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	return &Result{
		RunID:     p.RunID(),
		FinalTime: p.CurrentTime(),
		Times:     times,
		dir:       def.Output.Dir,
		prefix:    def.Output.Prefix,
	}, nil
}

// Verify checks the result against the scenario's expectations and
// returns the first mismatch.
func (res *Result) Verify(sc *Scenario) error {
	if got := len(res.Times); got != sc.Expected.Rows {
		return fmt.Errorf("scenario %s: wrote %d rows, expected %d", sc.Name, got, sc.Expected.Rows)
	}
	if math.Abs(res.FinalTime-sc.Expected.FinalTime) > timeTol {
		return fmt.Errorf("scenario %s: ended at %v, expected %v", sc.Name, res.FinalTime, sc.Expected.FinalTime)
	}
	if len(sc.Expected.StopTimes) > 0 {
		if len(sc.Expected.StopTimes) != len(res.Times) {
			return fmt.Errorf("scenario %s: %d stop times stored, expected %d",
				sc.Name, len(res.Times), len(sc.Expected.StopTimes))
		}
		for i, want := range sc.Expected.StopTimes {
			if math.Abs(res.Times[i]-want) > timeTol {
				return fmt.Errorf("scenario %s: stop %d is %v, expected %v", sc.Name, i, res.Times[i], want)
			}
		}
	}
	return nil
}

// Trace renders one probe's stored series as "time value" lines, the
// format compared against golden files.
func (res *Result) Trace(p Probe) ([]byte, error) {
	r, err := checkpoint.OpenReader(res.dir, res.prefix)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	series, err := r.ColumnSeries(p.Variable, p.Node)
	if err != nil {
		return nil, fmt.Errorf("probe %s node %d: %w", p.Variable, p.Node, err)
	}
	if len(series) != len(res.Times) {
		return nil, fmt.Errorf("probe %s node %d: %d samples for %d frames",
			p.Variable, p.Node, len(series), len(res.Times))
	}

	var buf bytes.Buffer
	for i, t := range res.Times {
		buf.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatFloat(series[i], 'g', -1, 64))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
