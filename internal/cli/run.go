package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cardiolab/systole/internal/mesh"
	"github.com/cardiolab/systole/internal/parallel"
	"github.com/cardiolab/systole/internal/problem"
	"github.com/cardiolab/systole/internal/simdef"
	"github.com/cardiolab/systole/internal/tissue"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Overwrite bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <def-dir>",
		Short: "Run a simulation from a CUE definition",
		Long: `Compile the CUE definition in the given directory, assemble the
problem, and solve it from time zero to the definition's end time.

Example:
  systole run ./experiments/strand
  systole run ./experiments/strand --overwrite --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace an existing output file")

	return cmd
}

// runReport is the run/resume result payload.
type runReport struct {
	RunID     string  `json:"run_id"`
	FinalTime float64 `json:"final_time"`
	State     string  `json:"state"`
}

func (r runReport) String() string {
	return fmt.Sprintf("run %s %s at t=%v", r.RunID, r.State, r.FinalTime)
}

func runSimulation(cmd *cobra.Command, opts *RunOptions, defDir string) error {
	p, err := buildProblem(defDir, opts.Overwrite)
	if err != nil {
		return err
	}
	if err := p.Initialise(); err != nil {
		return WrapExitError(ExitFailure, "initialise failed", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Solve(ctx); err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(runReport{
		RunID:     p.RunID(),
		FinalTime: p.CurrentTime(),
		State:     p.State().String(),
	})
}

// buildProblem compiles a definition directory and wires the mesh, cell
// factory and variant together. The bidomain variant is selected when the
// definition carries a bath or an electrode protocol.
func buildProblem(defDir string, overwrite bool) (*problem.Problem, error) {
	def, err := simdef.Compile(defDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "compiling definition", err)
	}

	g := parallel.Serial()
	m, err := mesh.FromDefinition(g, def)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "building mesh", err)
	}

	var variant problem.Variant
	if def.Bath != nil || def.Electrodes != nil {
		variant = problem.NewBidomainVariant(def)
	} else {
		variant = problem.NewMonodomainVariant(def)
	}
	slog.Debug("problem assembled", "variant", variant.Name(), "nodes", m.Nodes())

	p, err := problem.New(def, tissue.NewDefFactory(m, def), variant,
		problem.WithMesh(m),
		problem.WithOverwrite(overwrite),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "building problem", err)
	}
	return p, nil
}
