package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// ResumeOptions holds flags for the resume command.
type ResumeOptions struct {
	*RootOptions
	Until float64
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resume <def-dir>",
		Short: "Resume a run from its checkpoint file",
		Long: `Compile the CUE definition, reload the last stored frame from the
run's checkpoint file, and continue solving from there. The stored rows
are kept; new rows are appended.

--until extends the end time past the definition's, so a completed run
can be continued further.

Example:
  systole resume ./experiments/strand
  systole resume ./experiments/strand --until 500`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resumeSimulation(cmd, opts, args[0])
		},
	}

	cmd.Flags().Float64Var(&opts.Until, "until", 0, "solve until this time instead of the definition's end")

	return cmd
}

func resumeSimulation(cmd *cobra.Command, opts *ResumeOptions, defDir string) error {
	p, err := buildProblem(defDir, false)
	if err != nil {
		return err
	}
	if opts.Until > 0 {
		p.Definition().Durations.End = opts.Until
	}

	if err := p.Initialise(); err != nil {
		return WrapExitError(ExitFailure, "initialise failed", err)
	}
	if err := p.RestoreFromCheckpoint(); err != nil {
		return WrapExitError(ExitCommandError, "restoring checkpoint", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Solve(ctx); err != nil {
		return WrapExitError(ExitFailure, "resumed run failed", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(runReport{
		RunID:     p.RunID(),
		FinalTime: p.CurrentTime(),
		State:     p.State().String(),
	})
}
