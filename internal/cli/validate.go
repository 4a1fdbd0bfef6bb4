package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardiolab/systole/internal/harness"
	"github.com/cardiolab/systole/internal/simdef"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Scenario string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <def-dir>",
		Short: "Validate a definition without solving it",
		Long: `Compile and field-validate the CUE definition in the given
directory. With --scenario, run the named scenario file end to end in a
throwaway directory and check its expectations instead.

Example:
  systole validate ./experiments/strand
  systole validate ./experiments/strand --scenario smoke.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Scenario != "" {
				return validateScenario(cmd, opts)
			}
			if len(args) != 1 {
				return WrapExitError(ExitCommandError, "a definition directory or --scenario is required", nil)
			}
			return validateDefinition(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario file to run end to end")

	return cmd
}

// validateReport is the validate result payload.
type validateReport struct {
	Subject string `json:"subject"`
	Name    string `json:"name"`
	RunID   string `json:"run_id,omitempty"`
}

func (r validateReport) String() string {
	if r.RunID != "" {
		return fmt.Sprintf("%s %q ok (run %s)", r.Subject, r.Name, r.RunID)
	}
	return fmt.Sprintf("%s %q ok", r.Subject, r.Name)
}

func validateDefinition(cmd *cobra.Command, opts *ValidateOptions, defDir string) error {
	def, err := simdef.Compile(defDir)
	if err != nil {
		return WrapExitError(ExitFailure, "definition invalid", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(validateReport{Subject: "definition", Name: def.Name})
}

func validateScenario(cmd *cobra.Command, opts *ValidateOptions) error {
	sc, err := harness.LoadScenario(opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading scenario", err)
	}

	workDir, err := os.MkdirTemp("", "systole-scenario-*")
	if err != nil {
		return WrapExitError(ExitCommandError, "creating work directory", err)
	}
	defer os.RemoveAll(workDir)

	res, err := harness.Run(cmd.Context(), sc, workDir, slog.Default())
	if err != nil {
		return WrapExitError(ExitFailure, "scenario failed", err)
	}
	if err := res.Verify(sc); err != nil {
		return WrapExitError(ExitFailure, "scenario expectations not met", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(validateReport{Subject: "scenario", Name: sc.Name, RunID: res.RunID})
}
