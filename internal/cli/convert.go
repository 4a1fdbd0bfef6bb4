package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardiolab/systole/internal/checkpoint"
	"github.com/cardiolab/systole/internal/postproc"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	Meshalyzer   bool
	CSV          bool
	Activation   []float64
	PlotNodes    []int
	PlotVariable string
	OutDir       string
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <checkpoint-db>",
		Short: "Convert a checkpoint database into analysis formats",
		Long: `Run the requested converters against a checkpoint database. Each
converter writes into its own subdirectory next to the database, or
under --out when given. A summary file is always written.

Example:
  systole convert out/strand.db --csv --activation=0
  systole convert out/strand.db --meshalyzer --plot-node=0 --plot-node=12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertDatabase(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Meshalyzer, "meshalyzer", false, "write meshalyzer .dat files")
	cmd.Flags().BoolVar(&opts.CSV, "csv", false, "write a long-format CSV")
	cmd.Flags().Float64SliceVar(&opts.Activation, "activation", nil, "write activation times for this threshold (repeatable)")
	cmd.Flags().IntSliceVar(&opts.PlotNodes, "plot-node", nil, "render a PNG trace for this node (repeatable)")
	cmd.Flags().StringVar(&opts.PlotVariable, "plot-variable", "", "variable to plot (default V)")
	cmd.Flags().StringVar(&opts.OutDir, "out", "", "output directory (default: alongside the database)")

	return cmd
}

// convertReport is the convert result payload.
type convertReport struct {
	Database   string   `json:"database"`
	OutDir     string   `json:"out_dir"`
	Converters []string `json:"converters"`
}

func (r convertReport) String() string {
	return fmt.Sprintf("converted %s (%s) into %s",
		r.Database, strings.Join(r.Converters, ", "), r.OutDir)
}

func convertDatabase(cmd *cobra.Command, opts *ConvertOptions, dbPath string) error {
	dir := filepath.Dir(dbPath)
	prefix := strings.TrimSuffix(filepath.Base(dbPath), ".db")

	r, err := checkpoint.OpenReader(dir, prefix)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening checkpoint database", err)
	}
	defer r.Close()

	req := postproc.Requests{
		Meshalyzer:           opts.Meshalyzer,
		CSV:                  opts.CSV,
		ActivationThresholds: opts.Activation,
		PlotNodes:            opts.PlotNodes,
		PlotVariable:         opts.PlotVariable,
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = dir
	}

	if err := postproc.Dispatch(r, req, outDir, slog.Default()); err != nil {
		return WrapExitError(ExitFailure, "conversion failed", err)
	}

	report := convertReport{Database: dbPath, OutDir: outDir, Converters: requestedNames(req)}
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(report)
}

// requestedNames lists the converters a request enables; summary always
// runs.
func requestedNames(req postproc.Requests) []string {
	names := []string{"summary"}
	if req.Meshalyzer {
		names = append(names, "meshalyzer")
	}
	if req.CSV {
		names = append(names, "csv")
	}
	if len(req.ActivationThresholds) > 0 {
		names = append(names, "activation")
	}
	if len(req.PlotNodes) > 0 {
		names = append(names, "plot")
	}
	return names
}
