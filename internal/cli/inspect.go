package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardiolab/systole/internal/checkpoint"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <checkpoint-db>",
		Short: "Show the contents of a checkpoint database",
		Long: `Print the columns, frame count, time range and run metadata of a
checkpoint database.

Example:
  systole inspect out/strand.db
  systole inspect out/strand.db --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectDatabase(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

// inspectReport is the inspect result payload.
type inspectReport struct {
	Database  string            `json:"database"`
	Columns   []inspectColumn   `json:"columns"`
	Frames    int               `json:"frames"`
	TimeStart float64           `json:"time_start,omitempty"`
	TimeEnd   float64           `json:"time_end,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

type inspectColumn struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// metaKeys are the run metadata keys inspect reports when present.
var metaKeys = []string{
	"run_id", "definition_hash", "problem_dim", "num_nodes",
	"node_subset", "permutation", "prefix", "time_name", "time_unit",
}

func (r inspectReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Database)
	fmt.Fprintf(&b, "  frames: %d", r.Frames)
	if r.Frames > 0 {
		fmt.Fprintf(&b, "  time: %v .. %v", r.TimeStart, r.TimeEnd)
	}
	b.WriteString("\n  columns:")
	for _, c := range r.Columns {
		fmt.Fprintf(&b, " %s(%s)", c.Name, c.Unit)
	}
	for _, k := range metaKeys {
		if v, ok := r.Meta[k]; ok {
			fmt.Fprintf(&b, "\n  %s: %s", k, v)
		}
	}
	return b.String()
}

func inspectDatabase(cmd *cobra.Command, opts *RootOptions, dbPath string) error {
	dir := filepath.Dir(dbPath)
	prefix := strings.TrimSuffix(filepath.Base(dbPath), ".db")

	r, err := checkpoint.OpenReader(dir, prefix)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening checkpoint database", err)
	}
	defer r.Close()

	cols, err := r.Columns()
	if err != nil {
		return WrapExitError(ExitCommandError, "reading columns", err)
	}
	times, err := r.Times()
	if err != nil {
		return WrapExitError(ExitCommandError, "reading frames", err)
	}

	report := inspectReport{
		Database: dbPath,
		Frames:   len(times),
		Meta:     map[string]string{},
	}
	for _, c := range cols {
		report.Columns = append(report.Columns, inspectColumn{Name: c.Name, Unit: c.Unit})
	}
	if len(times) > 0 {
		report.TimeStart = times[0]
		report.TimeEnd = times[len(times)-1]
	}
	for _, k := range metaKeys {
		v, ok, err := r.Meta(k)
		if err != nil {
			return WrapExitError(ExitCommandError, "reading metadata", err)
		}
		if ok {
			report.Meta[k] = v
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(report)
}
