package postproc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cardiolab/systole/internal/checkpoint"
)

// writeSummary emits <out>/postproc/summary.txt: run identity, registry
// and time range. Deterministic content, no wall times.
func writeSummary(r *checkpoint.Reader, outDir, prefix string) error {
	dir := filepath.Join(outDir, "postproc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Converter: "summary", Path: dir, Err: err}
	}
	path := filepath.Join(dir, "summary.txt")

	cols, err := r.Columns()
	if err != nil {
		return err
	}
	times, err := r.Times()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return &IOError{Converter: "summary", Path: path, Err: err}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "prefix: %s\n", prefix)
	for _, key := range []string{"run_id", "definition_hash", "problem_dim", "num_nodes"} {
		if v, ok, err := r.Meta(key); err == nil && ok {
			fmt.Fprintf(w, "%s: %s\n", key, v)
		}
	}
	fmt.Fprintf(w, "frames: %d\n", len(times))
	if len(times) > 0 {
		fmt.Fprintf(w, "time_range: %s .. %s\n",
			strconv.FormatFloat(times[0], 'g', -1, 64),
			strconv.FormatFloat(times[len(times)-1], 'g', -1, 64))
	}
	for _, col := range cols {
		fmt.Fprintf(w, "column: %s (%s)\n", col.Name, col.Unit)
	}
	if err := w.Flush(); err != nil {
		return &IOError{Converter: "summary", Path: path, Err: err}
	}
	return nil
}
