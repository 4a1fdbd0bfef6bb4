package postproc

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cardiolab/systole/internal/checkpoint"
)

// writeCSV emits <out>/csv/<prefix>.csv: header `time,node,<vars...>`, one
// row per frame per node, frames outermost.
func writeCSV(r *checkpoint.Reader, outDir, prefix string) error {
	dir := filepath.Join(outDir, "csv")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Converter: "csv", Path: dir, Err: err}
	}
	path := filepath.Join(dir, prefix+".csv")

	cols, err := r.Columns()
	if err != nil {
		return err
	}
	count, err := r.FrameCount()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return &IOError{Converter: "csv", Path: path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"time", "node"}
	for _, col := range cols {
		header = append(header, col.Name)
	}
	if err := w.Write(header); err != nil {
		return &IOError{Converter: "csv", Path: path, Err: err}
	}

	record := make([]string, len(header))
	for seq := 0; seq < count; seq++ {
		t, data, err := r.Frame(seq)
		if err != nil {
			return &IOError{Converter: "csv", Path: path, Err: err}
		}
		nodes := len(data[cols[0].Name])
		for n := 0; n < nodes; n++ {
			record[0] = strconv.FormatFloat(t, 'g', -1, 64)
			record[1] = strconv.Itoa(n)
			for i, col := range cols {
				record[2+i] = strconv.FormatFloat(data[col.Name][n], 'g', -1, 64)
			}
			if err := w.Write(record); err != nil {
				return &IOError{Converter: "csv", Path: path, Err: err}
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &IOError{Converter: "csv", Path: path, Err: err}
	}
	return nil
}
