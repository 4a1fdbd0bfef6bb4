package postproc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cardiolab/systole/internal/checkpoint"
)

// writeMeshalyzer emits one meshalyzer .dat file per column:
// <out>/viz_meshalyzer/<prefix>_<var>.dat, one line per frame with
// space-separated node values.
func writeMeshalyzer(r *checkpoint.Reader, outDir, prefix string) error {
	dir := filepath.Join(outDir, "viz_meshalyzer")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Converter: "meshalyzer", Path: dir, Err: err}
	}

	cols, err := r.Columns()
	if err != nil {
		return err
	}
	count, err := r.FrameCount()
	if err != nil {
		return err
	}

	for _, col := range cols {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.dat", prefix, col.Name))
		if err := writeMeshalyzerColumn(r, path, col.Name, count); err != nil {
			return err
		}
	}
	return nil
}

func writeMeshalyzerColumn(r *checkpoint.Reader, path, column string, frames int) error {
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Converter: "meshalyzer", Path: path, Err: err}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for seq := 0; seq < frames; seq++ {
		_, data, err := r.Frame(seq)
		if err != nil {
			return &IOError{Converter: "meshalyzer", Path: path, Err: err}
		}
		for i, v := range data[column] {
			if i > 0 {
				if err := w.WriteByte(' '); err != nil {
					return &IOError{Converter: "meshalyzer", Path: path, Err: err}
				}
			}
			if _, err := w.WriteString(strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
				return &IOError{Converter: "meshalyzer", Path: path, Err: err}
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return &IOError{Converter: "meshalyzer", Path: path, Err: err}
		}
	}
	if err := w.Flush(); err != nil {
		return &IOError{Converter: "meshalyzer", Path: path, Err: err}
	}
	return nil
}
