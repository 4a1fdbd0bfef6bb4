package postproc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cardiolab/systole/internal/checkpoint"
)

// writeActivationMaps emits one activation map per threshold:
// <out>/postproc/activation_<threshold>.dat, one line per node with the
// first time the voltage crosses the threshold upward (linear
// interpolation between frames; -1 when it never does).
func writeActivationMaps(r *checkpoint.Reader, outDir string, thresholds []float64) error {
	dir := filepath.Join(outDir, "postproc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Converter: "activation", Path: dir, Err: err}
	}

	times, err := r.Times()
	if err != nil {
		return err
	}
	count := len(times)
	if count == 0 {
		return nil
	}

	// One pass over the frames, all voltage traces in memory.
	frames := make([][]float64, count)
	for seq := 0; seq < count; seq++ {
		_, data, err := r.Frame(seq)
		if err != nil {
			return &IOError{Converter: "activation", Path: dir, Err: err}
		}
		frames[seq] = data["V"]
	}
	nodes := len(frames[0])

	for _, threshold := range thresholds {
		name := fmt.Sprintf("activation_%s.dat", strconv.FormatFloat(threshold, 'g', -1, 64))
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return &IOError{Converter: "activation", Path: path, Err: err}
		}
		w := bufio.NewWriter(f)
		for n := 0; n < nodes; n++ {
			at := activationTime(times, frames, n, threshold)
			if _, err := fmt.Fprintf(w, "%d %s\n", n, strconv.FormatFloat(at, 'g', -1, 64)); err != nil {
				f.Close()
				return &IOError{Converter: "activation", Path: path, Err: err}
			}
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return &IOError{Converter: "activation", Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			return &IOError{Converter: "activation", Path: path, Err: err}
		}
	}
	return nil
}

// activationTime finds the first upward crossing of threshold in one
// node's voltage trace, linearly interpolated between the bracketing
// frames. Returns -1 when the trace never crosses.
func activationTime(times []float64, frames [][]float64, node int, threshold float64) float64 {
	if frames[0][node] >= threshold {
		return times[0]
	}
	for i := 1; i < len(frames); i++ {
		prev, next := frames[i-1][node], frames[i][node]
		if prev < threshold && next >= threshold {
			frac := (threshold - prev) / (next - prev)
			return times[i-1] + frac*(times[i]-times[i-1])
		}
	}
	return -1
}
