package postproc

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cardiolab/systole/internal/checkpoint"
)

// writePlots renders one PNG trace per requested node:
// <out>/plots/<prefix>_<var>_node<N>.png.
func writePlots(r *checkpoint.Reader, outDir, prefix, variable string, nodes []int) error {
	if variable == "" {
		variable = "V"
	}
	dir := filepath.Join(outDir, "plots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Converter: "plot", Path: dir, Err: err}
	}

	times, err := r.Times()
	if err != nil {
		return err
	}

	for _, node := range nodes {
		series, err := r.ColumnSeries(variable, node)
		if err != nil {
			return &IOError{Converter: "plot", Path: dir, Err: err}
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%s_node%d.png", prefix, variable, node))
		if err := renderTrace(path, variable, node, times, series); err != nil {
			return err
		}
	}
	return nil
}

func renderTrace(path, variable string, node int, times, series []float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s at node %d", variable, node)
	p.X.Label.Text = "time (msecs)"
	p.Y.Label.Text = variable

	pts := make(plotter.XYs, len(times))
	for i := range times {
		pts[i].X = times[i]
		pts[i].Y = series[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return &IOError{Converter: "plot", Path: path, Err: err}
	}
	p.Add(line)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return &IOError{Converter: "plot", Path: path, Err: err}
	}
	return nil
}
