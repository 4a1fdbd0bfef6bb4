package postproc

import (
	"errors"
	"fmt"

	"github.com/cardiolab/systole/internal/simdef"
)

// Requests lists the conversions a dispatch should run.
type Requests struct {
	Meshalyzer           bool
	CSV                  bool
	ActivationThresholds []float64
	PlotNodes            []int
	// PlotVariable is the column plotted for PlotNodes; empty means "V".
	PlotVariable string
}

// FromDefinition extracts the conversion requests of a definition.
func FromDefinition(def *simdef.Definition) Requests {
	return Requests{
		Meshalyzer:           def.Postproc.Meshalyzer,
		CSV:                  def.Postproc.CSV,
		ActivationThresholds: def.Postproc.ActivationThresholds,
		PlotNodes:            def.Postproc.PlotNodes,
		PlotVariable:         def.Postproc.PlotVariable,
	}
}

// Any reports whether at least one conversion is requested.
func (r Requests) Any() bool {
	return r.Meshalyzer || r.CSV ||
		len(r.ActivationThresholds) > 0 || len(r.PlotNodes) > 0
}

// IOError wraps a converter failure with the converter's name and the
// artifact it was writing. The dispatcher logs it and moves on to the
// next converter.
type IOError struct {
	Converter string
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("postproc: %s: %s: %v", e.Converter, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIOError reports whether err is (or wraps) an IOError.
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}
