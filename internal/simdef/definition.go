package simdef

// Definition is a compiled simulation definition. It is immutable by
// convention once compiled: the orchestrator reads it, never writes it.
//
// Field tags serve three consumers: json for canonical hashing, yaml for
// harness scenarios, validate for load-time field validation.
type Definition struct {
	Name         string      `json:"name" yaml:"name" validate:"required"`
	Geometry     Geometry    `json:"geometry" yaml:"geometry"`
	Durations    Durations   `json:"durations" yaml:"durations"`
	Stimulus     Stimulus    `json:"stimulus" yaml:"stimulus"`
	Conductivity float64     `json:"conductivity" yaml:"conductivity" validate:"gt=0"`
	Bath         *Box        `json:"bath,omitempty" yaml:"bath,omitempty"`
	Electrodes   *Electrodes `json:"electrodes,omitempty" yaml:"electrodes,omitempty"`
	Output       Output      `json:"output" yaml:"output"`
	Postproc     Postproc    `json:"postproc" yaml:"postproc"`
}

// Geometry describes the regular slab mesh a run is solved on.
// Extent holds one physical length per dimension; Spacing is the lattice
// constant shared by all axes.
type Geometry struct {
	Dim     int       `json:"dim" yaml:"dim" validate:"min=1,max=3"`
	Extent  []float64 `json:"extent" yaml:"extent" validate:"required,min=1,max=3,dive,gt=0"`
	Spacing float64   `json:"spacing" yaml:"spacing" validate:"gt=0"`
}

// Durations holds the three time scales of a run, all in milliseconds.
// PrintingStep is the regular checkpoint interval; SolverStep is the inner
// sub-cycling step of the solver.
type Durations struct {
	End          float64 `json:"end" yaml:"end" validate:"gt=0"`
	SolverStep   float64 `json:"solver_step" yaml:"solver_step" validate:"gt=0"`
	PrintingStep float64 `json:"printing_step" yaml:"printing_step" validate:"gt=0"`
}

// Stimulus is a square current pulse applied inside a box region.
// Amplitude carries the conventional sign (negative depolarizes).
type Stimulus struct {
	Region    Box     `json:"region" yaml:"region"`
	Start     float64 `json:"start" yaml:"start" validate:"gte=0"`
	Duration  float64 `json:"duration" yaml:"duration" validate:"gt=0"`
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`
}

// Box is an axis-aligned box in mesh coordinates, inclusive on both bounds.
type Box struct {
	Min []float64 `json:"min" yaml:"min" validate:"required,min=1,max=3"`
	Max []float64 `json:"max" yaml:"max" validate:"required,min=1,max=3"`
}

// Contains reports whether the point lies inside the box. Coordinates
// beyond the box's dimensionality are ignored.
func (b Box) Contains(point []float64) bool {
	for i := range b.Min {
		if i >= len(point) {
			return false
		}
		if point[i] < b.Min[i] || point[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Electrodes describes an extracellular stimulation protocol: a boundary
// current switched on at OnTime and off at OffTime. Both switching instants
// become mandatory stopping times of the run.
type Electrodes struct {
	OnTime    float64 `json:"on_time" yaml:"on_time" validate:"gte=0"`
	OffTime   float64 `json:"off_time" yaml:"off_time" validate:"gt=0"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`
}

// Output describes what a run persists. Variables may carry an "__IDX__k"
// suffix (k in 1..3) selecting one of the up-to-three per-node cell models.
// An empty NodeSubset means every mesh node is written.
type Output struct {
	Enabled       bool     `json:"enabled" yaml:"enabled"`
	Dir           string   `json:"dir" yaml:"dir"`
	Prefix        string   `json:"prefix" yaml:"prefix"`
	Variables     []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	NodeSubset    []int    `json:"node_subset,omitempty" yaml:"node_subset,omitempty"`
	OriginalOrder bool     `json:"original_order" yaml:"original_order"`
}

// Postproc lists the conversions dispatched when a run finishes.
type Postproc struct {
	Meshalyzer           bool      `json:"meshalyzer" yaml:"meshalyzer"`
	CSV                  bool      `json:"csv" yaml:"csv"`
	ActivationThresholds []float64 `json:"activation_thresholds,omitempty" yaml:"activation_thresholds,omitempty"`
	PlotNodes            []int     `json:"plot_nodes,omitempty" yaml:"plot_nodes,omitempty"`
	PlotVariable         string    `json:"plot_variable,omitempty" yaml:"plot_variable,omitempty"`
}

// OutputRequested reports whether the run should persist checkpoint rows.
func (d *Definition) OutputRequested() bool {
	return d.Output.Enabled
}
