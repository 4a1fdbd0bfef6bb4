// Package tissue holds the per-node cell models, the cell factory contract,
// and the assembled tissue a solver operates on.
package tissue

import "fmt"

// CellModel is one node's membrane dynamics. The solver advances its state
// with explicit reaction steps; the output layer reads named variables from
// it at printing times.
type CellModel interface {
	// Voltage returns the membrane potential in mV.
	Voltage() float64

	// SetVoltage overrides the membrane potential, used when the field
	// vector is pushed back into the cells after a diffusion step.
	SetVoltage(v float64)

	// State returns the full ODE state vector. The first entry is the
	// membrane potential.
	State() []float64

	// SetState overwrites the full ODE state vector.
	SetState(y []float64)

	// ReactionRates evaluates dy/dt at time t for state y, including any
	// stimulus current active at t.
	ReactionRates(t float64, y []float64) []float64

	// AnyVariable returns a named derived quantity at time t. Unknown
	// names are an error.
	AnyVariable(name string, t float64) (float64, error)

	// StimulusCurrent returns the applied stimulus at time t.
	StimulusCurrent(t float64) float64
}

// Stimulus is a square current pulse. Amplitude keeps the conventional
// sign: negative values depolarize.
type Stimulus struct {
	Start     float64
	Duration  float64
	Amplitude float64
}

// Current returns the stimulus value at time t.
func (s Stimulus) Current(t float64) float64 {
	if t >= s.Start && t < s.Start+s.Duration {
		return s.Amplitude
	}
	return 0
}

// Modified FitzHugh-Nagumo constants. The dimensionless activation variable
// is mapped onto a physiological voltage range so traces read in mV.
const (
	fhnRestingV   = -85.0 // mV
	fhnAmplitudeV = 125.0 // mV between rest and peak
	fhnAlpha      = 0.13
	fhnC1         = 0.26
	fhnC2         = 0.1
	fhnB          = 0.013
	fhnD          = 1.0
	// Stimulus currents arrive in uA/cm^3 scale; this maps them onto the
	// dimensionless rate equation.
	fhnStimScale = 1.0 / 80000.0
)

// FHNCell is a modified FitzHugh-Nagumo cell: two state variables, the
// membrane potential V (mV) and the recovery variable W (dimensionless).
type FHNCell struct {
	v    float64
	w    float64
	stim Stimulus
}

// NewFHNCell creates a cell at rest with the given stimulus protocol.
// A zero-valued Stimulus means the cell is never stimulated.
func NewFHNCell(stim Stimulus) *FHNCell {
	return &FHNCell{v: fhnRestingV, stim: stim}
}

// Voltage returns the membrane potential in mV.
func (c *FHNCell) Voltage() float64 { return c.v }

// SetVoltage overrides the membrane potential.
func (c *FHNCell) SetVoltage(v float64) { c.v = v }

// State returns {V, W}.
func (c *FHNCell) State() []float64 { return []float64{c.v, c.w} }

// SetState overwrites {V, W}.
func (c *FHNCell) SetState(y []float64) {
	c.v = y[0]
	c.w = y[1]
}

// ReactionRates evaluates the FitzHugh-Nagumo right-hand side at (t, y).
func (c *FHNCell) ReactionRates(t float64, y []float64) []float64 {
	u := (y[0] - fhnRestingV) / fhnAmplitudeV
	w := y[1]
	du := fhnC1*u*(u-fhnAlpha)*(1-u) - fhnC2*u*w - c.stim.Current(t)*fhnStimScale
	dw := fhnB * (u - fhnD*w)
	return []float64{du * fhnAmplitudeV, dw}
}

// AnyVariable resolves the named quantities this model exposes: "V", "W"
// and "I_stim".
func (c *FHNCell) AnyVariable(name string, t float64) (float64, error) {
	switch name {
	case "V":
		return c.v, nil
	case "W":
		return c.w, nil
	case "I_stim":
		return c.stim.Current(t), nil
	default:
		return 0, fmt.Errorf("tissue: cell model has no variable %q", name)
	}
}

// StimulusCurrent returns the applied stimulus at time t.
func (c *FHNCell) StimulusCurrent(t float64) float64 {
	return c.stim.Current(t)
}
