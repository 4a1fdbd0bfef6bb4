// Package harness runs end-to-end simulation scenarios described in YAML.
//
// A scenario bundles a complete simulation definition with the observable
// outcome it must produce: the number of checkpoint rows, the stop times
// visited, and optionally per-node traces compared against golden files.
// Scenarios back the package's own end-to-end tests and the
// `systole validate --scenario` command.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cardiolab/systole/internal/simdef"
)

// Scenario is one end-to-end run with its expected outcome.
type Scenario struct {
	// Name uniquely identifies the scenario; it doubles as the output
	// prefix when the definition leaves one unset.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Definition is the full simulation definition, inline.
	Definition simdef.Definition `yaml:"definition"`

	// Expected is the outcome the run must produce.
	Expected Expected `yaml:"expected"`

	// Probes are per-node traces extracted after the run, each compared
	// against a golden file.
	Probes []Probe `yaml:"probes,omitempty"`
}

// Expected describes the observable outcome of a scenario run.
type Expected struct {
	// Rows is the number of checkpoint rows the run must write,
	// including the initial row.
	Rows int `yaml:"rows"`

	// StopTimes, when non-empty, must equal the stored frame times
	// exactly and in order.
	StopTimes []float64 `yaml:"stop_times,omitempty"`

	// FinalTime is the time the run must end at.
	FinalTime float64 `yaml:"final_time"`
}

// Probe selects one stored series for golden comparison.
type Probe struct {
	Node     int    `yaml:"node"`
	Variable string `yaml:"variable"`
	// Golden is the fixture name passed to the golden comparator.
	Golden string `yaml:"golden"`
}

// LoadScenario reads and strictly decodes a scenario file. Unknown YAML
// fields are an error so a typo in a scenario cannot silently relax it.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decoding scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if sc.Expected.Rows <= 0 {
		return nil, fmt.Errorf("scenario %s: expected.rows must be positive", path)
	}
	for i, p := range sc.Probes {
		if p.Variable == "" {
			return nil, fmt.Errorf("scenario %s: probe %d: variable is required", path, i)
		}
		if p.Golden == "" {
			return nil, fmt.Errorf("scenario %s: probe %d: golden is required", path, i)
		}
	}
	return &sc, nil
}
