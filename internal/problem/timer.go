package problem

import (
	"log/slog"
	"time"
)

// Phase names tracked by the run timer.
const (
	phaseAssemble = "assemble"
	phaseSolve    = "solve"
	phaseWrite    = "write"
	phasePostproc = "postproc"
)

// phaseTimer accumulates wall time per named phase. Timings go to the log
// only, never into output files.
type phaseTimer struct {
	active map[string]time.Time
	total  map[string]time.Duration
	order  []string
}

func newPhaseTimer() *phaseTimer {
	return &phaseTimer{
		active: make(map[string]time.Time),
		total:  make(map[string]time.Duration),
	}
}

func (t *phaseTimer) Begin(phase string) {
	if _, ok := t.total[phase]; !ok {
		t.order = append(t.order, phase)
		t.total[phase] = 0
	}
	t.active[phase] = time.Now()
}

func (t *phaseTimer) End(phase string) {
	start, ok := t.active[phase]
	if !ok {
		return
	}
	delete(t.active, phase)
	t.total[phase] += time.Since(start)
}

// Reset drops all accumulated timings. Called on re-initialise and on
// every failure path.
func (t *phaseTimer) Reset() {
	t.active = make(map[string]time.Time)
	t.total = make(map[string]time.Duration)
	t.order = nil
}

// Report logs one line per phase in first-begun order.
func (t *phaseTimer) Report(logger *slog.Logger) {
	for _, phase := range t.order {
		logger.Info("phase timing", "phase", phase, "elapsed", t.total[phase])
	}
}
