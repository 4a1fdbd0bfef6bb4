// Package stepper generates the sequence of time points a solve loop visits.
//
// A Stepper is constructed with the full stop table up front: the regular
// printing grid merged with any additional mandatory stopping times. Times
// are indexed into that table rather than accumulated, so the current time
// never drifts and the final stop equals the end time bit-for-bit.
package stepper

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/cardiolab/systole/internal/simdef"
)

// absTolFloor is the absolute floor on the merge tolerance, guarding
// against an interval so small that a relative tolerance underflows.
const absTolFloor = 1e-12

// Stepper walks a fixed table of stop times from start to end.
//
// A Stepper is single-use: it cannot be rewound, only reconstructed.
// It is not safe for concurrent use; the solve loop owns it exclusively.
type Stepper struct {
	stops []float64
	idx   int
	tol   float64
}

// New builds a stepper over [start, end] with a regular stop every interval,
// merged with extraTimes. Extra times are sorted, deduplicated against grid
// points within tolerance, and dropped when at or outside (start, end); end
// itself is always the final stop.
//
// With enforceConstantInterval set, any surviving extra stop that does not
// coincide with a regular grid point is rejected: some solvers cache
// factorizations keyed on a constant step width.
func New(start, end, interval float64, enforceConstantInterval bool, extraTimes []float64) (*Stepper, error) {
	if end <= start {
		return nil, simdef.NewConfigError(simdef.CfgEndNotFuture, "end",
			fmt.Sprintf("end time %v is not after start time %v", end, start))
	}
	if interval <= 0 {
		return nil, simdef.NewConfigError(simdef.CfgIntervalNotPositive, "interval",
			fmt.Sprintf("interval %v must be positive", interval))
	}

	tol := interval * 1e-8
	if tol < absTolFloor {
		tol = absTolFloor
	}

	// Regular grid, computed by multiplication so stop k carries no
	// accumulated rounding. The grid may overshoot end when the interval
	// does not divide the duration; the final stop is always end itself.
	steps := int(math.Ceil((end - start) / interval))
	stops := make([]float64, 0, steps+1+len(extraTimes))
	for k := 0; ; k++ {
		tk := start + float64(k)*interval
		if tk >= end-tol {
			break
		}
		stops = append(stops, tk)
	}
	stops = append(stops, end)

	merged, err := mergeExtraTimes(stops, extraTimes, start, end, interval, tol, enforceConstantInterval)
	if err != nil {
		return nil, err
	}

	return &Stepper{stops: merged, tol: tol}, nil
}

// mergeExtraTimes folds the mandatory extra stops into the regular grid.
func mergeExtraTimes(grid, extra []float64, start, end, interval, tol float64, enforce bool) ([]float64, error) {
	if len(extra) == 0 {
		return grid, nil
	}

	sorted := make([]float64, len(extra))
	copy(sorted, extra)
	sort.Float64s(sorted)

	out := grid
	for _, t := range sorted {
		if t <= start+tol || t >= end-tol {
			continue // already a stop, or outside the run
		}
		// Locate the insertion point; a duplicate within tolerance of an
		// existing stop collapses into it.
		i := sort.SearchFloat64s(out, t)
		if i < len(out) && scalar.EqualWithinAbsOrRel(out[i], t, tol, 1e-8) {
			continue
		}
		if i > 0 && scalar.EqualWithinAbsOrRel(out[i-1], t, tol, 1e-8) {
			continue
		}
		if enforce {
			k := math.Round((t - start) / interval)
			if !scalar.EqualWithinAbsOrRel(start+k*interval, t, tol, 1e-8) {
				return nil, simdef.NewConfigError(simdef.CfgExtraStopBreaksInterval, "extra_times",
					fmt.Sprintf("stop time %v is not on the regular %v grid", t, interval))
			}
		}
		out = append(out, 0)
		copy(out[i+1:], out[i:])
		out[i] = t
	}
	return out, nil
}

// Time returns the current time.
func (s *Stepper) Time() float64 {
	return s.stops[s.idx]
}

// NextTime returns the next stop. At the final stop it returns the end time.
func (s *Stepper) NextTime() float64 {
	if s.IsTimeAtEnd() {
		return s.stops[len(s.stops)-1]
	}
	return s.stops[s.idx+1]
}

// NextInterval returns the width of the upcoming step. Zero at the end.
func (s *Stepper) NextInterval() float64 {
	return s.NextTime() - s.Time()
}

// AdvanceOneTimeStep commits to the next stop and returns the new current
// time. Advancing past the end is a programming error: IsTimeAtEnd gates
// the loop.
func (s *Stepper) AdvanceOneTimeStep() float64 {
	if s.IsTimeAtEnd() {
		panic("stepper: AdvanceOneTimeStep called at end time")
	}
	s.idx++
	return s.stops[s.idx]
}

// IsTimeAtEnd reports whether the current stop is the final one.
func (s *Stepper) IsTimeAtEnd() bool {
	return s.idx == len(s.stops)-1
}

// EstimateTimeSteps returns the number of advances from the current position
// to the end. With extra stops merged in, the estimate is exact.
func (s *Stepper) EstimateTimeSteps() int {
	return len(s.stops) - 1 - s.idx
}
