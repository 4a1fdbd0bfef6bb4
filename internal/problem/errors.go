package problem

import (
	"errors"
	"fmt"
)

// SolveError reports a failed timestep. Time is the start of the solver
// window that failed; the wrapped error is the solver's own (or, on remote
// ranks, a parallel.ReplicatedError naming the failing rank).
type SolveError struct {
	Time float64
	Err  error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("solve failed at t=%v: %v", e.Time, e.Err)
}

func (e *SolveError) Unwrap() error { return e.Err }

// IsSolveError reports whether err is (or wraps) a SolveError.
func IsSolveError(err error) bool {
	var se *SolveError
	return errors.As(err, &se)
}
