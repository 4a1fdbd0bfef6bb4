package checkpoint

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for writer usage mistakes.
var (
	// ErrExists is returned by Create when the database file already exists
	// and WithOverwrite was not given.
	ErrExists = errors.New("checkpoint: output file already exists")

	// ErrDefineOver is returned when a column or dimension is declared
	// after EndDefineMode.
	ErrDefineOver = errors.New("checkpoint: define mode is over")

	// ErrNonMonotonicTime is returned by WriteRow when the frame time is at
	// or before the stored last time.
	ErrNonMonotonicTime = errors.New("checkpoint: frame time not after stored last time")
)

// ConflictError reports that an existing database cannot be extended: its
// stored state disagrees with the resume request. The file is left
// unmodified when this error is returned.
//
// StoredTime is NaN when the file holds no frames at all.
type ConflictError struct {
	Path       string
	StoredTime float64
	ResumeTime float64
	// Column names the first mismatched column when the conflict is a
	// registry mismatch rather than a time mismatch.
	Column string
}

func (e *ConflictError) Error() string {
	switch {
	case e.Column != "":
		return fmt.Sprintf("checkpoint: %s: column %q does not match the stored registry", e.Path, e.Column)
	case math.IsNaN(e.StoredTime):
		return fmt.Sprintf("checkpoint: %s: no frames stored, file is not extendable", e.Path)
	default:
		return fmt.Sprintf("checkpoint: %s: stored last time %v is past resume time %v",
			e.Path, e.StoredTime, e.ResumeTime)
	}
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
