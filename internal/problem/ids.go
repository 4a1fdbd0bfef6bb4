package problem

import (
	"fmt"

	"github.com/google/uuid"
)

// RunIDSource mints the identity stamped into checkpoint meta. Injectable
// so tests get stable IDs.
type RunIDSource interface {
	RunID() (string, error)
}

// UUIDSource mints time-ordered UUIDv7 run IDs.
type UUIDSource struct{}

func (UUIDSource) RunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("mint run id: %w", err)
	}
	return id.String(), nil
}

// FixedIDSource always returns itself. For tests.
type FixedIDSource string

func (s FixedIDSource) RunID() (string, error) { return string(s), nil }
