package parallel

import "fmt"

// Group is the set of ranks cooperating on one simulation.
//
// All methods except Rank and Size are collectives: every rank of the group
// must call them in the same order with compatible arguments. Skipping a
// collective on one rank deadlocks the group, exactly as it would under a
// message-passing runtime.
type Group interface {
	// Rank is this process's index in [0, Size).
	Rank() int

	// Size is the number of ranks in the group.
	Size() int

	// Barrier blocks until every rank has entered it.
	Barrier()

	// ReplicateError makes a local failure group-wide. If err is non-nil on
	// any rank, every rank receives a non-nil result: the local error where
	// it occurred, and a ReplicatedError naming the lowest failing rank
	// everywhere else. If err is nil on all ranks, all receive nil.
	ReplicateError(err error) error

	// AnyTrue returns true on every rank if v is true on at least one rank.
	AnyTrue(v bool) bool

	// GatherFloat64 concatenates each rank's local slice in rank order and
	// returns the result on root. Non-root ranks receive nil. Local slices
	// may have different lengths.
	GatherFloat64(root int, local []float64) ([]float64, error)

	// BroadcastFloat64 returns root's value on every rank.
	BroadcastFloat64(root int, v float64) float64
}

// ReplicatedError reports that another rank of the group failed. The
// originating error is not transported across ranks; only its origin is.
type ReplicatedError struct {
	Rank int
}

func (e *ReplicatedError) Error() string {
	return fmt.Sprintf("parallel: rank %d reported a failure", e.Rank)
}

// Serial returns the size-1 group used by single-process runs.
func Serial() Group {
	return serialGroup{}
}

type serialGroup struct{}

func (serialGroup) Rank() int { return 0 }
func (serialGroup) Size() int { return 1 }
func (serialGroup) Barrier()  {}

func (serialGroup) ReplicateError(err error) error { return err }

func (serialGroup) AnyTrue(v bool) bool { return v }

func (serialGroup) GatherFloat64(root int, local []float64) ([]float64, error) {
	if root != 0 {
		return nil, fmt.Errorf("parallel: gather root %d out of range for group of size 1", root)
	}
	out := make([]float64, len(local))
	copy(out, local)
	return out, nil
}

func (serialGroup) BroadcastFloat64(root int, v float64) float64 { return v }
