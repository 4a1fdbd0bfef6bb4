// Package parallel models the SPMD process group a simulation runs in.
//
// Every rank executes the same program and meets the others at collective
// operations. The contract mirrors the message-passing style of parallel
// solvers: collectives must be called by every rank of a group in the same
// order, and a collective does not return on any rank until all ranks have
// entered it.
//
// Two implementations are provided:
//   - Serial(): the size-1 group. Every collective degenerates to a local
//     no-op. This is the default for single-process runs.
//   - NewLocal(n): n ranks backed by goroutines in one process, synchronized
//     through a generation barrier. Used to exercise group-wide failure
//     replication and gather-based output in tests.
//
// Real network transports (MPI and friends) are out of scope; the interfaces
// are shaped so one could be added without touching callers.
package parallel
