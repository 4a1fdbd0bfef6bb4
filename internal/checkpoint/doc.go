// Package checkpoint provides the SQLite-backed row store for simulation
// output and resume.
//
// One database file per run (`<dir>/<prefix>.db`) holds:
//   - Meta: run identity (run id, definition hash, dimensions)
//   - Columns: the variable registry in definition order
//   - Frames: one row per printed timestep (the unlimited dimension)
//   - Samples: one packed float64 array per frame per column
//
// # Modes
//
// A Writer is opened in one of two modes:
//
//   - Create: a fresh database in define mode. Columns and the unlimited
//     dimension may be declared until EndDefineMode; declaring afterwards is
//     a usage error (ErrDefineOver).
//   - Extend: an existing database for resume. Declarations become lookups
//     against the stored registry; any mismatch is a ConflictError and the
//     file is left byte-identical.
//
// # Crash safety
//
// Each WriteRow is a single transaction inserting the frame and all its
// samples. A crash between rows loses at most the in-flight row. Frame
// times are strictly increasing; writing at or before the stored last time
// is rejected (ErrNonMonotonicTime).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The store is rank-oblivious: in a multi-process run only rank 0 writes,
// and the orchestrator brackets open/close with barriers.
package checkpoint
