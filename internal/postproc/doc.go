// Package postproc converts a finished run's checkpoint database into
// downstream artifacts: meshalyzer visualization files, CSV tables,
// activation maps, trace plots and a run summary.
//
// Every converter is deterministic and idempotent: converting the same
// database twice yields byte-identical output (PNG plots included), and no
// emitted artifact carries wall times.
package postproc
