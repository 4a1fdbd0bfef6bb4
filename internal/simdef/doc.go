// Package simdef owns the simulation definition: the compiled description of
// geometry, durations, stimulus protocol and output requests that a run is
// built from.
//
// Definitions are written as CUE packages and compiled with Compile, which
// reports positional CompileError diagnostics. Compiled definitions are
// additionally field-validated with struct tags; validation here is a
// load-time gate and never replaces the orchestrator's own pre-solve checks.
//
// The package also owns the ConfigError type shared by every component that
// rejects an invalid configuration (stepper construction, mesh construction,
// pre-solve checks), and the canonical definition hash stored in checkpoint
// metadata so resumed runs can detect definition drift.
package simdef
