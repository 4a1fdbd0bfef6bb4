package simdef

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// ConfigCode categorizes configuration errors.
type ConfigCode string

// Configuration error codes. These cover every way a run can be rejected
// before any resource is acquired, so callers can branch on the category
// without string matching.
const (
	// CfgEndNotFuture: the requested end time is not strictly after the
	// current time.
	CfgEndNotFuture ConfigCode = "CFG_END_NOT_FUTURE"

	// CfgIntervalNotPositive: a time interval (printing or solver step)
	// is zero or negative.
	CfgIntervalNotPositive ConfigCode = "CFG_INTERVAL_NOT_POSITIVE"

	// CfgExtraStopBreaksInterval: an additional stopping time does not
	// coincide with the regular grid while constant intervals are enforced.
	CfgExtraStopBreaksInterval ConfigCode = "CFG_EXTRA_STOP_BREAKS_INTERVAL"

	// CfgIntervalMisaligned: the printing interval does not evenly divide
	// the simulation duration, or the solver step does not divide the
	// printing interval.
	CfgIntervalMisaligned ConfigCode = "CFG_INTERVAL_MISALIGNED"

	// CfgNotInitialised: Solve was called before Initialise.
	CfgNotInitialised ConfigCode = "CFG_NOT_INITIALISED"

	// CfgOutputPathEmpty: output was requested but the directory or the
	// file prefix is empty.
	CfgOutputPathEmpty ConfigCode = "CFG_OUTPUT_PATH_EMPTY"

	// CfgNodeSubsetRange: a requested output node index is outside the mesh.
	CfgNodeSubsetRange ConfigCode = "CFG_NODE_SUBSET_RANGE"

	// CfgBadGeometry: mesh geometry is unusable (non-positive spacing or
	// extent, unsupported dimension).
	CfgBadGeometry ConfigCode = "CFG_BAD_GEOMETRY"

	// CfgMissingCellFactory: no cell factory was supplied.
	CfgMissingCellFactory ConfigCode = "CFG_MISSING_CELL_FACTORY"
)

// ConfigError reports a rejected configuration. Configuration errors are
// always detected eagerly, before files are created or vectors allocated,
// so no cleanup is owed when one is returned.
type ConfigError struct {
	Code    ConfigCode
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewConfigError creates a ConfigError with the given code, field and message.
func NewConfigError(code ConfigCode, field, message string) *ConfigError {
	return &ConfigError{Code: code, Field: field, Message: message}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigCodeOf extracts the code from a wrapped ConfigError.
// Returns false if err is not a ConfigError.
func ConfigCodeOf(err error) (ConfigCode, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return "", false
}

// Compile error codes (E200-E299).
const (
	ErrCodeLoad    = "E201" // CUE package could not be loaded
	ErrCodeBuild   = "E202" // CUE value could not be built
	ErrCodeMissing = "E203" // required field missing
	ErrCodeDecode  = "E204" // CUE value does not decode into the definition
	ErrCodeInvalid = "E205" // decoded definition violates a field constraint
)

// CompileError reports a definition that could not be compiled, with the
// CUE source position when one is available.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Field, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsCompileError reports whether err is (or wraps) a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
