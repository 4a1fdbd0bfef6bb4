package simdef

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
)

// simulationPath is the top-level CUE field a definition lives under.
var simulationPath = cue.ParsePath("simulation")

// Compile loads the CUE package in dir and compiles its "simulation" field
// into a Definition.
//
// Compilation is two-phase: the CUE value is decoded structurally, then the
// decoded struct is field-validated. Both phases surface as CompileError so
// callers have one diagnostic type to print.
func Compile(dir string) (*Definition, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &CompileError{Code: ErrCodeLoad, Message: fmt.Sprintf("definition directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &CompileError{Code: ErrCodeLoad, Message: fmt.Sprintf("accessing definition directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &CompileError{Code: ErrCodeLoad, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &CompileError{Code: ErrCodeLoad, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &CompileError{Code: ErrCodeLoad, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &CompileError{Code: ErrCodeBuild, Message: fmt.Sprintf("building CUE value: %v", err), Pos: value.Pos()}
	}

	return CompileValue(value)
}

// CompileValue compiles a built CUE value holding a "simulation" field.
// Exposed separately so tests and embedders can compile from strings.
func CompileValue(value cue.Value) (*Definition, error) {
	simVal := value.LookupPath(simulationPath)
	if !simVal.Exists() {
		return nil, &CompileError{
			Code:    ErrCodeMissing,
			Field:   "simulation",
			Message: "top-level simulation field is required",
			Pos:     value.Pos(),
		}
	}
	if err := simVal.Err(); err != nil {
		return nil, &CompileError{Code: ErrCodeBuild, Field: "simulation", Message: err.Error(), Pos: simVal.Pos()}
	}

	def := &Definition{}
	if err := simVal.Decode(def); err != nil {
		return nil, &CompileError{
			Code:    ErrCodeDecode,
			Field:   "simulation",
			Message: fmt.Sprintf("decoding definition: %v", err),
			Pos:     simVal.Pos(),
		}
	}

	if err := Validate(def); err != nil {
		// Attach the CUE position so the diagnostic points at the source.
		var ce *CompileError
		if asCompileError(err, &ce) {
			ce.Pos = simVal.Pos()
			return nil, ce
		}
		return nil, err
	}

	return def, nil
}

// Validate field-validates a definition against its struct tags and the
// cross-field rules the tags cannot express. Returns a CompileError naming
// the first offending field.
func Validate(def *Definition) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(def); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok || len(verrs) == 0 {
			return &CompileError{Code: ErrCodeInvalid, Message: err.Error()}
		}
		fe := verrs[0]
		return &CompileError{
			Code:    ErrCodeInvalid,
			Field:   fieldPath(fe),
			Message: fmt.Sprintf("failed %q constraint (value %v)", fe.Tag(), fe.Value()),
		}
	}

	if len(def.Geometry.Extent) != def.Geometry.Dim {
		return &CompileError{
			Code:    ErrCodeInvalid,
			Field:   "geometry.extent",
			Message: fmt.Sprintf("extent has %d entries for a %dD mesh", len(def.Geometry.Extent), def.Geometry.Dim),
		}
	}
	if def.Electrodes != nil && def.Electrodes.OffTime <= def.Electrodes.OnTime {
		return &CompileError{
			Code:    ErrCodeInvalid,
			Field:   "electrodes.off_time",
			Message: "electrode off time must be after on time",
		}
	}
	return nil
}

// fieldPath renders a validator field reference as a lowercase dotted path,
// dropping the leading struct name.
func fieldPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	return strings.ToLower(path)
}

func asCompileError(err error, target **CompileError) bool {
	ce, ok := err.(*CompileError)
	if ok {
		*target = ce
	}
	return ok
}
