package problem

import (
	"fmt"
	"strconv"
	"strings"
)

// idxSeparator splits an output variable name from its cell-model selector.
// "W__IDX__2" asks for variable W of the second per-node cell model.
const idxSeparator = "__IDX__"

// outputVariable is one parsed extra output column.
type outputVariable struct {
	// column is the full column name as the definition spells it.
	column string
	// name is the bare variable name the cell model resolves.
	name string
	// which selects the per-node cell model, 1 to 3; 1 is the primary.
	which int
}

// parseOutputVariables parses the definition's output variable names.
// Names carrying the built-in columns ("V", and "Phi_e" for two-unknown
// problems) are dropped: those are always written.
func parseOutputVariables(names []string, dim int) ([]outputVariable, error) {
	var vars []outputVariable
	for _, full := range names {
		if full == "V" || (dim == 2 && full == "Phi_e") {
			continue
		}
		name, which := full, 1
		if i := strings.Index(full, idxSeparator); i >= 0 {
			name = full[:i]
			k, err := strconv.Atoi(full[i+len(idxSeparator):])
			if err != nil || k < 1 || k > 3 {
				return nil, fmt.Errorf("output variable %q: selector must be 1 to 3", full)
			}
			which = k
		}
		if name == "" {
			return nil, fmt.Errorf("output variable %q: empty name", full)
		}
		vars = append(vars, outputVariable{column: full, name: name, which: which})
	}
	return vars, nil
}
