package tissue

import (
	"github.com/cardiolab/systole/internal/mesh"
	"github.com/cardiolab/systole/internal/simdef"
)

// Factory produces the cell model bound to each mesh node. Assembly consults
// it exactly once per local node per slot.
type Factory interface {
	// CreateCell returns the primary cell model for a global node index.
	CreateCell(node int) CellModel

	// CreateAuxCell returns an auxiliary cell model for the node. which is
	// 2 or 3; nil means the node carries no such model. Auxiliary models
	// serve output variables with an "__IDX__" suffix.
	CreateAuxCell(node, which int) CellModel
}

// DefFactory builds cells from a simulation definition: nodes inside the
// definition's stimulus region receive the stimulus protocol, all others
// rest unstimulated.
type DefFactory struct {
	mesh *mesh.Mesh
	def  *simdef.Definition
}

// NewDefFactory creates a definition-driven cell factory over m.
func NewDefFactory(m *mesh.Mesh, def *simdef.Definition) *DefFactory {
	return &DefFactory{mesh: m, def: def}
}

// CreateCell returns an FHN cell, stimulated when the node lies inside the
// definition's stimulus region.
func (f *DefFactory) CreateCell(node int) CellModel {
	var stim Stimulus
	if f.def.Stimulus.Region.Contains(f.mesh.NodeCoords(node)) {
		stim = Stimulus{
			Start:     f.def.Stimulus.Start,
			Duration:  f.def.Stimulus.Duration,
			Amplitude: f.def.Stimulus.Amplitude,
		}
	}
	return NewFHNCell(stim)
}

// CreateAuxCell returns nil: the definition-driven factory carries no
// auxiliary models.
func (f *DefFactory) CreateAuxCell(node, which int) CellModel {
	return nil
}
