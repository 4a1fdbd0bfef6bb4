package problem

import (
	"github.com/cardiolab/systole/internal/mesh"
	"github.com/cardiolab/systole/internal/parallel"
	"github.com/cardiolab/systole/internal/simdef"
	"github.com/cardiolab/systole/internal/solver"
	"github.com/cardiolab/systole/internal/tissue"
)

// Variant is the capability interface a problem formulation implements:
// how many unknowns it stacks per node, how it assembles tissue, which
// solver it runs, and which times the stepper must land on exactly.
type Variant interface {
	Name() string
	// Dim is the number of stacked unknowns per node.
	Dim() int
	AssembleTissue(m *mesh.Mesh, f tissue.Factory) (*tissue.Tissue, error)
	NewSolver(t *tissue.Tissue, bc *solver.BoundaryConditions, g parallel.Group) (solver.Solver, error)
	// ExtraStoppingTimes returns times the printing grid must include
	// exactly (protocol switching instants and the like).
	ExtraStoppingTimes(def *simdef.Definition) []float64
	HasBath() bool
}

// Monodomain is the single-unknown formulation: transmembrane voltage only.
type Monodomain struct {
	def *simdef.Definition
}

// NewMonodomainVariant builds the monodomain variant for a definition.
func NewMonodomainVariant(def *simdef.Definition) *Monodomain {
	return &Monodomain{def: def}
}

func (v *Monodomain) Name() string { return "monodomain" }

func (v *Monodomain) Dim() int { return 1 }

func (v *Monodomain) HasBath() bool { return false }

func (v *Monodomain) AssembleTissue(m *mesh.Mesh, f tissue.Factory) (*tissue.Tissue, error) {
	return tissue.New(m, f, tissue.WithConductivity(v.def.Conductivity))
}

func (v *Monodomain) NewSolver(t *tissue.Tissue, bc *solver.BoundaryConditions, g parallel.Group) (solver.Solver, error) {
	return solver.NewMonodomain(t, bc, g)
}

func (v *Monodomain) ExtraStoppingTimes(*simdef.Definition) []float64 { return nil }

// BidomainWithBath stacks extracellular potential on top of voltage and
// carves a bath region out of the tissue. When the definition has an
// electrode protocol, its switching instants become mandatory stopping
// times of the run.
type BidomainWithBath struct {
	def *simdef.Definition
}

// NewBidomainVariant builds the bidomain-with-bath variant for a definition.
func NewBidomainVariant(def *simdef.Definition) *BidomainWithBath {
	return &BidomainWithBath{def: def}
}

func (v *BidomainWithBath) Name() string { return "bidomain_with_bath" }

func (v *BidomainWithBath) Dim() int { return 2 }

func (v *BidomainWithBath) HasBath() bool { return v.def.Bath != nil }

func (v *BidomainWithBath) AssembleTissue(m *mesh.Mesh, f tissue.Factory) (*tissue.Tissue, error) {
	opts := []tissue.Option{tissue.WithConductivity(v.def.Conductivity)}
	if v.def.Bath != nil {
		var bath []int
		for n := 0; n < m.Nodes(); n++ {
			if v.def.Bath.Contains(m.NodeCoords(n)) {
				bath = append(bath, n)
			}
		}
		opts = append(opts, tissue.WithBathNodes(bath))
	}
	return tissue.New(m, f, opts...)
}

func (v *BidomainWithBath) NewSolver(t *tissue.Tissue, bc *solver.BoundaryConditions, g parallel.Group) (solver.Solver, error) {
	var on, off, magnitude float64
	if e := v.def.Electrodes; e != nil {
		on, off, magnitude = e.OnTime, e.OffTime, e.Magnitude
	}
	return solver.NewBidomain(t, bc, g, on, off, magnitude)
}

func (v *BidomainWithBath) ExtraStoppingTimes(def *simdef.Definition) []float64 {
	if def.Electrodes == nil {
		return nil
	}
	return []float64{def.Electrodes.OnTime, def.Electrodes.OffTime}
}
