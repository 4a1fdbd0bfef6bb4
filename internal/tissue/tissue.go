package tissue

import (
	"fmt"

	"github.com/cardiolab/systole/internal/mesh"
)

// Tissue is the assembled spatial problem: one cell model per locally owned
// non-bath node, the bath node set, and the conductivity of the medium.
// It is exclusively owned by the orchestrator that assembled it.
type Tissue struct {
	mesh         *mesh.Mesh
	cells        map[int]CellModel
	aux          map[int]map[int]CellModel // node -> which -> model
	bath         map[int]struct{}
	conductivity float64
}

// Option configures tissue assembly.
type Option func(*assembly)

type assembly struct {
	conductivity float64
	bathNodes    []int
}

// WithConductivity sets the medium conductivity (mS/cm). Default 1.75.
func WithConductivity(sigma float64) Option {
	return func(a *assembly) { a.conductivity = sigma }
}

// WithBathNodes marks the given global node indices as bath: they carry no
// cell model and their cell-bound outputs are emitted as zero.
func WithBathNodes(nodes []int) Option {
	return func(a *assembly) { a.bathNodes = nodes }
}

// New assembles tissue over the local partition of m, consulting the factory
// once per local node per slot. Bath nodes are skipped.
func New(m *mesh.Mesh, f Factory, opts ...Option) (*Tissue, error) {
	if f == nil {
		return nil, fmt.Errorf("tissue: nil cell factory")
	}
	a := assembly{conductivity: 1.75}
	for _, opt := range opts {
		opt(&a)
	}
	if a.conductivity <= 0 {
		return nil, fmt.Errorf("tissue: conductivity %v must be positive", a.conductivity)
	}

	t := &Tissue{
		mesh:         m,
		cells:        make(map[int]CellModel, m.Hi()-m.Lo()),
		aux:          make(map[int]map[int]CellModel),
		bath:         make(map[int]struct{}, len(a.bathNodes)),
		conductivity: a.conductivity,
	}
	for _, n := range a.bathNodes {
		if n < 0 || n >= m.Nodes() {
			return nil, fmt.Errorf("tissue: bath node %d outside mesh of %d nodes", n, m.Nodes())
		}
		t.bath[n] = struct{}{}
	}

	for n := m.Lo(); n < m.Hi(); n++ {
		if _, isBath := t.bath[n]; isBath {
			continue
		}
		cell := f.CreateCell(n)
		if cell == nil {
			return nil, fmt.Errorf("tissue: factory returned no cell for node %d", n)
		}
		t.cells[n] = cell
		for which := 2; which <= 3; which++ {
			if ac := f.CreateAuxCell(n, which); ac != nil {
				if t.aux[n] == nil {
					t.aux[n] = make(map[int]CellModel, 2)
				}
				t.aux[n][which] = ac
			}
		}
	}
	return t, nil
}

// Mesh returns the mesh the tissue is assembled over.
func (t *Tissue) Mesh() *mesh.Mesh { return t.mesh }

// Conductivity returns the medium conductivity.
func (t *Tissue) Conductivity() float64 { return t.conductivity }

// Cell returns the primary cell model at a locally owned node, or nil for
// bath and non-local nodes.
func (t *Tissue) Cell(node int) CellModel {
	return t.cells[node]
}

// AuxCell returns the cell model selected by which: 1 is the primary model,
// 2 and 3 the auxiliaries. Nil when absent.
func (t *Tissue) AuxCell(node, which int) CellModel {
	if which <= 1 {
		return t.cells[node]
	}
	return t.aux[node][which]
}

// HasBath reports whether any node is a bath node.
func (t *Tissue) HasBath() bool { return len(t.bath) > 0 }

// IsBathNode reports whether the node belongs to the bath region.
func (t *Tissue) IsBathNode(node int) bool {
	_, ok := t.bath[node]
	return ok
}
