package problem

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cardiolab/systole/internal/field"
	"github.com/cardiolab/systole/internal/mesh"
	"github.com/cardiolab/systole/internal/parallel"
	"github.com/cardiolab/systole/internal/simdef"
	"github.com/cardiolab/systole/internal/solver"
	"github.com/cardiolab/systole/internal/tissue"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	Uninitialised State = iota
	Initialised
	Solving
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case Initialised:
		return "initialised"
	case Solving:
		return "solving"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// alignmentTol is the tolerance on interval-divisibility checks.
const alignmentTol = 1e-10

// Problem orchestrates one simulation run.
type Problem struct {
	def         *simdef.Definition
	cellFactory tissue.Factory
	variant     Variant

	group     parallel.Group
	logger    *slog.Logger
	ids       RunIDSource
	modifiers []Modifier
	overwrite bool

	onBeginTimestep func(t float64)
	onEndTimestep   func(t float64)

	msh          *mesh.Mesh
	meshInjected bool
	tis          *tissue.Tissue
	bc           *solver.BoundaryConditions

	state       State
	currentTime float64
	// solution is the retained solution of the last completed timestep; it
	// survives Solve so a follow-up Solve resumes from it in memory.
	solution *field.Vector

	runID   string
	defHash string

	extraVars []outputVariable

	wr *runWriter

	timer    *phaseTimer
	progress *progressReporter
}

// Option configures New.
type Option func(*Problem)

// WithGroup sets the process group. Default is the serial group.
func WithGroup(g parallel.Group) Option {
	return func(p *Problem) { p.group = g }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Problem) { p.logger = l }
}

// WithMesh injects a pre-built mesh, overriding the definition's geometry.
func WithMesh(m *mesh.Mesh) Option {
	return func(p *Problem) { p.msh = m; p.meshInjected = true }
}

// WithIDSource sets the run ID source. Default mints UUIDv7.
func WithIDSource(s RunIDSource) Option {
	return func(p *Problem) { p.ids = s }
}

// WithModifier registers an output modifier. Repeatable; registration
// order is execution order.
func WithModifier(m Modifier) Option {
	return func(p *Problem) { p.modifiers = append(p.modifiers, m) }
}

// WithOverwrite lets a fresh run replace an existing output file.
func WithOverwrite() Option {
	return func(p *Problem) { p.overwrite = true }
}

// WithOnBeginTimestep installs a hook called before each solver window.
func WithOnBeginTimestep(fn func(t float64)) Option {
	return func(p *Problem) { p.onBeginTimestep = fn }
}

// WithOnEndTimestep installs a hook called after each completed timestep.
func WithOnEndTimestep(fn func(t float64)) Option {
	return func(p *Problem) { p.onEndTimestep = fn }
}

// New builds a problem around a compiled definition, a cell factory and a
// formulation variant.
func New(def *simdef.Definition, f tissue.Factory, v Variant, opts ...Option) (*Problem, error) {
	if def == nil {
		return nil, fmt.Errorf("problem: nil definition")
	}
	if f == nil {
		return nil, simdef.NewConfigError(simdef.CfgMissingCellFactory, "factory",
			"no cell factory supplied")
	}
	if v == nil {
		return nil, fmt.Errorf("problem: nil variant")
	}
	p := &Problem{
		def:         def,
		cellFactory: f,
		variant:     v,
		group:       parallel.Serial(),
		logger:      slog.Default(),
		ids:         UUIDSource{},
		timer:       newPhaseTimer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// State returns the lifecycle state.
func (p *Problem) State() State { return p.state }

// CurrentTime returns the time of the last completed timestep.
func (p *Problem) CurrentTime() float64 { return p.currentTime }

// Mesh returns the mesh, nil before Initialise.
func (p *Problem) Mesh() *mesh.Mesh { return p.msh }

// Tissue returns the assembled tissue, nil before Initialise.
func (p *Problem) Tissue() *tissue.Tissue { return p.tis }

// Solution returns the retained solution vector, nil before the first
// completed timestep.
func (p *Problem) Solution() *field.Vector { return p.solution }

// RunID returns the identity minted at Initialise.
func (p *Problem) RunID() string { return p.runID }

// Definition returns the definition the problem was built from. Callers
// may adjust its durations between solves; structural fields are read at
// Initialise and must not change after it.
func (p *Problem) Definition() *simdef.Definition { return p.def }

// Initialise builds the mesh (unless one was injected), assembles tissue,
// zeroes the current time and mints the run identity. Calling it again
// rebuilds the run from scratch; the previous retained solution is
// released.
func (p *Problem) Initialise() error {
	p.timer.Reset()
	p.timer.Begin(phaseAssemble)
	defer p.timer.End(phaseAssemble)

	if !p.meshInjected {
		m, err := mesh.FromDefinition(p.group, p.def)
		if err != nil {
			return err
		}
		p.msh = m
	}

	if p.solution != nil {
		if err := p.msh.Factory().Release(p.solution); err != nil {
			p.logger.Warn("stale solution release failed", "error", err)
		}
		p.solution = nil
	}

	tis, err := p.variant.AssembleTissue(p.msh, p.cellFactory)
	if err != nil {
		return fmt.Errorf("assemble tissue: %w", err)
	}
	p.tis = tis
	p.bc = nil
	p.currentTime = 0

	id, err := p.ids.RunID()
	if err != nil {
		return err
	}
	p.runID = id

	hash, err := simdef.CanonicalHash(p.def)
	if err != nil {
		return fmt.Errorf("hash definition: %w", err)
	}
	p.defHash = hash

	vars, err := parseOutputVariables(p.def.Output.Variables, p.variant.Dim())
	if err != nil {
		return err
	}
	p.extraVars = vars

	p.state = Initialised
	p.logger.Info("problem initialised",
		"variant", p.variant.Name(),
		"run_id", p.runID,
		"nodes", p.msh.Nodes(),
		"dim", p.msh.Dim())
	return nil
}

// PreSolveChecks validates the run configuration eagerly, before any
// allocation or file work.
func (p *Problem) PreSolveChecks() error {
	if p.state == Uninitialised || p.tis == nil {
		return simdef.NewConfigError(simdef.CfgNotInitialised, "",
			"Solve called before Initialise")
	}

	end := p.def.Durations.End
	if end <= p.currentTime {
		return simdef.NewConfigError(simdef.CfgEndNotFuture, "durations.end",
			fmt.Sprintf("end time %v is not after current time %v", end, p.currentTime))
	}

	pde := p.def.Durations.PrintingStep
	ode := p.def.Durations.SolverStep
	if pde <= 0 {
		return simdef.NewConfigError(simdef.CfgIntervalNotPositive, "durations.printing_step",
			fmt.Sprintf("printing step %v must be positive", pde))
	}
	if ode <= 0 {
		return simdef.NewConfigError(simdef.CfgIntervalNotPositive, "durations.solver_step",
			fmt.Sprintf("solver step %v must be positive", ode))
	}

	remaining := end - p.currentTime
	if math.Abs(remaining-pde*math.Round(remaining/pde)) > alignmentTol {
		return simdef.NewConfigError(simdef.CfgIntervalMisaligned, "durations.printing_step",
			fmt.Sprintf("printing step %v does not divide the remaining duration %v", pde, remaining))
	}
	if math.Abs(pde-ode*math.Round(pde/ode)) > alignmentTol {
		return simdef.NewConfigError(simdef.CfgIntervalMisaligned, "durations.solver_step",
			fmt.Sprintf("solver step %v does not divide the printing step %v", ode, pde))
	}

	if p.def.OutputRequested() {
		if p.def.Output.Dir == "" || p.def.Output.Prefix == "" {
			return simdef.NewConfigError(simdef.CfgOutputPathEmpty, "output",
				"output requested but directory or prefix is empty")
		}
	}
	for _, n := range p.def.Output.NodeSubset {
		if n < 0 || n >= p.msh.Nodes() {
			return simdef.NewConfigError(simdef.CfgNodeSubsetRange, "output.node_subset",
				fmt.Sprintf("node %d outside mesh of %d nodes", n, p.msh.Nodes()))
		}
	}
	return nil
}

// CreateInitialCondition allocates the starting vector: stripe 0 holds
// each local cell's resting voltage, bath nodes and higher stripes stay
// zero. The caller owns the vector through the factory ledger.
func (p *Problem) CreateInitialCondition() *field.Vector {
	v := p.msh.Factory().NewVector(p.variant.Dim())
	for n := p.msh.Lo(); n < p.msh.Hi(); n++ {
		if cell := p.tis.Cell(n); cell != nil {
			v.Set(n, 0, cell.Voltage())
		}
	}
	return v
}
