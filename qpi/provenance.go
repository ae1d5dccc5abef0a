package qpi

import (
	"fmt"

	"github.com/pkg/errors"
)

// Derivation ids of the phase units this package knows how to produce.
const (
	DerivationZXBialgebra = "THM-PHASE-UNIT-ZX-BIALGEBRA-001"
	DerivationQPiLCM      = "THM-PHASE-QPI-LCM-001"
)

// Provenance records where a derived value came from.
type Provenance struct {
	Origin       string
	DerivationID string
}

func (p Provenance) String() string {
	return fmt.Sprintf("%s [%s]", p.Origin, p.DerivationID)
}

// PhaseUnit is the minimal positive phase step used to build initial graphs, bound to its provenance.
// It is always passed explicitly; there is no package-level "current" unit.
type PhaseUnit struct {
	Phase      Phase
	Provenance Provenance
}

// DefaultPhaseUnit returns π/4, the Clifford+T step implied by the ZX bialgebra rule.
func DefaultPhaseUnit() PhaseUnit {
	return PhaseUnit{
		Phase: Phase{1, 4},
		Provenance: Provenance{
			Origin:       "zx-bialgebra",
			DerivationID: DerivationZXBialgebra,
		},
	}
}

// NewPhaseUnit binds an externally derived unit to its provenance.
func NewPhaseUnit(p Phase, prov Provenance) (PhaseUnit, error) {
	if !p.IsCanonical() || p.Num == 0 {
		return PhaseUnit{}, errors.Wrapf(ErrDomain, "phase unit %d/%d must be a canonical non-zero phase", p.Num, p.Den)
	}
	return PhaseUnit{p, prov}, nil
}

// DerivePhaseUnit returns the unit 1/lcm(dens) × π, the coarsest step that expresses every phase with a
// denominator in dens.
func DerivePhaseUnit(dens []int64) (PhaseUnit, error) {
	L, err := LCMMany(dens)
	if err != nil {
		return PhaseUnit{}, err
	}
	p, err := Canonicalize(1, L)
	if err != nil {
		return PhaseUnit{}, err
	}
	return PhaseUnit{
		Phase: p,
		Provenance: Provenance{
			Origin:       fmt.Sprintf("qpi-lcm%v", dens),
			DerivationID: DerivationQPiLCM,
		},
	}, nil
}

// Steps returns k × unit.
func (u PhaseUnit) Steps(k int64) (Phase, error) {
	// k×unit depends only on k mod 2*Den
	m := 2 * u.Phase.Den
	k %= m
	if k < 0 {
		k += m
	}
	n, err := mulChecked(k, u.Phase.Num)
	if err != nil {
		return Phase{}, err
	}
	return Canonicalize(n, u.Phase.Den)
}

// Builder assembles a Graph from phase-unit multiples.
type Builder struct {
	unit   PhaseUnit
	X      Graph
	nextID NodeID
	err    error
}

func NewBuilder(unit PhaseUnit) *Builder {
	return &Builder{
		unit: unit,
		X: Graph{
			Labels: make(map[NodeID]NodeLabel),
		},
	}
}

// AddNode appends a node of the given kind at phase steps × unit and returns its id.
func (Xb *Builder) AddNode(kind Kind, steps int64) NodeID {
	id := Xb.nextID
	Xb.nextID++
	p, err := Xb.unit.Steps(steps)
	if err != nil && Xb.err == nil {
		Xb.err = err
	}
	Xb.X.Nodes = append(Xb.X.Nodes, id)
	Xb.X.Labels[id] = NodeLabel{
		Kind:     kind,
		Phase:    p,
		Identity: fmt.Sprintf("n%d", id),
	}
	return id
}

// AddEdge joins a and b.
func (Xb *Builder) AddEdge(a, b NodeID) *Builder {
	Xb.X.Edges = append(Xb.X.Edges, Edge{a, b})
	return Xb
}

// Build validates and returns the assembled Graph.  The Builder must not be used afterwards.
func (Xb *Builder) Build() (*Graph, error) {
	if Xb.err != nil {
		return nil, Xb.err
	}
	unit := Xb.unit
	Xb.X.Unit = &unit
	return Validate(&Xb.X)
}
