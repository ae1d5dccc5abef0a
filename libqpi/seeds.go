package libqpi

import (
	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
)

// Ring returns the n-cycle 0-1-...-(n-1)-0 with node k at phase k×unit, Z for even k and X for odd k.
func Ring(n int, unit qpi.PhaseUnit) (*qpi.Graph, error) {
	Xb, err := ringBuilder(n, unit)
	if err != nil {
		return nil, err
	}
	return Xb.Build()
}

// RingWithChord is Ring plus the cross edge 0-(n/2).  n must be at least 4.
func RingWithChord(n int, unit qpi.PhaseUnit) (*qpi.Graph, error) {
	if n < 4 {
		return nil, errors.Wrapf(qpi.ErrDomain, "ring with chord needs 4 or more nodes, got %d", n)
	}
	Xb, err := ringBuilder(n, unit)
	if err != nil {
		return nil, err
	}
	return Xb.AddEdge(0, qpi.NodeID(n/2)).Build()
}

func ringBuilder(n int, unit qpi.PhaseUnit) (*qpi.Builder, error) {
	if n < 3 {
		return nil, errors.Wrapf(qpi.ErrDomain, "ring needs 3 or more nodes, got %d", n)
	}
	Xb := qpi.NewBuilder(unit)
	for k := 0; k < n; k++ {
		kind := qpi.KindZ
		if k&1 != 0 {
			kind = qpi.KindX
		}
		Xb.AddNode(kind, int64(k))
	}
	for k := 0; k < n; k++ {
		Xb.AddEdge(qpi.NodeID(k), qpi.NodeID((k+1)%n))
	}
	return Xb, nil
}
