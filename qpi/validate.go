package qpi

import (
	"sort"

	"github.com/pkg/errors"
)

// Validate checks every graph and label invariant and returns X itself on success.
//
// Violations are reported as structural errors naming the offending node or edge; nothing is repaired.
// Components downstream of Validate assume its invariants and never re-check them.
func Validate(X *Graph) (*Graph, error) {
	if X == nil {
		return nil, ErrNilGraph
	}

	nodes := make(map[NodeID]struct{}, len(X.Nodes))
	for _, v := range X.Nodes {
		if _, dup := nodes[v]; dup {
			return nil, errors.Wrapf(ErrDuplicateNode, "node %d", v)
		}
		nodes[v] = struct{}{}
	}

	for _, e := range X.Edges {
		if e.A == e.B {
			return nil, errors.Wrapf(ErrSelfLoop, "edge %v", e)
		}
		for _, end := range [2]NodeID{e.A, e.B} {
			if _, ok := nodes[end]; !ok {
				return nil, errors.Wrapf(ErrDanglingEdge, "edge %v endpoint %d", e, end)
			}
		}
	}

	for _, v := range X.Nodes {
		lbl, ok := X.Labels[v]
		if !ok {
			return nil, errors.Wrapf(ErrMissingLabel, "node %d", v)
		}
		if !lbl.Kind.IsValid() {
			return nil, errors.Wrapf(ErrBadKind, "node %d kind %d", v, uint8(lbl.Kind))
		}
		canon, err := Canonicalize(lbl.Phase.Num, lbl.Phase.Den)
		if err != nil {
			return nil, errors.Wrapf(ErrNonCanonicalPhase, "node %d phase %d/%d: %v", v, lbl.Phase.Num, lbl.Phase.Den, err)
		}
		if canon != lbl.Phase {
			return nil, errors.Wrapf(ErrNonCanonicalPhase, "node %d phase %d/%d (canonical %d/%d)",
				v, lbl.Phase.Num, lbl.Phase.Den, canon.Num, canon.Den)
		}
	}

	if len(X.Labels) > len(nodes) {
		var orphans []NodeID
		for v := range X.Labels {
			if _, ok := nodes[v]; !ok {
				orphans = append(orphans, v)
			}
		}
		sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
		return nil, errors.Wrapf(ErrOrphanLabel, "node %d", orphans[0])
	}

	return X, nil
}

// BinIndex returns the bin of p among numBins equal-width bins over [0, 2π).
//
// p must be canonical, and numBins must be a multiple of 2*p.Den so that p falls exactly on a bin boundary.
func BinIndex(p Phase, numBins int) (int, error) {
	if p.Den <= 0 {
		return 0, errors.Wrapf(ErrNonPositiveDenominator, "phase %d/%d", p.Num, p.Den)
	}
	if !p.IsCanonical() {
		return 0, errors.Wrapf(ErrUnreducedPhase, "phase %d/%d", p.Num, p.Den)
	}
	if numBins <= 0 {
		return 0, errors.Wrapf(ErrBinCount, "bin count %d", numBins)
	}
	span := 2 * p.Den
	if int64(numBins)%span != 0 {
		return 0, errors.Wrapf(ErrBinCount, "bin count %d is not a multiple of %d for phase %v", numBins, span, p)
	}
	return int(p.Num * (int64(numBins) / span)), nil
}

// MinimalBins returns 2*L where L is the lcm of X's phase denominators (1 for a graph with no nodes).
// A bin count is valid for X iff it is a positive multiple of MinimalBins(X).
func MinimalBins(X *Graph) (int64, error) {
	dens := X.Denominators()
	if len(dens) == 0 {
		return 2, nil
	}
	L, err := LCMMany(dens)
	if err != nil {
		return 0, err
	}
	return mulChecked(2, L)
}

// CheckBins returns nil if numBins is a valid bin count for X.
func CheckBins(X *Graph, numBins int) error {
	need, err := MinimalBins(X)
	if err != nil {
		return err
	}
	if numBins <= 0 || int64(numBins)%need != 0 {
		return errors.Wrapf(ErrBinCount, "bin count %d is not a multiple of %d", numBins, need)
	}
	return nil
}
