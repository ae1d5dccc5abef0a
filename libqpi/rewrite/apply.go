package rewrite

import (
	"github.com/2x3systems/goqpi/qpi"
)

// Apply checks r against X and returns the rewritten graph, validated.  X is not modified.
func Apply(X *qpi.Graph, r Rewrite) (*qpi.Graph, error) {
	if err := r.check(X); err != nil {
		return nil, err
	}
	Xnext, err := r.apply(X)
	if err != nil {
		return nil, err
	}
	return qpi.Validate(Xnext)
}

// apply merges the higher-id node into the lower-id one.  The survivor keeps its kind and identity and takes
// the exact phase sum; every edge between the two is removed and the absorbed node's other edges move to the
// survivor (edges to shared neighbors become parallel edges).
func (r Fusion) apply(X *qpi.Graph) (*qpi.Graph, error) {
	keep, drop := r.At.Nodes[0], r.At.Nodes[1]
	if drop < keep {
		keep, drop = drop, keep
	}

	lbl := X.Labels[keep]
	sum, err := qpi.Add(lbl.Phase, X.Labels[drop].Phase)
	if err != nil {
		return nil, err
	}
	lbl.Phase = sum

	Xnext := &qpi.Graph{
		Nodes:  make([]qpi.NodeID, 0, len(X.Nodes)-1),
		Edges:  make([]qpi.Edge, 0, len(X.Edges)),
		Labels: make(map[qpi.NodeID]qpi.NodeLabel, len(X.Labels)-1),
		Unit:   X.Unit,
	}
	for _, v := range X.Nodes {
		if v != drop {
			Xnext.Nodes = append(Xnext.Nodes, v)
			Xnext.Labels[v] = X.Labels[v]
		}
	}
	Xnext.Labels[keep] = lbl

	for _, e := range X.Edges {
		if e.Joins(keep, drop) {
			continue
		}
		if e.A == drop {
			e.A = keep
		}
		if e.B == drop {
			e.B = keep
		}
		Xnext.Edges = append(Xnext.Edges, e)
	}
	return Xnext, nil
}

func (r ColorFlip) apply(X *qpi.Graph) (*qpi.Graph, error) {
	Xnext := X.Clone()
	for _, v := range r.At.Nodes {
		lbl := Xnext.Labels[v]
		lbl.Kind = lbl.Kind.Flip()
		Xnext.Labels[v] = lbl
	}
	return Xnext, nil
}
