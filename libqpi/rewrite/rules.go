// Package rewrite models local graph rewrites, estimates the coherence change each would produce, and orders
// candidate rewrites for application.
package rewrite

import (
	"fmt"
	"math"

	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
)

// Weights scales the terms of the ΔC estimators.  All default to 1, reproducing the unweighted estimators;
// none is derived from first principles, so they are configuration.
type Weights struct {
	FusionAlignment      float64 `yaml:"fusion_alignment"`
	FusionConnectivity   float64 `yaml:"fusion_connectivity"`
	FusionSimplification float64 `yaml:"fusion_simplification"`
	ColorFlip            float64 `yaml:"color_flip"`
}

func DefaultWeights() Weights {
	return Weights{
		FusionAlignment:      1,
		FusionConnectivity:   1,
		FusionSimplification: 1,
		ColorFlip:            1,
	}
}

// Validate checks every weight is finite.  Negative weights are allowed: they invert a term's preference.
func (w Weights) Validate() error {
	for _, x := range [...]float64{w.FusionAlignment, w.FusionConnectivity, w.FusionSimplification, w.ColorFlip} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return errors.Wrapf(qpi.ErrBadConfig, "rewrite weight %v", x)
		}
	}
	return nil
}

// Site is the subgraph a rewrite acts on.
type Site struct {
	Nodes []qpi.NodeID
	Edges []qpi.Edge
}

func (site Site) String() string {
	return fmt.Sprintf("nodes %v edges %v", site.Nodes, site.Edges)
}

// RuleKind names a rewrite variant
type RuleKind int

const (
	RuleFusion RuleKind = iota + 1
	RuleColorFlip
)

func (k RuleKind) String() string {
	switch k {
	case RuleFusion:
		return "fusion"
	case RuleColorFlip:
		return "color-flip"
	}
	return fmt.Sprintf("RuleKind(%d)", int(k))
}

// Rewrite is a closed sum type: Fusion or ColorFlip.  Each variant carries its own precondition check, ΔC
// estimator, and application, so a new rule is added by adding a type that implements this interface.
type Rewrite interface {
	Kind() RuleKind
	Site() Site
	String() string

	check(X *qpi.Graph) error
	estimate(X *qpi.Graph, w Weights) float64
	apply(X *qpi.Graph) (*qpi.Graph, error)
}

// Fusion merges two spiders joined by at least one edge.
type Fusion struct {
	At Site
}

// ColorFlip swaps the color of every node of a non-empty site.
type ColorFlip struct {
	At Site
}

func (r Fusion) Kind() RuleKind    { return RuleFusion }
func (r Fusion) Site() Site        { return r.At }
func (r ColorFlip) Kind() RuleKind { return RuleColorFlip }
func (r ColorFlip) Site() Site     { return r.At }

func (r Fusion) String() string    { return fmt.Sprintf("fusion %v", r.At.Nodes) }
func (r ColorFlip) String() string { return fmt.Sprintf("color-flip %v", r.At.Nodes) }

// Check verifies r's precondition against X, which must be validated.  Failures wrap qpi.ErrPrecondition.
func Check(X *qpi.Graph, r Rewrite) error {
	return r.check(X)
}

// EstimateDelta checks r's precondition and returns its predicted coherence change.
func EstimateDelta(X *qpi.Graph, r Rewrite, w Weights) (float64, error) {
	if err := r.check(X); err != nil {
		return 0, err
	}
	return r.estimate(X, w), nil
}

// CheckSite checks a fusion site on its own: exactly two distinct nodes and at least one edge, every edge
// joining those two nodes.
func (r Fusion) CheckSite() error {
	nodes := r.At.Nodes
	if len(nodes) != 2 || nodes[0] == nodes[1] {
		return errors.Wrapf(qpi.ErrSiteSize, "fusion needs 2 distinct nodes, got %v", nodes)
	}
	if len(r.At.Edges) < 1 {
		return errors.Wrapf(qpi.ErrSiteEdges, "fusion site %v has no edge", nodes)
	}
	for _, e := range r.At.Edges {
		if !e.Joins(nodes[0], nodes[1]) {
			return errors.Wrapf(qpi.ErrSiteEdges, "edge %v does not join %v", e, nodes)
		}
	}
	return nil
}

func (r Fusion) check(X *qpi.Graph) error {
	if err := r.CheckSite(); err != nil {
		return err
	}
	a, b := r.At.Nodes[0], r.At.Nodes[1]
	for _, v := range r.At.Nodes {
		if !X.HasNode(v) {
			return errors.Wrapf(qpi.ErrSiteNotInGraph, "node %d", v)
		}
	}
	if have := X.EdgeMultiplicity(a, b); have < len(r.At.Edges) {
		return errors.Wrapf(qpi.ErrSiteNotInGraph, "site lists %d edges between %d and %d, graph has %d",
			len(r.At.Edges), a, b, have)
	}
	return nil
}

// estimate combines phase alignment cos|φ1 - φ2|, connectivity gain log(1+d1+d2) - log(1+d1) - log(1+d2),
// and phase simplification 1/gcd(q1, q2) - 1/q1 - 1/q2 over the phase denominators q1 and q2.
func (r Fusion) estimate(X *qpi.Graph, w Weights) float64 {
	a, b := r.At.Nodes[0], r.At.Nodes[1]
	pa, pb := X.Labels[a].Phase, X.Labels[b].Phase
	da, db := float64(X.Degree(a)), float64(X.Degree(b))

	alignment := math.Cos(math.Abs(pa.Radians() - pb.Radians()))
	connectivity := math.Log1p(da+db) - math.Log1p(da) - math.Log1p(db)

	g := float64(qpi.GCD(pa.Den, pb.Den))
	simplification := 1/g - 1/float64(pa.Den) - 1/float64(pb.Den)

	return w.FusionAlignment*alignment + w.FusionConnectivity*connectivity + w.FusionSimplification*simplification
}

// CheckSite checks a color-flip site on its own: at least one node, no duplicates.
func (r ColorFlip) CheckSite() error {
	if len(r.At.Nodes) == 0 {
		return errors.Wrap(qpi.ErrSiteSize, "color-flip site is empty")
	}
	seen := make(map[qpi.NodeID]struct{}, len(r.At.Nodes))
	for _, v := range r.At.Nodes {
		if _, dup := seen[v]; dup {
			return errors.Wrapf(qpi.ErrSiteSize, "color-flip site repeats node %d", v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func (r ColorFlip) check(X *qpi.Graph) error {
	if err := r.CheckSite(); err != nil {
		return err
	}
	for _, v := range r.At.Nodes {
		if !X.HasNode(v) {
			return errors.Wrapf(qpi.ErrSiteNotInGraph, "node %d", v)
		}
	}
	return nil
}

// estimate sums, over the site, sign(kind) × cos(2φ) × log(1+deg) with Z = +1 and X = -1.
func (r ColorFlip) estimate(X *qpi.Graph, w Weights) float64 {
	total := 0.0
	for _, v := range r.At.Nodes {
		lbl := X.Labels[v]
		sign := 1.0
		if lbl.Kind == qpi.KindX {
			sign = -1.0
		}
		stability := math.Cos(2 * lbl.Phase.Radians())
		total += sign * stability * math.Log1p(float64(X.Degree(v)))
	}
	return w.ColorFlip * total
}
