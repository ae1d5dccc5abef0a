// Package coherence computes the coherence score C(G) of a validated graph.
//
//	C(G) = Weights.Cycle × Σ_cycles (winding + harmony)  +  Weights.Node × Σ_nodes log(1+deg) × (1 + align) / 2
//
// where, for each cycle of a fundamental cycle basis,
//
//	winding = 1 / (1 + |Σ δ|)        Σ δ wrapped into (-π, π]
//	harmony = 1 / (1 + Var(δ))       population variance of the per-edge offsets
//
// and align is the mean of cos δ over a node's incident edges.  δ is the wrapped phase difference across an edge.
//
// Node phases are single-valued, so the offsets around any closed walk sum to a multiple of 2π and wrap to 0:
// winding is exactly 1 for every cycle, and the cycle term of a graph is its cycle count plus its total harmony.
//
// Every phase difference is computed exactly in rational arithmetic before it is converted to a float, and
// cycles, nodes, and neighbors are walked in canonical order, so C(G) is bit-identical under any relabeling of
// node ids and under any global phase shift.
package coherence

import (
	"math"
	"math/big"

	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
)

// GaugeTolerance bounds |C(shift(G, s)) - C(G)|.  The evaluator is exact under shifts, so this is a contract
// bound rather than an observed error.
const GaugeTolerance = 1e-12

// Weights scales the two terms of C(G).
type Weights struct {

	// Cycle weights the cycle term.  Default 1: the cycle and node terms enter the score as a plain sum.
	Cycle float64 `yaml:"cycle"`

	// Node weights the node term.  Default 1 for the same reason.
	Node float64 `yaml:"node"`
}

// DefaultWeights returns the unit weights of the plain sum C = cycle + node.
func DefaultWeights() Weights {
	return Weights{
		Cycle: 1,
		Node:  1,
	}
}

// Validate checks that both weights are finite and non-negative, so C(G) stays in ℝ≥0.
func (w Weights) Validate() error {
	for _, x := range [...]float64{w.Cycle, w.Node} {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return errors.Wrapf(qpi.ErrBadConfig, "coherence weight %v", x)
		}
	}
	return nil
}

// CycleTerm is the contribution of one fundamental cycle.
type CycleTerm struct {
	Nodes   Cycle
	Winding float64
	Harmony float64
}

// Report itemizes a coherence evaluation.
type Report struct {
	Cycles    []CycleTerm
	CycleTerm float64 // unweighted Σ (winding + harmony)
	NodeTerm  float64 // unweighted Σ node contributions
	Total     float64 // C(G)
}

// Coherence returns C(X) with the default weights.
func Coherence(X *qpi.Graph) (float64, error) {
	report, err := Evaluate(X, DefaultWeights())
	if err != nil {
		return 0, err
	}
	return report.Total, nil
}

// Evaluate computes C(X) and its itemization.  X must be validated.
func Evaluate(X *qpi.Graph, w Weights) (Report, error) {
	var report Report

	if err := w.Validate(); err != nil {
		return report, err
	}

	L, err := newLayout(X)
	if err != nil {
		return report, err
	}

	for _, cyc := range L.fundamentalCycles() {
		term := L.cycleTerm(cyc)
		report.Cycles = append(report.Cycles, term)
		report.CycleTerm += term.Winding + term.Harmony
	}

	for p := range L.ids {
		report.NodeTerm += L.nodeTerm(p)
	}

	report.Total = w.Cycle*report.CycleTerm + w.Node*report.NodeTerm
	return report, nil
}

func (L *layout) cycleTerm(cyc []int) CycleTerm {
	k := len(cyc)
	deltas := make([]*big.Rat, k)
	sum := new(big.Rat)
	for i, from := range cyc {
		to := cyc[(i+1)%k]
		deltas[i] = L.arcDelta(from, to).Rat()
		sum.Add(sum, deltas[i])
	}

	winding := qpi.WrapRat(sum)
	windingRad, _ := winding.Abs(winding).Float64()
	windingRad *= math.Pi

	mean := new(big.Rat).Quo(sum, big.NewRat(int64(k), 1))
	variance := new(big.Rat)
	dev := new(big.Rat)
	for _, d := range deltas {
		dev.Sub(d, mean)
		dev.Mul(dev, dev)
		variance.Add(variance, dev)
	}
	variance.Quo(variance, big.NewRat(int64(k), 1))
	varianceRad, _ := variance.Float64()
	varianceRad *= math.Pi * math.Pi

	nodes := make(Cycle, k)
	for i, p := range cyc {
		nodes[i] = L.ids[p]
	}

	return CycleTerm{
		Nodes:   nodes.Rotated(),
		Winding: 1 / (1 + windingRad),
		Harmony: 1 / (1 + varianceRad),
	}
}

func (L *layout) nodeTerm(p int) float64 {
	arcs := L.adj[p]
	deg := len(arcs)
	if deg == 0 {
		return 0
	}
	align := 0.0
	for _, a := range arcs {
		align += math.Cos(a.delta.Radians())
	}
	align /= float64(deg)
	return math.Log1p(float64(deg)) * (1 + align) / 2
}
