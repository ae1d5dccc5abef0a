// Package resonance derives Omega phase-histogram signatures and scores graphs against them.
package resonance

import (
	"math"

	"github.com/2x3systems/goqpi/libqpi/coherence"
	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
)

// Omega is a reference signature: the normalized histogram of node phases over Bins equal-width bins of
// [0, 2π), plus the cycle basis of the reference graph.
type Omega struct {
	Bins   int
	Counts []int64     // raw bin occupancy
	Hist   []float64   // Counts / total, sums to 1 (or all zero for an empty graph)
	Cycles []coherence.Cycle
}

// histogram bins every node phase of X exactly.  bins must already be known valid for X.
func histogram(X *qpi.Graph, bins int) ([]int64, []float64, error) {
	counts := make([]int64, bins)
	for _, v := range X.Nodes {
		idx, err := qpi.BinIndex(X.Labels[v].Phase, bins)
		if err != nil {
			return nil, nil, err
		}
		counts[idx]++
	}
	hist := make([]float64, bins)
	if N := len(X.Nodes); N > 0 {
		for i, c := range counts {
			hist[i] = float64(c) / float64(N)
		}
	}
	return counts, hist, nil
}

// DeriveSignature builds the Omega signature of X with the given bin count, which must be a multiple of
// qpi.MinimalBins(X).
func DeriveSignature(X *qpi.Graph, bins int) (*Omega, error) {
	if err := qpi.CheckBins(X, bins); err != nil {
		return nil, err
	}
	counts, hist, err := histogram(X, bins)
	if err != nil {
		return nil, err
	}
	cycles, err := coherence.CycleBasis(X)
	if err != nil {
		return nil, err
	}
	return &Omega{
		Bins:   bins,
		Counts: counts,
		Hist:   hist,
		Cycles: cycles,
	}, nil
}

// Resonance returns the cosine similarity in [0, 1] between X's phase histogram and omega's.
//
// The result is exactly 1 when the two normalized histograms are equal.  X is never re-binned: if omega.Bins
// cannot represent every phase of X exactly, Resonance fails with ErrBinMismatch.
func Resonance(X *qpi.Graph, omega *Omega) (float64, error) {
	if omega == nil || omega.Bins <= 0 || len(omega.Hist) != omega.Bins {
		return 0, errors.Wrap(qpi.ErrBinMismatch, "malformed signature")
	}
	if err := qpi.CheckBins(X, omega.Bins); err != nil {
		return 0, errors.Wrapf(qpi.ErrBinMismatch, "%v", err)
	}
	_, hist, err := histogram(X, omega.Bins)
	if err != nil {
		return 0, err
	}
	return cosine(hist, omega.Hist), nil
}

func cosine(a, b []float64) float64 {
	equal := true
	for i := range a {
		if a[i] != b[i] {
			equal = false
			break
		}
	}
	if equal {
		return 1
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	r := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, r))
}

// Similarity combines structural and phase agreement: Jaccard(cycle signatures) × Resonance.
func Similarity(X *qpi.Graph, omega *Omega) (float64, error) {
	r, err := Resonance(X, omega)
	if err != nil {
		return 0, err
	}
	cycles, err := coherence.CycleBasis(X)
	if err != nil {
		return 0, err
	}
	return Jaccard(cycles, omega.Cycles) * r, nil
}

// Jaccard returns |A ∩ B| / |A ∪ B| over rotated cycles; two empty sets score 1.
func Jaccard(A, B []coherence.Cycle) float64 {
	setA := coherence.NewCycleSet()
	for _, c := range A {
		setA.Add(c)
	}
	setB := coherence.NewCycleSet()
	for _, c := range B {
		setB.Add(c)
	}
	union := setA.Len()
	inter := 0
	for _, c := range setB.Cycles() {
		if setA.Contains(c) {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}
