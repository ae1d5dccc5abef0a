package coherence

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gDens = []int64{1, 2, 3, 4, 6, 8, 12}

func randomGraph(t *testing.T, rnd *rand.Rand, n, m int) *qpi.Graph {
	X := &qpi.Graph{
		Labels: make(map[qpi.NodeID]qpi.NodeLabel, n),
	}
	for i := 0; i < n; i++ {
		v := qpi.NodeID(i)
		d := gDens[rnd.Intn(len(gDens))]
		kind := qpi.KindZ
		if rnd.Intn(2) == 1 {
			kind = qpi.KindX
		}
		X.Nodes = append(X.Nodes, v)
		X.Labels[v] = qpi.NodeLabel{Kind: kind, Phase: qpi.MustPhase(rnd.Int63n(2*d), d)}
	}
	for len(X.Edges) < m && n > 1 {
		a, b := rnd.Intn(n), rnd.Intn(n)
		if a != b {
			X.Edges = append(X.Edges, qpi.Edge{A: qpi.NodeID(a), B: qpi.NodeID(b)})
		}
	}
	_, err := qpi.Validate(X)
	require.NoError(t, err)
	return X
}

func graphOf(t *testing.T, phases [][2]int64, edges [][2]qpi.NodeID) *qpi.Graph {
	X := &qpi.Graph{Labels: make(map[qpi.NodeID]qpi.NodeLabel)}
	for i, p := range phases {
		v := qpi.NodeID(i)
		X.Nodes = append(X.Nodes, v)
		X.Labels[v] = qpi.NodeLabel{Kind: qpi.KindZ, Phase: qpi.MustPhase(p[0], p[1])}
	}
	for _, e := range edges {
		X.Edges = append(X.Edges, qpi.Edge{A: e[0], B: e[1]})
	}
	_, err := qpi.Validate(X)
	require.NoError(t, err)
	return X
}

func TestAlignedTriangle(t *testing.T) {
	X := graphOf(t, [][2]int64{{0, 1}, {0, 1}, {0, 1}}, [][2]qpi.NodeID{{0, 1}, {1, 2}, {2, 0}})
	report, err := Evaluate(X, DefaultWeights())
	require.NoError(t, err)
	require.Len(t, report.Cycles, 1)
	assert.Equal(t, 1.0, report.Cycles[0].Winding)
	assert.Equal(t, 1.0, report.Cycles[0].Harmony)
	assert.Equal(t, Cycle{0, 1, 2}, sortedCopy(report.Cycles[0].Nodes))
	assert.Equal(t, qpi.NodeID(0), report.Cycles[0].Nodes[0])
	assert.InDelta(t, 2+3*math.Log(3), report.Total, 1e-12)
}

func sortedCopy(cyc Cycle) Cycle {
	out := append(Cycle(nil), cyc...)
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func TestPhasedTriangle(t *testing.T) {
	X := graphOf(t, [][2]int64{{0, 1}, {1, 4}, {1, 2}}, [][2]qpi.NodeID{{0, 1}, {1, 2}, {2, 0}})
	report, err := Evaluate(X, DefaultWeights())
	require.NoError(t, err)
	require.Len(t, report.Cycles, 1)
	assert.Equal(t, 1.0, report.Cycles[0].Winding)
	assert.InDelta(t, 1/(1+math.Pi*math.Pi/8), report.Cycles[0].Harmony, 1e-12)

	node := func(deltas ...float64) float64 {
		align := 0.0
		for _, d := range deltas {
			align += math.Cos(d * math.Pi)
		}
		align /= float64(len(deltas))
		return math.Log(1+float64(len(deltas))) * (1 + align) / 2
	}
	wantNode := node(0.25, 0.5) + node(-0.25, 0.25) + node(-0.5, -0.25)
	assert.InDelta(t, wantNode, report.NodeTerm, 1e-12)
	assert.InDelta(t, report.CycleTerm+report.NodeTerm, report.Total, 1e-12)
}

func TestForestHasNoCycleTerm(t *testing.T) {
	X := graphOf(t, [][2]int64{{0, 1}, {1, 1}, {1, 2}, {3, 4}}, [][2]qpi.NodeID{{0, 1}, {1, 2}, {1, 3}})
	report, err := Evaluate(X, DefaultWeights())
	require.NoError(t, err)
	assert.Empty(t, report.Cycles)
	assert.Equal(t, 0.0, report.CycleTerm)
	assert.True(t, report.NodeTerm >= 0)

	empty, err := Coherence(&qpi.Graph{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty)
}

func TestParallelEdgesFormTwoCycles(t *testing.T) {
	X := graphOf(t, [][2]int64{{0, 1}, {1, 2}}, [][2]qpi.NodeID{{0, 1}, {1, 0}, {0, 1}})
	report, err := Evaluate(X, DefaultWeights())
	require.NoError(t, err)
	require.Len(t, report.Cycles, 2)
	for _, c := range report.Cycles {
		assert.Len(t, c.Nodes, 2)
		assert.Equal(t, 1.0, c.Winding)
	}

	basis, err := CycleBasis(X)
	require.NoError(t, err)
	assert.Len(t, basis, 1, "parallel chords give the same node cycle")
}

func TestCycleBasisSize(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	for i := 0; i < 30; i++ {
		n := 3 + rnd.Intn(8)
		m := rnd.Intn(3 * n)
		X := randomGraph(t, rnd, n, m)
		report, err := Evaluate(X, DefaultWeights())
		require.NoError(t, err)

		components := countComponents(X)
		assert.Len(t, report.Cycles, len(X.Edges)-n+components)
		for _, c := range report.Cycles {
			assert.Equal(t, 1.0, c.Winding, "closed walks have zero net winding")
			assert.True(t, c.Harmony > 0 && c.Harmony <= 1)
		}
		assert.True(t, report.Total >= 0)
	}
}

func countComponents(X *qpi.Graph) int {
	parent := make(map[qpi.NodeID]qpi.NodeID)
	var find func(v qpi.NodeID) qpi.NodeID
	find = func(v qpi.NodeID) qpi.NodeID {
		if parent[v] == v {
			return v
		}
		parent[v] = find(parent[v])
		return parent[v]
	}
	for _, v := range X.Nodes {
		parent[v] = v
	}
	count := len(X.Nodes)
	for _, e := range X.Edges {
		a, b := find(e.A), find(e.B)
		if a != b {
			parent[a] = b
			count--
		}
	}
	return count
}

func TestGaugeInvariance(t *testing.T) {
	rnd := rand.New(rand.NewSource(17))
	for i := 0; i < 40; i++ {
		n := 2 + rnd.Intn(9)
		X := randomGraph(t, rnd, n, rnd.Intn(3*n))
		C, err := Coherence(X)
		require.NoError(t, err)

		for j := 0; j < 4; j++ {
			d := gDens[rnd.Intn(len(gDens))] * int64(1+rnd.Intn(5))
			s := qpi.MustPhase(rnd.Int63n(2*d), d)
			Xs, err := X.Shift(s)
			require.NoError(t, err)
			Cs, err := Coherence(Xs)
			require.NoError(t, err)
			assert.True(t, math.Abs(Cs-C) < GaugeTolerance, "shift %v: %v vs %v", s, Cs, C)
			assert.Equal(t, C, Cs)
		}
	}
}

func TestIsomorphismInvariance(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))
	for i := 0; i < 40; i++ {
		n := 2 + rnd.Intn(9)
		X := randomGraph(t, rnd, n, rnd.Intn(3*n))
		C, err := Coherence(X)
		require.NoError(t, err)

		for j := 0; j < 4; j++ {
			perm := make(map[qpi.NodeID]qpi.NodeID, n)
			for k, p := range rnd.Perm(n) {
				perm[qpi.NodeID(k)] = qpi.NodeID(100 + 3*p)
			}
			Xr, err := X.Relabel(perm)
			require.NoError(t, err)
			Cr, err := Coherence(Xr)
			require.NoError(t, err)
			require.Equal(t, C, Cr, "relabel %v", perm)
		}
	}
}

func TestSymmetricRingInvariance(t *testing.T) {
	rnd := rand.New(rand.NewSource(29))
	n := 10
	var phases [][2]int64
	var edges [][2]qpi.NodeID
	for i := 0; i < n; i++ {
		phases = append(phases, [2]int64{int64(i % 2), 2})
		edges = append(edges, [2]qpi.NodeID{qpi.NodeID(i), qpi.NodeID((i + 1) % n)})
	}
	edges = append(edges, [2]qpi.NodeID{0, 5}, [2]qpi.NodeID{2, 7})
	X := graphOf(t, phases, edges)
	C, err := Coherence(X)
	require.NoError(t, err)
	for j := 0; j < 10; j++ {
		perm := make(map[qpi.NodeID]qpi.NodeID, n)
		for k, p := range rnd.Perm(n) {
			perm[qpi.NodeID(k)] = qpi.NodeID(p)
		}
		Xr, err := X.Relabel(perm)
		require.NoError(t, err)
		Cr, err := Coherence(Xr)
		require.NoError(t, err)
		require.Equal(t, C, Cr)
	}
}

func TestWeights(t *testing.T) {
	X := graphOf(t, [][2]int64{{0, 1}, {1, 4}, {1, 2}}, [][2]qpi.NodeID{{0, 1}, {1, 2}, {2, 0}})
	base, err := Evaluate(X, DefaultWeights())
	require.NoError(t, err)

	onlyCycles, err := Evaluate(X, Weights{Cycle: 1, Node: 0})
	require.NoError(t, err)
	assert.Equal(t, base.CycleTerm, onlyCycles.Total)

	_, err = Evaluate(X, Weights{Cycle: -1, Node: 1})
	assert.True(t, errors.Is(err, qpi.ErrDomain))

	_, err = Evaluate(X, Weights{Cycle: math.NaN(), Node: 1})
	assert.True(t, errors.Is(err, qpi.ErrBadConfig))
}

func TestCycleSet(t *testing.T) {
	set := NewCycleSet()
	assert.True(t, set.Add(Cycle{3, 1, 2}))
	assert.False(t, set.Add(Cycle{1, 2, 3}))
	assert.True(t, set.Add(Cycle{1, 3, 2}))
	assert.True(t, set.Add(Cycle{0, 5}))
	assert.True(t, set.Contains(Cycle{2, 3, 1}))
	assert.Equal(t, []Cycle{{0, 5}, {1, 2, 3}, {1, 3, 2}}, set.Cycles())
	assert.Equal(t, "1-2-3", Cycle{2, 3, 1}.Rotated().Key())
}

func TestDisjointCopiesStayFast(t *testing.T) {
	var phases [][2]int64
	var edges [][2]qpi.NodeID
	for k := 0; k < 80; k++ {
		a := qpi.NodeID(3 * k)
		phases = append(phases, [2]int64{0, 1}, [2]int64{0, 1}, [2]int64{0, 1})
		edges = append(edges, [2]qpi.NodeID{a, a + 1}, [2]qpi.NodeID{a + 1, a + 2}, [2]qpi.NodeID{a + 2, a})
	}
	X := graphOf(t, phases, edges)

	start := time.Now()
	C, err := Coherence(X)
	require.NoError(t, err)
	assert.InDelta(t, 80*(2+3*math.Log(3)), C, 1e-9)

	phases = phases[:0]
	for i := 0; i < 200; i++ {
		phases = append(phases, [2]int64{0, 1})
	}
	C, err = Coherence(graphOf(t, phases, nil))
	require.NoError(t, err)
	assert.Equal(t, 0.0, C)
	assert.Less(t, time.Since(start), 5*time.Second)
}
