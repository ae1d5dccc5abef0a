package qpi

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func label(kind Kind, n, d int64) NodeLabel {
	return NodeLabel{Kind: kind, Phase: MustPhase(n, d)}
}

func triangle() *Graph {
	return &Graph{
		Nodes: []NodeID{0, 1, 2},
		Edges: []Edge{{0, 1}, {1, 2}, {2, 0}},
		Labels: map[NodeID]NodeLabel{
			0: label(KindZ, 1, 4),
			1: label(KindX, 1, 2),
			2: label(KindZ, 0, 1),
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	X := triangle()
	Xv, err := Validate(X)
	require.NoError(t, err)
	assert.Same(t, X, Xv)

	empty := &Graph{}
	_, err = Validate(empty)
	require.NoError(t, err)

	// parallel edges are legal
	X.Edges = append(X.Edges, Edge{1, 0})
	_, err = Validate(X)
	require.NoError(t, err)
}

func TestValidateRejects(t *testing.T) {
	selfLoop := &Graph{
		Nodes:  []NodeID{0},
		Edges:  []Edge{{0, 0}},
		Labels: map[NodeID]NodeLabel{0: label(KindZ, 0, 1)},
	}
	dangling := &Graph{
		Nodes:  []NodeID{0},
		Edges:  []Edge{{0, 1}},
		Labels: map[NodeID]NodeLabel{0: label(KindZ, 0, 1)},
	}
	missing := &Graph{
		Nodes:  []NodeID{0, 1},
		Labels: map[NodeID]NodeLabel{0: label(KindZ, 0, 1)},
	}
	orphan := &Graph{
		Nodes:  []NodeID{0},
		Labels: map[NodeID]NodeLabel{0: label(KindZ, 0, 1), 5: label(KindX, 0, 1)},
	}
	unreduced := &Graph{
		Nodes:  []NodeID{0},
		Labels: map[NodeID]NodeLabel{0: {Kind: KindZ, Phase: Phase{2, 4}}},
	}
	unwrapped := &Graph{
		Nodes:  []NodeID{0},
		Labels: map[NodeID]NodeLabel{0: {Kind: KindZ, Phase: Phase{9, 4}}},
	}
	zeroDen := &Graph{
		Nodes:  []NodeID{0},
		Labels: map[NodeID]NodeLabel{0: {Kind: KindZ}},
	}
	dupNode := &Graph{
		Nodes:  []NodeID{3, 3},
		Labels: map[NodeID]NodeLabel{3: label(KindZ, 0, 1)},
	}
	badKind := &Graph{
		Nodes:  []NodeID{0},
		Labels: map[NodeID]NodeLabel{0: {Kind: 7, Phase: Zero}},
	}

	cases := []struct {
		name string
		X    *Graph
		want error
		msg  string
	}{
		{"self-loop", selfLoop, ErrSelfLoop, "(0,0)"},
		{"dangling", dangling, ErrDanglingEdge, "endpoint 1"},
		{"missing", missing, ErrMissingLabel, "node 1"},
		{"orphan", orphan, ErrOrphanLabel, "node 5"},
		{"unreduced", unreduced, ErrNonCanonicalPhase, "node 0"},
		{"unwrapped", unwrapped, ErrNonCanonicalPhase, "canonical 1/4"},
		{"zero-den", zeroDen, ErrNonCanonicalPhase, "node 0"},
		{"dup", dupNode, ErrDuplicateNode, "node 3"},
		{"kind", badKind, ErrBadKind, "node 0"},
		{"nil", nil, ErrNilGraph, ""},
	}
	for _, c := range cases {
		_, err := Validate(c.X)
		require.Error(t, err, c.name)
		assert.True(t, errors.Is(err, c.want), "%s: got %v", c.name, err)
		assert.True(t, errors.Is(err, ErrStructural), c.name)
		assert.Contains(t, err.Error(), c.msg, c.name)
	}
}

func TestBinIndex(t *testing.T) {
	p := MustPhase(1, 4)

	_, err := BinIndex(p, 6)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDomain))

	idx, err := BinIndex(p, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = BinIndex(MustPhase(7, 4), 16)
	require.NoError(t, err)
	assert.Equal(t, 14, idx)

	for n := int64(0); n < 24; n++ {
		idx, err := BinIndex(MustPhase(n, 12), 48)
		require.NoError(t, err)
		assert.True(t, idx >= 0 && idx < 48)
	}

	_, err = BinIndex(p, 0)
	assert.True(t, errors.Is(err, ErrBinCount))

	// Phase fields are exported, so out-of-range values can reach BinIndex directly.
	for _, bad := range []Phase{{Num: -1, Den: 4}, {Num: 9, Den: 4}, {Num: 2, Den: 4}} {
		_, err = BinIndex(bad, 8)
		assert.True(t, errors.Is(err, ErrUnreducedPhase), "%d/%d", bad.Num, bad.Den)
		assert.True(t, errors.Is(err, ErrDomain))
	}
	_, err = BinIndex(Phase{Num: 1, Den: 0}, 8)
	assert.True(t, errors.Is(err, ErrNonPositiveDenominator))
}

func TestMinimalBins(t *testing.T) {
	need, err := MinimalBins(triangle())
	require.NoError(t, err)
	assert.Equal(t, int64(8), need)

	need, err = MinimalBins(&Graph{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), need)

	require.NoError(t, CheckBins(triangle(), 24))
	assert.True(t, errors.Is(CheckBins(triangle(), 12), ErrBinCount))
}

func TestShiftRelabel(t *testing.T) {
	X := triangle()
	Xs, err := X.Shift(MustPhase(3, 2))
	require.NoError(t, err)
	assert.Equal(t, Phase{7, 4}, Xs.Labels[0].Phase)
	assert.Equal(t, Phase{0, 1}, Xs.Labels[1].Phase)
	assert.Equal(t, Phase{1, 4}, X.Labels[0].Phase, "source graph must be untouched")

	Xr, err := X.Relabel(map[NodeID]NodeID{0: 10, 1: 11, 2: 12})
	require.NoError(t, err)
	assert.Equal(t, X.Labels[1], Xr.Labels[11])
	assert.Equal(t, 2, Xr.Degree(10))

	_, err = X.Relabel(map[NodeID]NodeID{0: 1})
	assert.True(t, errors.Is(err, ErrDuplicateNode))
}

func TestBuilder(t *testing.T) {
	Xb := NewBuilder(DefaultPhaseUnit())
	a := Xb.AddNode(KindZ, 1)
	b := Xb.AddNode(KindX, 6)
	c := Xb.AddNode(KindZ, 9)
	Xb.AddEdge(a, b).AddEdge(b, c)
	X, err := Xb.Build()
	require.NoError(t, err)
	assert.Equal(t, Phase{1, 4}, X.Labels[a].Phase)
	assert.Equal(t, Phase{3, 2}, X.Labels[b].Phase)
	assert.Equal(t, Phase{1, 4}, X.Labels[c].Phase)
	require.NotNil(t, X.Unit)
	assert.Equal(t, DerivationZXBialgebra, X.Unit.Provenance.DerivationID)

	Xb = NewBuilder(DefaultPhaseUnit())
	a = Xb.AddNode(KindZ, 0)
	Xb.AddEdge(a, a)
	_, err = Xb.Build()
	assert.True(t, errors.Is(err, ErrSelfLoop))
}

func TestGraphString(t *testing.T) {
	assert.Equal(t, "0:Z(1/4), 1:X(1/2), 2:Z; 0-1, 0-2, 1-2", triangle().String())
}
