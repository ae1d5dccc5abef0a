package libqpi

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2x3systems/goqpi/libqpi/catalog"
	"github.com/2x3systems/goqpi/libqpi/coherence"
	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGraph(t *testing.T) {
	X, err := ParseGraph("0:Z(1/4), 1:X(1/2), 2:Z; 0-1, 0-2, 1-2")
	require.NoError(t, err)
	assert.Len(t, X.Nodes, 3)
	assert.Len(t, X.Edges, 3)
	assert.Equal(t, qpi.MustPhase(1, 4), X.Labels[0].Phase)
	assert.Equal(t, qpi.KindX, X.Labels[1].Kind)
	assert.Equal(t, qpi.Zero, X.Labels[2].Phase)
	assert.Equal(t, "0:Z(1/4), 1:X(1/2), 2:Z; 0-1, 0-2, 1-2", X.String())

	// Runs, A/B kinds, whitespace, and canonicalization on parse
	X, err = ParseGraph(" 2:A(9/4),0:B(-1/2), 1:Z(4/2) ; 0-1-2-0 ")
	require.NoError(t, err)
	assert.Equal(t, "0:X(3/2), 1:Z, 2:Z(1/4); 0-1, 0-2, 1-2", X.String())

	X, err = ParseGraph("0:Z, 1:Z; 0-1, 1-0")
	require.NoError(t, err)
	assert.Equal(t, 2, X.EdgeMultiplicity(0, 1))

	X, err = ParseGraph("")
	require.NoError(t, err)
	assert.Empty(t, X.Nodes)

	X, err = ParseGraph("7:X")
	require.NoError(t, err)
	assert.Empty(t, X.Edges)
}

func TestParseGraphRejects(t *testing.T) {
	cases := []struct {
		expr string
		want error
	}{
		{"0:Q", qpi.ErrBadGraphExpr},
		{"0:Z(1/4", qpi.ErrBadGraphExpr},
		{"0:Z; 0", qpi.ErrBadGraphExpr},
		{"0:Z(1/0)", qpi.ErrNonPositiveDenominator},
		{"0:Z(1/-3)", qpi.ErrNonPositiveDenominator},
		{"0:Z, 0:X", qpi.ErrDuplicateNode},
		{"0:Z; 0-1", qpi.ErrDanglingEdge},
		{"0:Z, 1:X; 1-1", qpi.ErrSelfLoop},
		{"0:Z(99999999999999999999/2)", qpi.ErrBadGraphExpr},
	}
	for _, tc := range cases {
		_, err := ParseGraph(tc.expr)
		assert.True(t, errors.Is(err, tc.want), "%q: %v", tc.expr, err)
	}
	assert.Panics(t, func() { MustParseGraph("0:Z, 0:Z") })
}

func TestParseRoundTrip(t *testing.T) {
	unit, err := qpi.DerivePhaseUnit([]int64{3, 4})
	require.NoError(t, err)
	for n := 4; n <= 9; n++ {
		X, err := RingWithChord(n, unit)
		require.NoError(t, err)
		Xp, err := ParseGraph(X.String())
		require.NoError(t, err)
		assert.Equal(t, X.String(), Xp.String())
		assert.Equal(t, X.Denominators(), Xp.Denominators())
	}
}

func TestSeeds(t *testing.T) {
	unit := qpi.DefaultPhaseUnit()

	X, err := Ring(4, unit)
	require.NoError(t, err)
	assert.Equal(t, "0:Z, 1:X(1/4), 2:Z(1/2), 3:X(3/4); 0-1, 0-3, 1-2, 2-3", X.String())
	require.NotNil(t, X.Unit)
	assert.Equal(t, qpi.DerivationZXBialgebra, X.Unit.Provenance.DerivationID)

	X, err = RingWithChord(4, unit)
	require.NoError(t, err)
	assert.Equal(t, "0:Z, 1:X(1/4), 2:Z(1/2), 3:X(3/4); 0-1, 0-2, 0-3, 1-2, 2-3", X.String())

	basis, err := coherence.CycleBasis(X)
	require.NoError(t, err)
	assert.Len(t, basis, 2)

	X, err = Ring(10, unit)
	require.NoError(t, err)
	assert.Equal(t, qpi.MustPhase(1, 4), X.Labels[9].Phase, "9 steps of π/4 wrap to π/4")

	_, err = Ring(2, unit)
	assert.True(t, errors.Is(err, qpi.ErrDomain))
	_, err = RingWithChord(3, unit)
	assert.True(t, errors.Is(err, qpi.ErrDomain))
}

func TestBinsFor(t *testing.T) {
	X := MustParseGraph("0:Z(1/3), 1:X(1/4); 0-1")
	bins, err := BinsFor(X, 0)
	require.NoError(t, err)
	assert.Equal(t, 24, bins)

	bins, err = BinsFor(X, 48)
	require.NoError(t, err)
	assert.Equal(t, 48, bins)
}

func writeFile(t *testing.T, body string) string {
	pathname := filepath.Join(t.TempDir(), "goqpi.yaml")
	require.NoError(t, os.WriteFile(pathname, []byte(body), 0o644))
	return pathname
}

func TestConfig(t *testing.T) {
	def := DefaultConfig()
	require.NoError(t, def.Validate())
	assert.Equal(t, coherence.DefaultWeights(), def.Coherence)

	cfg, err := LoadConfig(writeFile(t, "coherence:\n  cycle: 2\nrewrite:\n  color_flip: 0.5\nworkers: 8\ncatalog: /tmp/cat\n"))
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Coherence.Cycle)
	assert.Equal(t, 1.0, cfg.Coherence.Node, "unset fields keep their defaults")
	assert.Equal(t, 0.5, cfg.Rewrite.ColorFlip)
	assert.Equal(t, 1.0, cfg.Rewrite.FusionAlignment)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, def.MaxSteps, cfg.MaxSteps)
	assert.Equal(t, "/tmp/cat", cfg.Catalog)

	e := cfg.Engine()
	assert.Equal(t, 8, e.Workers)
	assert.Equal(t, cfg.Rewrite, e.Rules)

	for _, body := range []string{
		"workers: 0\n",
		"max_steps: -1\n",
		"bins: -4\n",
		"coherence:\n  node: -1\n",
		"coherence: [1, 2\n",
	} {
		_, err := LoadConfig(writeFile(t, body))
		assert.True(t, errors.Is(err, qpi.ErrBadConfig), "%q: %v", body, err)
		assert.True(t, errors.Is(err, qpi.ErrDomain), body)
	}

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGraphStream(t *testing.T) {
	dedupe := catalog.NewDropDupes()
	defer dedupe.Close()

	graphs, err := ParseGraphs(
		"0:Z, 1:Z, 2:Z; 0-1-2-0",
		"0:Z; 0-1",
		"0:Z, 1:Z, 2:Z; 0-1-2-0",
		"0:Z(1/2), 1:X; 0-1",
	).AddTo(dedupe).Collect()
	assert.True(t, errors.Is(err, qpi.ErrDanglingEdge))
	require.Len(t, graphs, 2)
	assert.Equal(t, "0:Z, 1:Z, 2:Z; 0-1, 0-2, 1-2", graphs[0].String())

	count, err := StreamGraphs(graphs...).Validate().PullAll()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	bad := &qpi.Graph{Nodes: []qpi.NodeID{0}}
	count, err = StreamGraphs(graphs[0], bad).Validate().PullAll()
	assert.True(t, errors.Is(err, qpi.ErrMissingLabel))
	assert.Equal(t, 1, count)

	out := strings.Builder{}
	count, err = StreamGraphs(graphs...).Print(&out, "seed").PullAll()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "seed,000001,0:Z, 1:Z, 2:Z; 0-1, 0-2, 1-2\nseed,000002,0:Z(1/2), 1:X; 0-1\n", out.String())
}

func TestMeasure(t *testing.T) {
	var graphs []*qpi.Graph
	for n := 3; n <= 12; n++ {
		X, err := Ring(n, qpi.DefaultPhaseUnit())
		require.NoError(t, err)
		graphs = append(graphs, X)
	}
	triangle := MustParseGraph("0:Z, 1:Z, 2:Z; 0-1-2-0")
	graphs = append(graphs, triangle)

	results, err := StreamGraphs(graphs...).Measure(context.Background(), coherence.DefaultWeights(), 4)
	require.NoError(t, err)
	require.Len(t, results, len(graphs))
	for i, m := range results {
		assert.Equal(t, i, m.Index)
		assert.Same(t, graphs[i], m.Graph)
		assert.Equal(t, qpi.ContentHash(graphs[i]), m.Hash)
		want, err := coherence.Coherence(graphs[i])
		require.NoError(t, err)
		assert.Equal(t, want, m.Report.Total)
	}
	assert.InDelta(t, 2+3*math.Log(3), results[len(results)-1].Report.Total, 1e-12)

	_, err = StreamGraphs(graphs...).Measure(context.Background(), coherence.Weights{Cycle: -1}, 2)
	assert.True(t, errors.Is(err, qpi.ErrBadConfig))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = StreamGraphs(graphs...).Measure(ctx, coherence.DefaultWeights(), 2)
	assert.Error(t, err)
}
