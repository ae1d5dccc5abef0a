package qpi

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalEncodingIsOrderFree(t *testing.T) {
	X1 := triangle()
	X2 := &Graph{
		Nodes: []NodeID{2, 0, 1},
		Edges: []Edge{{0, 2}, {2, 1}, {1, 0}},
		Labels: map[NodeID]NodeLabel{
			2: label(KindZ, 0, 1),
			1: label(KindX, 1, 2),
			0: label(KindZ, 1, 4),
		},
	}
	assert.Equal(t, AppendCanonicalTo(nil, X1), AppendCanonicalTo(nil, X2))
	assert.Equal(t, ContentHash(X1), ContentHash(X2))
}

func TestContentHashSeparatesGraphs(t *testing.T) {
	base := triangle()
	h := ContentHash(base)

	variants := []func(X *Graph){
		func(X *Graph) { X.Labels[0] = label(KindZ, 3, 4) },
		func(X *Graph) { X.Labels[1] = label(KindZ, 1, 2) },
		func(X *Graph) { X.Edges = X.Edges[:2] },
		func(X *Graph) { X.Edges = append(X.Edges, Edge{0, 1}) },
		func(X *Graph) {
			X.Nodes = append(X.Nodes, 3)
			X.Labels[3] = label(KindZ, 0, 1)
		},
		func(X *Graph) {
			lbl := X.Labels[2]
			lbl.Identity = "other"
			X.Labels[2] = lbl
		},
	}
	seen := map[Hash]int{h: -1}
	for i, mutate := range variants {
		X := triangle()
		mutate(X)
		_, err := Validate(X)
		require.NoError(t, err)
		hi := ContentHash(X)
		prev, dup := seen[hi]
		assert.False(t, dup, "variant %d collides with %d", i, prev)
		seen[hi] = i
	}
}

func TestDecodeCanonical(t *testing.T) {
	X := triangle()
	X.Edges = append(X.Edges, Edge{1, 0})
	lbl := X.Labels[1]
	lbl.Identity = "spider-1"
	X.Labels[1] = lbl

	enc := AppendCanonicalTo(nil, X)
	Xd, err := DecodeCanonical(enc)
	require.NoError(t, err)
	assert.Equal(t, enc, AppendCanonicalTo(nil, Xd))
	assert.Equal(t, X.Labels, Xd.Labels)
	assert.Equal(t, 2, Xd.EdgeMultiplicity(0, 1))

	_, err = DecodeCanonical(enc[:len(enc)-1])
	assert.True(t, errors.Is(err, ErrBadEncoding))

	_, err = DecodeCanonical(append(enc, 0))
	assert.True(t, errors.Is(err, ErrBadEncoding))

	_, err = DecodeCanonical([]byte{9})
	assert.True(t, errors.Is(err, ErrBadEncoding))
}

func TestHashShardPath(t *testing.T) {
	h := ContentHash(triangle())
	hexStr := h.String()
	require.Len(t, hexStr, 2*HashSize)
	assert.Equal(t, filepath.Join("root", hexStr[:2], hexStr), h.ShardPath("root"))
}
