package hostbuf

import (
	"math"
	"testing"

	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func path3(t *testing.T, last qpi.Phase) *qpi.Graph {
	X := &qpi.Graph{
		Nodes: []qpi.NodeID{7, 3, 5},
		Edges: []qpi.Edge{{A: 3, B: 5}, {A: 5, B: 7}},
		Labels: map[qpi.NodeID]qpi.NodeLabel{
			3: {Kind: qpi.KindZ, Phase: qpi.MustPhase(1, 4)},
			5: {Kind: qpi.KindX, Phase: qpi.Zero},
			7: {Kind: qpi.KindZ, Phase: last},
		},
	}
	_, err := qpi.Validate(X)
	require.NoError(t, err)
	return X
}

func TestParams(t *testing.T) {
	p, err := NewParams(64, 8)
	require.NoError(t, err)
	assert.Equal(t, Params{MaxNodes: 64, BinsQPi: 8}, p)

	buf := p.AppendTo(nil)
	assert.Equal(t, []byte{64, 0, 0, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, buf)
	got, err := DecodeParams(buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	for _, bad := range [][2]int64{{0, 8}, {8, 0}, {-1, 8}, {8, math.MaxUint32 + 1}} {
		_, err := NewParams(bad[0], bad[1])
		assert.True(t, errors.Is(err, qpi.ErrFieldRange), "%v", bad)
		assert.True(t, errors.Is(err, qpi.ErrDomain), "%v", bad)
	}

	p, err = NewParams(math.MaxUint32, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), p.MaxNodes)

	_, err = DecodeParams(buf[:15])
	assert.True(t, errors.Is(err, qpi.ErrBadEncoding))
}

func TestSpidersFromGraph(t *testing.T) {
	X := path3(t, qpi.MustPhase(3, 2))
	params, err := NewParams(3, 8)
	require.NoError(t, err)

	spiders, err := SpidersFromGraph(X, params)
	require.NoError(t, err)
	assert.Equal(t, []Spider{
		{PhaseNumer: 1, PhaseDenom: 4, Kind: uint32(qpi.KindZ), Degree: 1},
		{PhaseNumer: 0, PhaseDenom: 1, Kind: uint32(qpi.KindX), Degree: 2},
		{PhaseNumer: 3, PhaseDenom: 2, Kind: uint32(qpi.KindZ), Degree: 1},
	}, spiders)

	params.MaxNodes = 2
	_, err = SpidersFromGraph(X, params)
	assert.True(t, errors.Is(err, qpi.ErrFieldRange))

	params.MaxNodes = 3
	_, err = SpidersFromGraph(path3(t, qpi.MustPhase(1, 1<<33)), params)
	assert.True(t, errors.Is(err, qpi.ErrFieldRange), "denominator beyond u32 is rejected, not clamped")

	_, err = SpidersFromGraph(X, Params{MaxNodes: 3})
	assert.True(t, errors.Is(err, qpi.ErrFieldRange))

	// 1/4 needs a multiple of 8 bins
	params.BinsQPi = 6
	_, err = SpidersFromGraph(X, params)
	assert.True(t, errors.Is(err, qpi.ErrBinCount))
	assert.True(t, errors.Is(err, qpi.ErrDomain))
	params.BinsQPi = 16
	_, err = Pack(X, params)
	assert.NoError(t, err)
}

func TestPackUnpack(t *testing.T) {
	X := path3(t, qpi.MustPhase(1, 2))
	params, err := NewParams(16, 8)
	require.NoError(t, err)

	buf, err := Pack(X, params)
	require.NoError(t, err)
	require.Len(t, buf, 4*RecordSize)
	assert.Equal(t, []byte{1, 0, 0, 0, 4, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}, buf[RecordSize:2*RecordSize])

	gotParams, spiders, err := Unpack(buf)
	require.NoError(t, err)
	assert.Equal(t, params, gotParams)
	want, err := SpidersFromGraph(X, params)
	require.NoError(t, err)
	assert.Equal(t, want, spiders)

	_, _, err = Unpack(buf[:len(buf)-1])
	assert.True(t, errors.Is(err, qpi.ErrBadEncoding))

	_, err = DecodeSpiders(buf[:RecordSize+3])
	assert.True(t, errors.Is(err, qpi.ErrBadEncoding))

	spiders, err = DecodeSpiders(nil)
	require.NoError(t, err)
	assert.Empty(t, spiders)
}
