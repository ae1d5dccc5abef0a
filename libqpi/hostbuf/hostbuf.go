// Package hostbuf packs a validated graph into the fixed-width little-endian records handed to an external
// render or compute host.
package hostbuf

import (
	"math"

	"github.com/2x3systems/goqpi/qpi"
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

/***

Host buffer layout (every field a little-endian u32, every record 16 bytes):

	Params  { MaxNodes, BinsQPi, Reserved0, Reserved1 }
	Nv x Spider { PhaseNumer, PhaseDenom, Kind, Degree }      (ascending node id)

A packed buffer is one Params record followed by the spider records.

***/

// RecordSize is the byte size of a Params or Spider record.
const RecordSize = 16

// Params is the header record of a host buffer.
type Params struct {
	MaxNodes  uint32
	BinsQPi   uint32
	Reserved0 uint32
	Reserved1 uint32
}

// Spider is the host record of one node.
type Spider struct {
	PhaseNumer uint32
	PhaseDenom uint32
	Kind       uint32
	Degree     uint32
}

func toU32(x int64, field string) (uint32, error) {
	if x < 0 || x > math.MaxUint32 {
		return 0, errors.Wrapf(qpi.ErrFieldRange, "%s = %d", field, x)
	}
	return uint32(x), nil
}

// NewParams range-checks maxNodes and bins and returns the corresponding validated Params.
func NewParams(maxNodes, bins int64) (Params, error) {
	var p Params
	var err error
	if p.MaxNodes, err = toU32(maxNodes, "max_nodes"); err != nil {
		return Params{}, err
	}
	if p.BinsQPi, err = toU32(bins, "bins_qpi"); err != nil {
		return Params{}, err
	}
	return p, p.Validate()
}

func (p Params) Validate() error {
	if p.MaxNodes == 0 {
		return errors.Wrap(qpi.ErrFieldRange, "max_nodes must be > 0")
	}
	if p.BinsQPi == 0 {
		return errors.Wrap(qpi.ErrFieldRange, "bins_qpi must be > 0")
	}
	return nil
}

func (p Params) AppendTo(buf []byte) []byte {
	return appendFixed32(buf, p.MaxNodes, p.BinsQPi, p.Reserved0, p.Reserved1)
}

func (s Spider) AppendTo(buf []byte) []byte {
	return appendFixed32(buf, s.PhaseNumer, s.PhaseDenom, s.Kind, s.Degree)
}

func appendFixed32(buf []byte, fields ...uint32) []byte {
	enc := proto.NewBuffer(buf)
	for _, x := range fields {
		enc.EncodeFixed32(uint64(x))
	}
	return enc.Bytes()
}

func decodeRecords(buf []byte, fieldsOf func(i int) []*uint32) error {
	if len(buf)%RecordSize != 0 {
		return errors.Wrapf(qpi.ErrBadEncoding, "host buffer length %d is not a multiple of %d", len(buf), RecordSize)
	}
	dec := proto.NewBuffer(buf)
	for i := 0; i < len(buf)/RecordSize; i++ {
		for _, field := range fieldsOf(i) {
			x, err := dec.DecodeFixed32()
			if err != nil {
				return errors.Wrap(qpi.ErrBadEncoding, err.Error())
			}
			*field = uint32(x)
		}
	}
	return nil
}

// DecodeParams reads the single Params record held in buf.
func DecodeParams(buf []byte) (Params, error) {
	if len(buf) != RecordSize {
		return Params{}, errors.Wrapf(qpi.ErrBadEncoding, "params record is %d bytes", len(buf))
	}
	var p Params
	err := decodeRecords(buf, func(int) []*uint32 {
		return []*uint32{&p.MaxNodes, &p.BinsQPi, &p.Reserved0, &p.Reserved1}
	})
	return p, err
}

// DecodeSpiders reads a run of Spider records.
func DecodeSpiders(buf []byte) ([]Spider, error) {
	spiders := make([]Spider, len(buf)/RecordSize)
	err := decodeRecords(buf, func(i int) []*uint32 {
		s := &spiders[i]
		return []*uint32{&s.PhaseNumer, &s.PhaseDenom, &s.Kind, &s.Degree}
	})
	if err != nil {
		return nil, err
	}
	return spiders, nil
}

// SpidersFromGraph returns one Spider per node of X, ascending by node id.
// Any field outside u32, or more than params.MaxNodes nodes, fails with qpi.ErrFieldRange.  A BinsQPi that cannot
// represent every phase of X exactly fails with qpi.ErrBinCount.
func SpidersFromGraph(X *qpi.Graph, params Params) ([]Spider, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if X == nil {
		return nil, qpi.ErrNilGraph
	}
	if len(X.Nodes) > int(params.MaxNodes) {
		return nil, errors.Wrapf(qpi.ErrFieldRange, "%d nodes exceeds max_nodes %d", len(X.Nodes), params.MaxNodes)
	}

	nodes := X.SortedNodes()
	spiders := make([]Spider, len(nodes))
	for i, v := range nodes {
		lbl := X.Labels[v]
		s := &spiders[i]
		var err error
		if s.PhaseNumer, err = toU32(lbl.Phase.Num, "phase_numer"); err != nil {
			return nil, errors.Wrapf(err, "node %d", v)
		}
		if s.PhaseDenom, err = toU32(lbl.Phase.Den, "phase_denom"); err != nil {
			return nil, errors.Wrapf(err, "node %d", v)
		}
		if s.Degree, err = toU32(int64(X.Degree(v)), "degree"); err != nil {
			return nil, errors.Wrapf(err, "node %d", v)
		}
		s.Kind = uint32(lbl.Kind)
	}
	if err := qpi.CheckBins(X, int(params.BinsQPi)); err != nil {
		return nil, errors.Wrap(err, "bins_qpi")
	}
	return spiders, nil
}

// Pack returns the Params record followed by the Spider records of X.
func Pack(X *qpi.Graph, params Params) ([]byte, error) {
	spiders, err := SpidersFromGraph(X, params)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, RecordSize*(1+len(spiders)))
	buf = params.AppendTo(buf)
	for _, s := range spiders {
		buf = s.AppendTo(buf)
	}
	return buf, nil
}

// Unpack splits a packed buffer back into its Params and Spider records.
func Unpack(buf []byte) (Params, []Spider, error) {
	if len(buf) < RecordSize {
		return Params{}, nil, errors.Wrapf(qpi.ErrBadEncoding, "host buffer is %d bytes", len(buf))
	}
	params, err := DecodeParams(buf[:RecordSize])
	if err != nil {
		return Params{}, nil, err
	}
	if err = params.Validate(); err != nil {
		return Params{}, nil, err
	}
	spiders, err := DecodeSpiders(buf[RecordSize:])
	if err != nil {
		return Params{}, nil, err
	}
	if len(spiders) > int(params.MaxNodes) {
		return Params{}, nil, errors.Wrapf(qpi.ErrFieldRange, "%d spiders exceeds max_nodes %d", len(spiders), params.MaxNodes)
	}
	return params, spiders, nil
}
