package qpi

import (
	"bytes"
	"encoding/hex"
	"path/filepath"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

/***

Canonical graph encoding (all integers are protobuf varints, ids and edge ends zigzag):

	kEncodingVers
	Nv,  Nv x { id, kind, phase.Num, phase.Den, len(identity), identity }    (ascending id)
	Ne,  Ne x { a, b }                                                       (normalized a <= b, ascending)

Identical graphs (same nodes, edges with multiplicity, and labels) always produce identical bytes and every
encoding decodes to exactly one graph, so the encoding is injective over validated graphs.

***/

const kEncodingVers = 1

// HashSize is the size in bytes of a content Hash
const HashSize = 32

// Hash is the content hash of a Graph's canonical encoding.
type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ShardPath returns the content-addressed location root/<2 hex>/<hex>.
func (h Hash) ShardPath(root string) string {
	hexStr := h.String()
	return filepath.Join(root, hexStr[:2], hexStr)
}

// AppendCanonicalTo appends X's canonical encoding to buf and returns the extended buffer.
func AppendCanonicalTo(buf []byte, X *Graph) []byte {
	enc := proto.NewBuffer(buf)

	enc.EncodeVarint(kEncodingVers)

	nodes := X.SortedNodes()
	enc.EncodeVarint(uint64(len(nodes)))
	for _, v := range nodes {
		lbl := X.Labels[v]
		enc.EncodeZigzag64(uint64(v))
		enc.EncodeVarint(uint64(lbl.Kind))
		enc.EncodeVarint(uint64(lbl.Phase.Num))
		enc.EncodeVarint(uint64(lbl.Phase.Den))
		enc.EncodeStringBytes(lbl.Identity)
	}

	edges := X.SortedEdges()
	enc.EncodeVarint(uint64(len(edges)))
	for _, e := range edges {
		enc.EncodeZigzag64(uint64(e.A))
		enc.EncodeZigzag64(uint64(e.B))
	}

	return enc.Bytes()
}

// ContentHash returns the BLAKE3-256 hash of X's canonical encoding.
func ContentHash(X *Graph) Hash {
	var scrap [256]byte
	return Hash(blake3.Sum256(AppendCanonicalTo(scrap[:0], X)))
}

// DecodeCanonical reconstructs and validates the Graph held in a canonical encoding.
//
// The result is re-encoded and compared against buf, so trailing bytes or a non-canonical layout are rejected.
func DecodeCanonical(buf []byte) (*Graph, error) {
	dec := proto.NewBuffer(buf)

	readUint := func() uint64 {
		x, err := dec.DecodeVarint()
		if err != nil {
			panic(err)
		}
		return x
	}
	readInt := func() int64 {
		x, err := dec.DecodeZigzag64()
		if err != nil {
			panic(err)
		}
		return int64(x)
	}

	var X *Graph
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Wrapf(ErrBadEncoding, "%v", r)
			}
		}()

		if vers := readUint(); vers != kEncodingVers {
			return errors.Wrapf(ErrBadEncoding, "unsupported encoding version %d", vers)
		}

		Nv := readUint()
		if Nv > uint64(len(buf)) {
			return errors.Wrapf(ErrBadEncoding, "node count %d", Nv)
		}
		X = &Graph{
			Nodes:  make([]NodeID, 0, Nv),
			Labels: make(map[NodeID]NodeLabel, Nv),
		}
		for i := uint64(0); i < Nv; i++ {
			v := NodeID(readInt())
			kind := readUint()
			num := readUint()
			den := readUint()
			identity, err := dec.DecodeStringBytes()
			if err != nil {
				return errors.Wrap(ErrBadEncoding, err.Error())
			}
			X.Nodes = append(X.Nodes, v)
			X.Labels[v] = NodeLabel{
				Kind:     Kind(kind),
				Phase:    Phase{int64(num), int64(den)},
				Identity: identity,
			}
		}

		Ne := readUint()
		if Ne > uint64(len(buf)) {
			return errors.Wrapf(ErrBadEncoding, "edge count %d", Ne)
		}
		X.Edges = make([]Edge, 0, Ne)
		for i := uint64(0); i < Ne; i++ {
			a := NodeID(readInt())
			b := NodeID(readInt())
			X.Edges = append(X.Edges, Edge{a, b})
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}

	if _, err = Validate(X); err != nil {
		return nil, err
	}

	if !bytes.Equal(AppendCanonicalTo(nil, X), buf) {
		return nil, errors.Wrap(ErrBadEncoding, "encoding is not canonical")
	}
	return X, nil
}
