package qpi

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// NodeID identifies a node within a Graph.  Ids carry no meaning beyond identity.
type NodeID int64

// Kind is the color tag of a node (a Z or X spider).
type Kind uint8

const (
	KindA Kind = 1 + iota
	KindB

	KindZ = KindA
	KindX = KindB
)

func (k Kind) IsValid() bool {
	return k == KindA || k == KindB
}

// Flip returns the opposite color.
func (k Kind) Flip() Kind {
	switch k {
	case KindA:
		return KindB
	case KindB:
		return KindA
	}
	return k
}

func (k Kind) String() string {
	switch k {
	case KindA:
		return "Z"
	case KindB:
		return "X"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// NodeLabel is the immutable annotation of a node.  A kind or phase change always produces a new NodeLabel.
type NodeLabel struct {
	Kind     Kind
	Phase    Phase
	Identity string // opaque stable id
}

// Edge is an unordered pair of node ids.
type Edge struct {
	A, B NodeID
}

// Normalized returns e with A <= B
func (e Edge) Normalized() Edge {
	if e.A > e.B {
		return Edge{e.B, e.A}
	}
	return e
}

// Joins reports if e connects a and b (in either direction).
func (e Edge) Joins(a, b NodeID) bool {
	return (e.A == a && e.B == b) || (e.A == b && e.B == a)
}

// Touches reports if v is an endpoint of e.
func (e Edge) Touches(v NodeID) bool {
	return e.A == v || e.B == v
}

func (e Edge) String() string {
	return fmt.Sprintf("(%d,%d)", e.A, e.B)
}

// Graph is a labeled multigraph.
//
// A Graph is immutable by convention: once it has passed Validate, no component modifies it, and every rewrite
// produces a new Graph.  The methods below assume a validated Graph.
type Graph struct {
	Nodes  []NodeID
	Edges  []Edge
	Labels map[NodeID]NodeLabel

	// Unit is the phase unit the graph was built from, if known.  It is metadata only and takes no part in
	// validation, serialization, or hashing.
	Unit *PhaseUnit
}

// SortedNodes returns a copy of X.Nodes in ascending order.
func (X *Graph) SortedNodes() []NodeID {
	ids := append([]NodeID(nil), X.Nodes...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SortedEdges returns normalized copies of X.Edges in ascending order.
func (X *Graph) SortedEdges() []Edge {
	edges := make([]Edge, len(X.Edges))
	for i, e := range X.Edges {
		edges[i] = e.Normalized()
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// Adjacency returns each node's neighbors in ascending order, with one entry per incident edge.
func (X *Graph) Adjacency() map[NodeID][]NodeID {
	adj := make(map[NodeID][]NodeID, len(X.Nodes))
	for _, v := range X.Nodes {
		adj[v] = nil
	}
	for _, e := range X.Edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}
	for _, nbrs := range adj {
		sort.Slice(nbrs, func(i, j int) bool { return nbrs[i] < nbrs[j] })
	}
	return adj
}

// Degree returns the number of edges incident to v.
func (X *Graph) Degree(v NodeID) int {
	deg := 0
	for _, e := range X.Edges {
		if e.Touches(v) {
			deg++
		}
	}
	return deg
}

// EdgeMultiplicity returns how many edges join a and b.
func (X *Graph) EdgeMultiplicity(a, b NodeID) int {
	count := 0
	for _, e := range X.Edges {
		if e.Joins(a, b) {
			count++
		}
	}
	return count
}

// HasNode reports if v is a node of X.
func (X *Graph) HasNode(v NodeID) bool {
	_, ok := X.Labels[v]
	return ok
}

// Denominators returns the distinct phase denominators present in X, ascending.
func (X *Graph) Denominators() []int64 {
	seen := make(map[int64]struct{})
	var dens []int64
	for _, v := range X.Nodes {
		d := X.Labels[v].Phase.Den
		if _, dup := seen[d]; !dup {
			seen[d] = struct{}{}
			dens = append(dens, d)
		}
	}
	sort.Slice(dens, func(i, j int) bool { return dens[i] < dens[j] })
	return dens
}

// Clone returns a deep copy of X.
func (X *Graph) Clone() *Graph {
	Xc := &Graph{
		Nodes:  append([]NodeID(nil), X.Nodes...),
		Edges:  append([]Edge(nil), X.Edges...),
		Labels: make(map[NodeID]NodeLabel, len(X.Labels)),
		Unit:   X.Unit,
	}
	for k, v := range X.Labels {
		Xc.Labels[k] = v
	}
	return Xc
}

// Shift returns a new validated Graph with every phase advanced by s.
func (X *Graph) Shift(s Phase) (*Graph, error) {
	Xs := X.Clone()
	for id, lbl := range X.Labels {
		p, err := Add(lbl.Phase, s)
		if err != nil {
			return nil, err
		}
		lbl.Phase = p
		Xs.Labels[id] = lbl
	}
	return Validate(Xs)
}

// Relabel returns a new validated Graph with every node id v replaced by perm[v].
// Ids missing from perm are kept as-is.
func (X *Graph) Relabel(perm map[NodeID]NodeID) (*Graph, error) {
	mapID := func(v NodeID) NodeID {
		if w, ok := perm[v]; ok {
			return w
		}
		return v
	}
	Xr := &Graph{
		Nodes:  make([]NodeID, len(X.Nodes)),
		Edges:  make([]Edge, len(X.Edges)),
		Labels: make(map[NodeID]NodeLabel, len(X.Labels)),
		Unit:   X.Unit,
	}
	for i, v := range X.Nodes {
		Xr.Nodes[i] = mapID(v)
	}
	for i, e := range X.Edges {
		Xr.Edges[i] = Edge{mapID(e.A), mapID(e.B)}
	}
	for v, lbl := range X.Labels {
		Xr.Labels[mapID(v)] = lbl
	}
	return Validate(Xr)
}

// WriteAsString writes X as a graph expression that ParseGraph reads back.
func (X *Graph) WriteAsString(out io.Writer) {
	buf := strings.Builder{}
	for i, v := range X.SortedNodes() {
		if i > 0 {
			buf.WriteString(", ")
		}
		lbl := X.Labels[v]
		fmt.Fprintf(&buf, "%d:%v", v, lbl.Kind)
		if lbl.Phase.Num != 0 {
			fmt.Fprintf(&buf, "(%d/%d)", lbl.Phase.Num, lbl.Phase.Den)
		}
	}
	for i, e := range X.SortedEdges() {
		if i == 0 {
			buf.WriteString("; ")
		} else {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%d-%d", e.A, e.B)
	}
	io.WriteString(out, buf.String())
}

func (X *Graph) String() string {
	buf := strings.Builder{}
	X.WriteAsString(&buf)
	return buf.String()
}
