// Package canon computes a canonical vertex ordering of a vertex-colored, arc-labeled multigraph.
//
// Two inputs that differ only by a permutation of vertex indices yield orderings that differ by that same
// permutation (up to an automorphism), so any computation that walks vertices in canonical order produces
// identical results for isomorphic inputs.
//
// The search is the usual individualization-refinement scheme: equitable color refinement, then a depth-first
// search over individualizations of the first non-singleton cell, keeping the leaf with the least certificate.
// Automorphisms discovered between equal leaves are folded into per-level orbit partitions that prune sibling
// branches.
package canon

import (
	"math"
	"sort"
)

// Arc is one direction of an edge.  Label distinguishes arcs beyond their endpoints.
type Arc struct {
	To    int
	Label [2]int64
}

// Graph is the structure to canonize.  Arcs must be symmetric: every edge {u,v} appears once in Arcs[u] and
// once in Arcs[v] (each with its own direction-specific label).
type Graph struct {
	Color []int64 // per-vertex invariant
	Arcs  [][]Arc
}

// NumVertices returns the vertex count
func (G *Graph) NumVertices() int {
	return len(G.Color)
}

const noJump = math.MaxInt

type search struct {
	G      *Graph
	n      int
	tried  [][]int
	orbits [][]int // orbits[d]: union-find over the automorphisms found so far that fix path[:d]

	best     []int // best leaf: vertex -> position
	bestCert []int64

	// scratch
	sigs   [][]int64
	tuples [][3]int64
}

// Order returns the vertices of G in canonical order: Order(G)[i] is the vertex at canonical position i.
//
// Each connected component is canonized on its own and components are laid out in certificate order, so
// isomorphic components end up adjacent and are never searched against each other.
func Order(G *Graph) []int {
	n := G.NumVertices()
	if n == 0 {
		return nil
	}

	comps := components(G)
	if len(comps) == 1 {
		order, _ := canonize(G)
		return order
	}

	type part struct {
		verts []int
		cert  []int64
	}
	parts := make([]part, len(comps))
	for i, comp := range comps {
		order, cert := canonize(induced(G, comp))
		verts := make([]int, len(order))
		for p, v := range order {
			verts[p] = comp[v]
		}
		parts[i] = part{verts, cert}
	}
	sort.SliceStable(parts, func(i, j int) bool {
		return cmpCert(parts[i].cert, parts[j].cert) < 0
	})

	order := make([]int, 0, n)
	for _, pt := range parts {
		order = append(order, pt.verts...)
	}
	return order
}

// canonize searches a connected G and returns its canonical order and certificate.  The certificate is
// prefixed with the vertex count so that certificates of different components never tie.
func canonize(G *Graph) ([]int, []int64) {
	n := G.NumVertices()
	s := &search{
		G:    G,
		n:    n,
		sigs: make([][]int64, n),
	}

	initial, _ := rankBy(n, func(a, b int) int {
		return cmpInt64(G.Color[a], G.Color[b])
	})
	s.visit(s.refine(initial), nil)

	order := make([]int, n)
	for v, pos := range s.best {
		order[pos] = v
	}
	cert := make([]int64, 0, 1+len(s.bestCert))
	cert = append(cert, int64(n))
	return order, append(cert, s.bestCert...)
}

// components returns the vertex sets (ascending) of the connected components of G, ordered by least vertex.
func components(G *Graph) [][]int {
	n := G.NumVertices()
	seen := make([]bool, n)
	var comps [][]int
	for root := 0; root < n; root++ {
		if seen[root] {
			continue
		}
		seen[root] = true
		comp := []int{root}
		for i := 0; i < len(comp); i++ {
			for _, a := range G.Arcs[comp[i]] {
				if !seen[a.To] {
					seen[a.To] = true
					comp = append(comp, a.To)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

// induced returns the subgraph of G on verts, re-indexed so that local vertex i is verts[i].
func induced(G *Graph, verts []int) *Graph {
	local := make(map[int]int, len(verts))
	for i, v := range verts {
		local[v] = i
	}
	sub := &Graph{
		Color: make([]int64, len(verts)),
		Arcs:  make([][]Arc, len(verts)),
	}
	for i, v := range verts {
		sub.Color[i] = G.Color[v]
		arcs := make([]Arc, len(G.Arcs[v]))
		for j, a := range G.Arcs[v] {
			arcs[j] = Arc{To: local[a.To], Label: a.Label}
		}
		sub.Arcs[i] = arcs
	}
	return sub
}

func (s *search) visit(colors []int, path []int) int {
	depth := len(path)
	cell := targetCell(colors)
	if cell == nil {
		return s.leaf(colors, path)
	}

	if len(s.tried) <= depth {
		s.tried = append(s.tried, nil)
		s.orbits = append(s.orbits, make([]int, s.n))
	}
	s.tried[depth] = s.tried[depth][:0]
	orbits := s.orbits[depth]
	for i := range orbits {
		orbits[i] = i
	}

	for _, v := range cell {
		if s.equivalentToTried(depth, v) {
			continue
		}
		s.tried[depth] = append(s.tried[depth], v)

		child := s.refine(individualize(colors, v))
		jump := s.visit(child, append(path[:depth:depth], v))
		if jump < depth {
			return jump
		}
	}
	return noJump
}

func (s *search) leaf(colors []int, path []int) int {
	cert := s.certificate(colors)
	if s.bestCert == nil {
		s.best, s.bestCert = colors, cert
		return noJump
	}

	switch cmpCert(cert, s.bestCert) {
	case -1:
		s.best, s.bestCert = colors, cert
		return noJump
	case 1:
		return noJump
	}

	// Equal certificates: the position-wise map from the best leaf to this one is an automorphism.
	gamma := make([]int, s.n)
	gammaInv := make([]int, s.n)
	bestInv := invert(s.best)
	leafInv := invert(colors)
	identity := true
	for pos := 0; pos < s.n; pos++ {
		gamma[bestInv[pos]] = leafInv[pos]
		gammaInv[leafInv[pos]] = bestInv[pos]
		if bestInv[pos] != leafInv[pos] {
			identity = false
		}
	}
	if identity {
		return noJump
	}

	// Merge gamma into the orbits of every level whose path prefix it fixes.
	for d := 0; d < len(path); d++ {
		orbits := s.orbits[d]
		for x, y := range gamma {
			union(orbits, x, y)
		}
		if gamma[path[d]] != path[d] {
			break
		}
	}

	// If gamma fixes path[:d] and maps an already explored sibling onto path[d], the whole subtree under
	// path[:d+1] is the image of that sibling's subtree.
	for d, v := range path {
		u := gammaInv[v]
		if u == v {
			continue
		}
		tried := s.tried[d]
		for _, w := range tried[:len(tried)-1] {
			if w == u {
				return d
			}
		}
		break
	}
	return noJump
}

// equivalentToTried reports if v shares an orbit with an already explored sibling at depth.
func (s *search) equivalentToTried(depth int, v int) bool {
	orbits := s.orbits[depth]
	rv := find(orbits, v)
	for _, u := range s.tried[depth] {
		if find(orbits, u) == rv {
			return true
		}
	}
	return false
}

func find(parent []int, x int) int {
	for parent[x] != x {
		parent[x] = parent[parent[x]]
		x = parent[x]
	}
	return x
}

func union(parent []int, x, y int) {
	rx, ry := find(parent, x), find(parent, y)
	if rx != ry {
		parent[rx] = ry
	}
}

// refine computes the coarsest equitable refinement of colors (dense ranks) and returns it as dense ranks.
func (s *search) refine(colors []int) []int {
	n := s.n
	cells := countCells(colors)
	for {
		for v := 0; v < n; v++ {
			s.tuples = s.tuples[:0]
			for _, a := range s.G.Arcs[v] {
				s.tuples = append(s.tuples, [3]int64{int64(colors[a.To]), a.Label[0], a.Label[1]})
			}
			sort.Slice(s.tuples, func(i, j int) bool {
				return cmpTuple(s.tuples[i], s.tuples[j]) < 0
			})
			sig := s.sigs[v][:0]
			sig = append(sig, int64(colors[v]))
			for _, t := range s.tuples {
				sig = append(sig, t[0], t[1], t[2])
			}
			s.sigs[v] = sig
		}

		next, k := rankBy(n, func(a, b int) int {
			return cmpCert(s.sigs[a], s.sigs[b])
		})
		if k == cells {
			return next
		}
		colors, cells = next, k
	}
}

// certificate encodes G as laid out by a discrete coloring: colors in position order, then each position's
// arcs as sorted (position, label) tuples.
func (s *search) certificate(colors []int) []int64 {
	inv := invert(colors)
	cert := make([]int64, 0, 4*s.n)
	for _, v := range inv {
		cert = append(cert, s.G.Color[v])
	}
	for _, v := range inv {
		s.tuples = s.tuples[:0]
		for _, a := range s.G.Arcs[v] {
			s.tuples = append(s.tuples, [3]int64{int64(colors[a.To]), a.Label[0], a.Label[1]})
		}
		sort.Slice(s.tuples, func(i, j int) bool {
			return cmpTuple(s.tuples[i], s.tuples[j]) < 0
		})
		cert = append(cert, int64(len(s.tuples)))
		for _, t := range s.tuples {
			cert = append(cert, t[0], t[1], t[2])
		}
	}
	return cert
}

// individualize splits v off in front of the rest of its cell.
func individualize(colors []int, v int) []int {
	n := len(colors)
	split := make([]int, n)
	for u, c := range colors {
		split[u] = 2*c + 1
	}
	split[v]--
	ranks, _ := rankBy(n, func(a, b int) int {
		return cmpInt64(int64(split[a]), int64(split[b]))
	})
	return ranks
}

// targetCell returns the members (ascending) of the lowest-colored cell with more than one vertex, or nil.
func targetCell(colors []int) []int {
	counts := make([]int, len(colors))
	for _, c := range colors {
		counts[c]++
	}
	target := -1
	for c, count := range counts {
		if count > 1 {
			target = c
			break
		}
	}
	if target < 0 {
		return nil
	}
	var cell []int
	for v, c := range colors {
		if c == target {
			cell = append(cell, v)
		}
	}
	return cell
}

// rankBy assigns dense ranks 0..k-1 to 0..n-1 consistent with cmp and returns the ranks and k.
func rankBy(n int, cmp func(a, b int) int) ([]int, int) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return cmp(idx[i], idx[j]) < 0
	})
	ranks := make([]int, n)
	k := 0
	for i, v := range idx {
		if i > 0 && cmp(idx[i-1], v) != 0 {
			k++
		}
		ranks[v] = k
	}
	if n > 0 {
		k++
	}
	return ranks, k
}

func countCells(colors []int) int {
	maxColor := -1
	for _, c := range colors {
		if c > maxColor {
			maxColor = c
		}
	}
	return maxColor + 1
}

func invert(colors []int) []int {
	inv := make([]int, len(colors))
	for v, pos := range colors {
		inv[pos] = v
	}
	return inv
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpTuple(a, b [3]int64) int {
	for i := range a {
		if c := cmpInt64(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func cmpCert(a, b []int64) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := cmpInt64(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt64(int64(len(a)), int64(len(b)))
}
