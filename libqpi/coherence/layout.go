package coherence

import (
	"sort"

	"github.com/2x3systems/goqpi/libqpi/canon"
	"github.com/2x3systems/goqpi/qpi"
)

type arc struct {
	to    int
	delta qpi.Offset // wrapped phase(to) - phase(from)
}

// layout is a validated graph re-indexed by canonical position.
//
// Positions depend only on node kinds, adjacency, and the exact phase differences along edges, so a layout is
// the same for a graph, any relabeling of it, and any global phase shift of it.
type layout struct {
	ids []qpi.NodeID // position -> node id
	adj [][]arc      // position -> arcs sorted by target position
}

func newLayout(X *qpi.Graph) (*layout, error) {
	ids := X.SortedNodes()
	n := len(ids)
	index := make(map[qpi.NodeID]int, n)
	for i, v := range ids {
		index[v] = i
	}

	G := &canon.Graph{
		Color: make([]int64, n),
		Arcs:  make([][]canon.Arc, n),
	}
	for i, v := range ids {
		G.Color[i] = int64(X.Labels[v].Kind)
	}
	for _, e := range X.Edges {
		a, b := index[e.A], index[e.B]
		ab, err := qpi.Delta(X.Labels[e.A].Phase, X.Labels[e.B].Phase)
		if err != nil {
			return nil, err
		}
		ba, err := qpi.Delta(X.Labels[e.B].Phase, X.Labels[e.A].Phase)
		if err != nil {
			return nil, err
		}
		G.Arcs[a] = append(G.Arcs[a], canon.Arc{To: b, Label: [2]int64{ab.Num, ab.Den}})
		G.Arcs[b] = append(G.Arcs[b], canon.Arc{To: a, Label: [2]int64{ba.Num, ba.Den}})
	}

	order := canon.Order(G)
	pos := make([]int, n)
	for p, i := range order {
		pos[i] = p
	}

	L := &layout{
		ids: make([]qpi.NodeID, n),
		adj: make([][]arc, n),
	}
	for p, i := range order {
		L.ids[p] = ids[i]
		arcs := make([]arc, 0, len(G.Arcs[i]))
		for _, a := range G.Arcs[i] {
			arcs = append(arcs, arc{
				to:    pos[a.To],
				delta: qpi.Offset{Num: a.Label[0], Den: a.Label[1]},
			})
		}
		sort.Slice(arcs, func(x, y int) bool { return arcs[x].to < arcs[y].to })
		L.adj[p] = arcs
	}
	return L, nil
}

// fundamentalCycles returns one cycle per chord of a BFS spanning forest, as position sequences.
// Walking cycle[k] -> cycle[k+1] (and the last back to the first) traverses each cycle edge once.
func (L *layout) fundamentalCycles() [][]int {
	n := len(L.ids)
	parent := make([]int, n)
	depth := make([]int, n)
	visited := make([]bool, n)

	type pair struct{ a, b int }
	treeEdges := make(map[pair]bool)

	queue := make([]int, 0, n)
	for root := 0; root < n; root++ {
		if visited[root] {
			continue
		}
		visited[root] = true
		parent[root] = -1
		queue = append(queue[:0], root)
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, a := range L.adj[u] {
				if visited[a.to] {
					continue
				}
				visited[a.to] = true
				parent[a.to] = u
				depth[a.to] = depth[u] + 1
				treeEdges[pair{min(u, a.to), max(u, a.to)}] = true
				queue = append(queue, a.to)
			}
		}
	}

	var cycles [][]int
	for u := 0; u < n; u++ {
		for _, a := range L.adj[u] {
			w := a.to
			if w <= u {
				continue
			}
			key := pair{u, w}
			if treeEdges[key] {
				// the first u-w edge is the tree edge; any parallel copies are chords
				delete(treeEdges, key)
				continue
			}
			cycles = append(cycles, treePath(parent, depth, u, w))
		}
	}
	return cycles
}

// treePath returns u, ..., lca, ..., w along the spanning forest.
func treePath(parent, depth []int, u, w int) []int {
	var up, down []int
	for depth[u] > depth[w] {
		up = append(up, u)
		u = parent[u]
	}
	for depth[w] > depth[u] {
		down = append(down, w)
		w = parent[w]
	}
	for u != w {
		up = append(up, u)
		down = append(down, w)
		u, w = parent[u], parent[w]
	}
	up = append(up, u)
	for i := len(down) - 1; i >= 0; i-- {
		up = append(up, down[i])
	}
	return up
}

// arcDelta returns the phase offset along the arc from -> to.
func (L *layout) arcDelta(from, to int) qpi.Offset {
	arcs := L.adj[from]
	i := sort.Search(len(arcs), func(i int) bool { return arcs[i].to >= to })
	return arcs[i].delta
}
