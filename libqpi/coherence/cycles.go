package coherence

import (
	"strconv"
	"strings"

	"github.com/2x3systems/goqpi/qpi"
	"github.com/emirpasic/gods/trees/redblacktree"
)

// Cycle is a closed walk: Cycle[i] -> Cycle[i+1] and the last node back to the first.
type Cycle []qpi.NodeID

// Rotated returns the cycle rotated to start at its minimum node id (direction is kept).
func (cyc Cycle) Rotated() Cycle {
	if len(cyc) == 0 {
		return cyc
	}
	start := 0
	for i, v := range cyc {
		if v < cyc[start] {
			start = i
		}
	}
	out := make(Cycle, 0, len(cyc))
	out = append(out, cyc[start:]...)
	return append(out, cyc[:start]...)
}

// Key returns a stable string form, e.g. "0-3-5".
func (cyc Cycle) Key() string {
	var b strings.Builder
	for i, v := range cyc {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.FormatInt(int64(v), 10))
	}
	return b.String()
}

// CycleComparator orders cycles lexicographically by node id, shorter first on a shared prefix.
func CycleComparator(a, b interface{}) int {
	A, B := a.(Cycle), b.(Cycle)
	for i := 0; i < len(A) && i < len(B); i++ {
		switch {
		case A[i] < B[i]:
			return -1
		case A[i] > B[i]:
			return 1
		}
	}
	return len(A) - len(B)
}

// CycleSet is an ordered set of rotated cycles.
type CycleSet struct {
	tree *redblacktree.Tree
}

func NewCycleSet() *CycleSet {
	return &CycleSet{
		tree: redblacktree.NewWith(CycleComparator),
	}
}

// Add inserts cyc (rotated) and reports if it was not already present.
func (set *CycleSet) Add(cyc Cycle) bool {
	key := cyc.Rotated()
	if _, found := set.tree.Get(key); found {
		return false
	}
	set.tree.Put(key, struct{}{})
	return true
}

func (set *CycleSet) Contains(cyc Cycle) bool {
	_, found := set.tree.Get(cyc.Rotated())
	return found
}

func (set *CycleSet) Len() int {
	return set.tree.Size()
}

// Cycles returns the members in ascending order.
func (set *CycleSet) Cycles() []Cycle {
	keys := set.tree.Keys()
	cycles := make([]Cycle, len(keys))
	for i, k := range keys {
		cycles[i] = k.(Cycle)
	}
	return cycles
}

// CycleBasis returns the distinct cycles of X's fundamental cycle basis, rotated and in ascending order.
func CycleBasis(X *qpi.Graph) ([]Cycle, error) {
	L, err := newLayout(X)
	if err != nil {
		return nil, err
	}
	set := NewCycleSet()
	for _, cyc := range L.fundamentalCycles() {
		nodes := make(Cycle, len(cyc))
		for i, p := range cyc {
			nodes[i] = L.ids[p]
		}
		set.Add(nodes)
	}
	return set.Cycles(), nil
}
