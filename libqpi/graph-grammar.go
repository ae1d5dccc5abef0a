package libqpi

import (
	"strconv"

	"github.com/2x3systems/goqpi/qpi"
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

// GraphExpr is a graph written as a node list followed by edge runs, e.g. "0:Z(1/4), 1:X, 2:Z; 0-1-2-0".
type GraphExpr struct {
	Nodes []*NodeExpr `(@@ ("," @@)*)?`
	Runs  []*EdgeRun  `(";" (@@ ("," @@)*)?)?`
}

type NodeExpr struct {
	ID    int64      `@Int ":"`
	Kind  string     `@Kind`
	Phase *PhaseExpr `("(" @@ ")")?`
}

// PhaseExpr is n/d in units of π.  Out-of-range numerators are reduced when parsed.
type PhaseExpr struct {
	Num string `@("-"? Int) "/"`
	Den string `@("-"? Int)`
}

// EdgeRun is a walk a-b-c-... contributing one edge per step.
type EdgeRun struct {
	Start int64   `@Int`
	Next  []int64 `("-" @Int)+`
}

var sGraphLexer = lexer.MustSimple([]lexer.SimpleRule{
	{"Int", `[0-9]+`},
	{"Kind", `[ZXAB]`},
	{"Punct", `[-,;:()/]`},
	{"whitespace", `[ \t\r\n]+`},
})

var parseGraphExpr = participle.MustBuild[GraphExpr](
	participle.Lexer(sGraphLexer),
)

var kindOf = map[string]qpi.Kind{
	"Z": qpi.KindZ,
	"X": qpi.KindX,
	"A": qpi.KindA,
	"B": qpi.KindB,
}

func (expr *PhaseExpr) phase() (qpi.Phase, error) {
	if expr == nil {
		return qpi.Zero, nil
	}
	n, err := strconv.ParseInt(expr.Num, 10, 64)
	if err != nil {
		return qpi.Phase{}, errors.Wrap(qpi.ErrBadGraphExpr, err.Error())
	}
	d, err := strconv.ParseInt(expr.Den, 10, 64)
	if err != nil {
		return qpi.Phase{}, errors.Wrap(qpi.ErrBadGraphExpr, err.Error())
	}
	return qpi.Canonicalize(n, d)
}

// Graph builds and validates the Graph described by expr.
func (expr *GraphExpr) Graph() (*qpi.Graph, error) {
	X := &qpi.Graph{
		Nodes:  make([]qpi.NodeID, 0, len(expr.Nodes)),
		Labels: make(map[qpi.NodeID]qpi.NodeLabel, len(expr.Nodes)),
	}
	for _, node := range expr.Nodes {
		v := qpi.NodeID(node.ID)
		if _, dup := X.Labels[v]; dup {
			return nil, errors.Wrapf(qpi.ErrDuplicateNode, "node %d", v)
		}
		p, err := node.Phase.phase()
		if err != nil {
			return nil, errors.Wrapf(err, "node %d", v)
		}
		X.Nodes = append(X.Nodes, v)
		X.Labels[v] = qpi.NodeLabel{
			Kind:  kindOf[node.Kind],
			Phase: p,
		}
	}
	for _, run := range expr.Runs {
		at := qpi.NodeID(run.Start)
		for _, next := range run.Next {
			X.Edges = append(X.Edges, qpi.Edge{A: at, B: qpi.NodeID(next)})
			at = qpi.NodeID(next)
		}
	}
	return qpi.Validate(X)
}

// ParseGraph parses a graph expression into a validated Graph.  Graph.String() output parses back to an equal graph.
func ParseGraph(graphExpr string) (*qpi.Graph, error) {
	expr, err := parseGraphExpr.ParseString("", graphExpr)
	if err != nil {
		return nil, errors.Wrap(qpi.ErrBadGraphExpr, err.Error())
	}
	return expr.Graph()
}

// MustParseGraph is ParseGraph for known-good literals.
func MustParseGraph(graphExpr string) *qpi.Graph {
	X, err := ParseGraph(graphExpr)
	if err != nil {
		panic(err)
	}
	return X
}
