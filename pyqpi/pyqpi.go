// Package pyqpi registers the gpython module _pyqpi, exposing graph parsing, coherence, resonance, rewrite
// scheduling, evolution, and catalogs to scripts.
package pyqpi

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/2x3systems/goqpi/libqpi"
	"github.com/2x3systems/goqpi/libqpi/catalog"
	"github.com/2x3systems/goqpi/libqpi/coherence"
	"github.com/2x3systems/goqpi/libqpi/resonance"
	"github.com/2x3systems/goqpi/libqpi/rewrite"
	"github.com/2x3systems/goqpi/qpi"
	"github.com/go-python/gpython/py"
	"github.com/pkg/errors"
)

var (
	LIB_VERSION = "v1.2026.1"
)

var (
	pyGraphType       = py.NewType("Graph", "a validated phase-labeled graph")
	pySignatureType   = py.NewType("Signature", "a phase histogram and cycle signature of a reference graph")
	pyGraphStreamType = py.NewType("GraphStream", "libqpi.GraphStream")
	pyCatalogType     = py.NewType("Catalog", "a content-addressed graph catalog")
)

// pyErr maps library errors onto Python exceptions: domain, structural, and precondition errors are ValueError.
func pyErr(err error) error {
	switch {
	case errors.Is(err, qpi.ErrDomain), errors.Is(err, qpi.ErrStructural), errors.Is(err, qpi.ErrPrecondition):
		return py.ExceptionNewf(py.ValueError, "%v", err)
	}
	return py.ExceptionNewf(py.RuntimeError, "%v", err)
}

type pyGraph struct {
	*qpi.Graph
}

func (X pyGraph) Type() *py.Type {
	return pyGraphType
}

func (X pyGraph) M__str__() (py.Object, error) {
	return py.String(X.String()), nil
}

func (X pyGraph) M__repr__() (py.Object, error) {
	return py.String(fmt.Sprintf("Graph(%q)", X.String())), nil
}

func getGraph(obj py.Object) (*qpi.Graph, error) {
	switch arg := obj.(type) {
	case pyGraph:
		return arg.Graph, nil
	case py.String:
		X, err := libqpi.ParseGraph(string(arg))
		if err != nil {
			return nil, pyErr(err)
		}
		return X, nil
	}
	return nil, py.ExceptionNewf(py.TypeError, "expected Graph object or graph expression (got %v)", obj.Type().Name)
}

func getInt(obj py.Object) (int, error) {
	n, err := py.GetInt(obj)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func nodeTuple(nodes []qpi.NodeID) py.Tuple {
	tup := make(py.Tuple, len(nodes))
	for i, v := range nodes {
		tup[i] = py.Int(v)
	}
	return tup
}

type pySignature struct {
	*resonance.Omega
}

func (omega pySignature) Type() *py.Type {
	return pySignatureType
}

func (omega pySignature) M__str__() (py.Object, error) {
	return py.String(fmt.Sprintf("Signature(bins=%d, cycles=%d, hist=%v)", omega.Bins, len(omega.Cycles), omega.Hist)), nil
}

func py_Parse(module py.Object, args py.Tuple) (py.Object, error) {
	var expr string
	if err := py.LoadTuple(args, []interface{}{&expr}); err != nil {
		return nil, err
	}
	X, err := libqpi.ParseGraph(expr)
	if err != nil {
		return nil, pyErr(err)
	}
	return pyGraph{X}, nil
}

// Arg 1 (int): node count
// Arg 2 (bool, optional): True adds the 0-(n/2) chord
func py_Ring(module py.Object, args py.Tuple) (py.Object, error) {
	if len(args) < 1 {
		return nil, py.ExceptionNewf(py.TypeError, "ring() takes a node count")
	}
	n, err := getInt(args[0])
	if err != nil {
		return nil, err
	}
	seed := libqpi.Ring
	if len(args) > 1 && args[1] == py.True {
		seed = libqpi.RingWithChord
	}
	X, err := seed(n, qpi.DefaultPhaseUnit())
	if err != nil {
		return nil, pyErr(err)
	}
	return pyGraph{X}, nil
}

func py_Coherence(module py.Object, args py.Tuple) (py.Object, error) {
	var obj py.Object
	if err := py.ParseTuple(args, "O", &obj); err != nil {
		return nil, err
	}
	X, err := getGraph(obj)
	if err != nil {
		return nil, err
	}
	C, err := coherence.Coherence(X)
	if err != nil {
		return nil, pyErr(err)
	}
	return py.Float(C), nil
}

// Arg 1 (Graph): reference graph
// Arg 2 (int, optional): bin count; the graph's minimal bin count when omitted
func py_Signature(module py.Object, args py.Tuple) (py.Object, error) {
	if len(args) < 1 {
		return nil, py.ExceptionNewf(py.TypeError, "signature() takes a graph")
	}
	X, err := getGraph(args[0])
	if err != nil {
		return nil, err
	}
	bins := 0
	if len(args) > 1 {
		if bins, err = getInt(args[1]); err != nil {
			return nil, err
		}
		if bins <= 0 {
			return nil, pyErr(errors.Wrapf(qpi.ErrBinCount, "bins = %d", bins))
		}
	}
	if bins, err = libqpi.BinsFor(X, bins); err != nil {
		return nil, pyErr(err)
	}
	omega, err := resonance.DeriveSignature(X, bins)
	if err != nil {
		return nil, pyErr(err)
	}
	return pySignature{omega}, nil
}

func graphAndSignature(args py.Tuple) (*qpi.Graph, *resonance.Omega, error) {
	var graphObj, omegaObj py.Object
	if err := py.ParseTuple(args, "OO", &graphObj, &omegaObj); err != nil {
		return nil, nil, err
	}
	X, err := getGraph(graphObj)
	if err != nil {
		return nil, nil, err
	}
	omega, ok := omegaObj.(pySignature)
	if !ok {
		return nil, nil, py.ExceptionNewf(py.TypeError, "expected Signature object (got %v)", omegaObj.Type().Name)
	}
	return X, omega.Omega, nil
}

func py_Resonance(module py.Object, args py.Tuple) (py.Object, error) {
	X, omega, err := graphAndSignature(args)
	if err != nil {
		return nil, err
	}
	r, err := resonance.Resonance(X, omega)
	if err != nil {
		return nil, pyErr(err)
	}
	return py.Float(r), nil
}

func py_Similarity(module py.Object, args py.Tuple) (py.Object, error) {
	X, omega, err := graphAndSignature(args)
	if err != nil {
		return nil, err
	}
	s, err := resonance.Similarity(X, omega)
	if err != nil {
		return nil, pyErr(err)
	}
	return py.Float(s), nil
}

// Returns a tuple of (kind, nodes, ΔC) for every admissible rewrite, best first.
func py_Schedule(module py.Object, args py.Tuple) (py.Object, error) {
	var obj py.Object
	if err := py.ParseTuple(args, "O", &obj); err != nil {
		return nil, err
	}
	X, err := getGraph(obj)
	if err != nil {
		return nil, err
	}
	props := rewrite.Propose(X)
	if err = rewrite.ScoreAll(context.Background(), X, props, rewrite.DefaultWeights(), 1); err != nil {
		return nil, pyErr(err)
	}
	ranked := rewrite.Schedule(rewrite.Candidates(props))
	out := make(py.Tuple, len(ranked))
	for i, c := range ranked {
		out[i] = py.Tuple{
			py.String(c.Rewrite.Kind().String()),
			nodeTuple(c.Rewrite.Site().Nodes),
			py.Float(*c.DeltaC),
		}
	}
	return out, nil
}

// Arg 1 (Graph): initial graph
// Arg 2 (int, optional): max steps
//
// Returns (final graph, coherence series, halt reason).
func py_Evolve(module py.Object, args py.Tuple) (py.Object, error) {
	if len(args) < 1 {
		return nil, py.ExceptionNewf(py.TypeError, "evolve() takes a graph")
	}
	X, err := getGraph(args[0])
	if err != nil {
		return nil, err
	}
	opts := rewrite.EvolveOpts{}
	if len(args) > 1 {
		if opts.MaxSteps, err = getInt(args[1]); err != nil {
			return nil, err
		}
	}
	tr, err := rewrite.NewEngine().Evolve(context.Background(), X, opts)
	if err != nil {
		return nil, pyErr(err)
	}
	series := tr.Coherence()
	seriesTup := make(py.Tuple, len(series))
	for i, C := range series {
		seriesTup[i] = py.Float(C)
	}
	return py.Tuple{pyGraph{tr.Final}, seriesTup, py.String(tr.Halt.String())}, nil
}

func py_Hash(module py.Object, args py.Tuple) (py.Object, error) {
	var obj py.Object
	if err := py.ParseTuple(args, "O", &obj); err != nil {
		return nil, err
	}
	X, err := getGraph(obj)
	if err != nil {
		return nil, err
	}
	return py.String(qpi.ContentHash(X).String()), nil
}

type pyCatalog struct {
	*catalog.Catalog
}

func (cat pyCatalog) Type() *py.Type {
	return pyCatalogType
}

// Arg 1 (str, optional): db pathname; in-memory when omitted or empty
func py_OpenCatalog(module py.Object, args py.Tuple) (py.Object, error) {
	var opts qpi.CatalogOpts
	if len(args) > 0 {
		if err := py.LoadTuple(args, []interface{}{&opts.DbPathName}); err != nil {
			return nil, err
		}
	}
	cat, err := catalog.Open(opts)
	if err != nil {
		return nil, pyErr(err)
	}
	return pyCatalog{cat}, nil
}

func py_Catalog_Add(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	var obj py.Object
	if err := py.ParseTuple(args, "O", &obj); err != nil {
		return nil, err
	}
	X, err := getGraph(obj)
	if err != nil {
		return nil, err
	}
	added, err := cat.TryAddGraph(X)
	if err != nil {
		return nil, pyErr(err)
	}
	return py.NewBool(added), nil
}

func py_Catalog_Count(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	return py.Int(cat.Count()), nil
}

func py_Catalog_Select(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	sel := catalog.DefaultSelector
	if len(args) > 0 {
		var err error
		if sel.MinNodes, err = getInt(args[0]); err != nil {
			return nil, err
		}
	}
	if len(args) > 1 {
		var err error
		if sel.MaxNodes, err = getInt(args[1]); err != nil {
			return nil, err
		}
	}

	return pyGraphStream{libqpi.SelectFromCatalog(cat.Catalog, sel)}, nil
}

func py_Catalog_Close(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	if cat.Catalog != nil {
		if err := cat.Close(); err != nil {
			return nil, pyErr(err)
		}
	}
	return py.None, nil
}

type pyGraphStream struct {
	*libqpi.GraphStream
}

func (stream pyGraphStream) Type() *py.Type {
	return pyGraphStreamType
}

// Args: graphs or graph expressions
func py_Stream(module py.Object, args py.Tuple) (py.Object, error) {
	graphs := make([]*qpi.Graph, len(args))
	for i, arg := range args {
		X, err := getGraph(arg)
		if err != nil {
			return nil, err
		}
		graphs[i] = X
	}
	return pyGraphStream{libqpi.StreamGraphs(graphs...)}, nil
}

func py_GraphStream_Go(self py.Object, args py.Tuple) (py.Object, error) {
	stream := self.(pyGraphStream)
	count, err := stream.PullAll()
	if err != nil {
		return nil, pyErr(err)
	}
	return py.Int(count), nil
}

var gOutCount = int32(0)

type echoToWriter struct {
	to io.Writer
}

func (echo *echoToWriter) Write(buf []byte) (int, error) {
	if echo.to == nil {
		return os.Stdout.Write(buf)
	}
	return echo.to.Write(buf)
}

// Arg 1 (str, optional): line label; "out[N]" when omitted
func py_GraphStream_Print(self py.Object, args py.Tuple) (py.Object, error) {
	stream := self.(pyGraphStream)
	var label string
	if len(args) > 0 {
		if err := py.LoadTuple(args, []interface{}{&label}); err != nil {
			return nil, err
		}
	}
	n := atomic.AddInt32(&gOutCount, 1)
	if label == "" {
		label = fmt.Sprintf("out[%d]", n)
	}
	return pyGraphStream{stream.Print(&echoToWriter{}, label)}, nil
}

func py_GraphStream_AddTo(self py.Object, args py.Tuple) (py.Object, error) {
	stream := self.(pyGraphStream)
	if len(args) < 1 {
		return nil, py.ExceptionNewf(py.TypeError, "AddTo() takes a Catalog")
	}
	cat, ok := args[0].(pyCatalog)
	if !ok {
		return nil, py.ExceptionNewf(py.TypeError, "expected Catalog object (got %v)", args[0].Type().Name)
	}
	if cat.IsReadOnly() {
		return nil, py.ExceptionNewf(py.PermissionError, "catalog is in read-only mode")
	}
	return pyGraphStream{stream.AddTo(cat.Catalog)}, nil
}

func py_GraphStream_DropDupes(self py.Object, args py.Tuple) (py.Object, error) {
	stream := self.(pyGraphStream)

	return pyGraphStream{stream.DropDupes()}, nil
}

func py_GraphStream_Validate(self py.Object, args py.Tuple) (py.Object, error) {
	stream := self.(pyGraphStream)
	return pyGraphStream{stream.Validate()}, nil
}

func init() {

	{
		pyCatalogType.Dict["Add"] = py.MustNewMethod("Add", py_Catalog_Add, 0, "adds a graph and returns True if it was not already present")
		pyCatalogType.Dict["Count"] = py.MustNewMethod("Count", py_Catalog_Count, 0, "")
		pyCatalogType.Dict["Select"] = py.MustNewMethod("Select", py_Catalog_Select, 0, "streams graphs with min..max nodes")
		pyCatalogType.Dict["Close"] = py.MustNewMethod("Close", py_Catalog_Close, 0, "")
	}

	{
		pyGraphStreamType.Dict["Go"] = py.MustNewMethod("Go", py_GraphStream_Go, 0, "counts the number of graphs output from the GraphStream")
		pyGraphStreamType.Dict["Print"] = py.MustNewMethod("Print", py_GraphStream_Print, 0, "prints each graph from the GraphStream")
		pyGraphStreamType.Dict["AddTo"] = py.MustNewMethod("AddTo", py_GraphStream_AddTo, 0, "")
		pyGraphStreamType.Dict["DropDupes"] = py.MustNewMethod("DropDupes", py_GraphStream_DropDupes, 0, "")
		pyGraphStreamType.Dict["Validate"] = py.MustNewMethod("Validate", py_GraphStream_Validate, 0, "")
	}

	{
		methods := []*py.Method{
			py.MustNewMethod("parse", py_Parse, 0, "parses a graph expression"),
			py.MustNewMethod("ring", py_Ring, 0, "returns a seed ring, optionally with a chord"),
			py.MustNewMethod("coherence", py_Coherence, 0, "returns C(graph)"),
			py.MustNewMethod("signature", py_Signature, 0, "derives a resonance signature"),
			py.MustNewMethod("resonance", py_Resonance, 0, "returns the resonance of a graph against a signature"),
			py.MustNewMethod("similarity", py_Similarity, 0, "returns cycle Jaccard x resonance"),
			py.MustNewMethod("schedule", py_Schedule, 0, "returns (kind, nodes, dC) for each admissible rewrite, best first"),
			py.MustNewMethod("evolve", py_Evolve, 0, "returns (final, coherence series, halt reason)"),
			py.MustNewMethod("hash", py_Hash, 0, "returns the content hash as hex"),
			py.MustNewMethod("open_catalog", py_OpenCatalog, 0, ""),
			py.MustNewMethod("stream", py_Stream, 0, "streams the given graphs"),
		}

		globals := py.StringDict{
			"LIB_VERSION":     py.String(LIB_VERSION),
			"GAUGE_TOLERANCE": py.Float(coherence.GaugeTolerance),
		}

		py.RegisterModule(&py.ModuleImpl{
			Info: py.ModuleInfo{
				Name: "_pyqpi",
				Doc:  "coherence-driven graph rewriting gpython module",
			},
			Methods: methods,
			Globals: globals,
		})
	}
}
