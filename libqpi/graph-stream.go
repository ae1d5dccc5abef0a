package libqpi

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/2x3systems/goqpi/libqpi/catalog"
	"github.com/2x3systems/goqpi/libqpi/coherence"
	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"golang.org/x/sync/errgroup"
)

// GraphStream is a stage of a graph pipeline.  Each stage runs in its own goroutine, reads the previous
// stage's Outlet, and closes its own Outlet when its input is exhausted.
//
// A stage that cannot process a graph drops it and records the error; the first recorded error is returned
// by the terminal call (Collect, PullAll, or Measure).
type GraphStream struct {
	Outlet chan *qpi.Graph
	errs   *streamErr
}

type streamErr struct {
	mu  sync.Mutex
	err error
}

func (se *streamErr) set(err error) {
	se.mu.Lock()
	if se.err == nil {
		se.err = err
	}
	se.mu.Unlock()
}

func (se *streamErr) get() error {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.err
}

func NewGraphStream() *GraphStream {
	return &GraphStream{
		Outlet: make(chan *qpi.Graph),
		errs:   &streamErr{},
	}
}

func (stream *GraphStream) next() *GraphStream {
	return &GraphStream{
		Outlet: make(chan *qpi.Graph, 1),
		errs:   stream.errs,
	}
}

// StreamGraphs sends each given graph and closes.
func StreamGraphs(graphs ...*qpi.Graph) *GraphStream {
	next := NewGraphStream()

	go func() {
		for _, X := range graphs {
			next.Outlet <- X
		}
		next.Close()
	}()

	return next
}

// ParseGraphs sends the graph parsed from each expression.  Expressions that fail to parse are dropped.
func ParseGraphs(exprs ...string) *GraphStream {
	next := NewGraphStream()

	go func() {
		for i, expr := range exprs {
			X, err := ParseGraph(expr)
			if err != nil {
				next.errs.set(errors.Wrapf(err, "expr #%d", i))
				continue
			}
			next.Outlet <- X
		}
		next.Close()
	}()

	return next
}

func (stream *GraphStream) Close() {
	if stream.Outlet != nil {
		close(stream.Outlet)
	}
}

// Err returns the first error recorded by any stage of this pipeline so far.
func (stream *GraphStream) Err() error {
	return stream.errs.get()
}

// PullAll drains the stream and returns the number of graphs received.
func (stream *GraphStream) PullAll() (int, error) {
	count := 0
	for range stream.Outlet {
		count++
	}
	return count, stream.Err()
}

// Collect drains the stream into a slice.
func (stream *GraphStream) Collect() ([]*qpi.Graph, error) {
	var graphs []*qpi.Graph
	for X := range stream.Outlet {
		graphs = append(graphs, X)
	}
	return graphs, stream.Err()
}

// Validate passes each graph that validates and drops (and records) each one that doesn't.
func (stream *GraphStream) Validate() *GraphStream {
	next := stream.next()

	go func() {
		count := 0
		for X := range stream.Outlet {
			count++
			if _, err := qpi.Validate(X); err != nil {
				klog.V(2).Infof("dropping graph #%d: %v", count, err)
				next.errs.set(errors.Wrapf(err, "graph #%d", count))
				continue
			}
			next.Outlet <- X
		}
		next.Close()
	}()

	return next
}

// AddTo offers each graph to target and passes only the graphs target reports as newly added.
func (stream *GraphStream) AddTo(target qpi.GraphAdder) *GraphStream {
	next := stream.next()

	go func() {
		for X := range stream.Outlet {
			wasAdded, err := target.TryAddGraph(X)
			if err != nil {
				next.errs.set(err)
				continue
			}
			if wasAdded {
				next.Outlet <- X
			}
		}
		next.Close()
	}()

	return next
}

// DropDupes passes each distinct graph (by content hash) once.
func (stream *GraphStream) DropDupes() *GraphStream {
	set := catalog.NewDropDupes()
	added := stream.AddTo(set)
	next := added.next()

	go func() {
		for X := range added.Outlet {
			next.Outlet <- X
		}
		if err := set.Close(); err != nil {
			next.errs.set(err)
		}
		next.Close()
	}()

	return next
}

// SelectFromCatalog streams the graphs of cat that match sel.
func SelectFromCatalog(cat *catalog.Catalog, sel catalog.Selector) *GraphStream {
	next := NewGraphStream()

	go func() {
		if err := cat.Select(sel, next.Outlet); err != nil {
			next.errs.set(err)
		}
		next.Close()
	}()

	return next
}

// Print writes one line per graph, "<label>,<count>,<graph expr>", and passes each graph on.
func (stream *GraphStream) Print(out io.Writer, label string) *GraphStream {
	next := stream.next()

	go func() {
		buf := strings.Builder{}
		buf.Grow(256)

		count := 0
		for X := range stream.Outlet {
			if len(label) > 0 {
				buf.WriteString(label)
				buf.WriteByte(',')
			}
			count++
			fmt.Fprintf(&buf, "%06d,", count)
			X.WriteAsString(&buf)
			buf.WriteByte('\n')
			if _, err := io.WriteString(out, buf.String()); err != nil {
				next.errs.set(err)
			}
			buf.Reset()
			next.Outlet <- X
		}
		next.Close()
	}()

	return next
}

// Measurement is the coherence evaluation of the Index-th graph to reach Measure.
type Measurement struct {
	Index  int
	Graph  *qpi.Graph
	Hash   qpi.Hash
	Report coherence.Report
}

// Measure drains the stream, evaluating coherence on up to workers goroutines, and returns the results in
// arrival order.  It stops evaluating at the first error but still drains its input.
func (stream *GraphStream) Measure(ctx context.Context, w coherence.Weights, workers int) ([]Measurement, error) {
	if err := w.Validate(); err != nil {
		for range stream.Outlet {
		}
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)

	var pending []*Measurement
	for X := range stream.Outlet {
		if grpCtx.Err() != nil {
			continue
		}
		m := &Measurement{
			Index: len(pending),
			Graph: X,
		}
		pending = append(pending, m)
		grp.Go(func() error {
			report, err := coherence.Evaluate(m.Graph, w)
			if err != nil {
				return errors.Wrapf(err, "graph #%d", m.Index)
			}
			m.Report = report
			m.Hash = qpi.ContentHash(m.Graph)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	results := make([]Measurement, len(pending))
	for i, m := range pending {
		results[i] = *m
	}
	return results, nil
}
