package rewrite

import (
	"context"
	"math"
	"runtime"

	"github.com/2x3systems/goqpi/libqpi/catalog"
	"github.com/2x3systems/goqpi/libqpi/coherence"
	"github.com/2x3systems/goqpi/qpi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

// Engine runs rewrite cycles: propose, check, score, schedule, apply, validate.
type Engine struct {
	Coherence coherence.Weights
	Rules     Weights
	Workers   int     // scoring goroutines
	MinDelta  float64 // a candidate is applied only if its ΔC exceeds this
}

func NewEngine() *Engine {
	return &Engine{
		Coherence: coherence.DefaultWeights(),
		Rules:     DefaultWeights(),
		Workers:   runtime.NumCPU(),
	}
}

// StepResult is the outcome of one rewrite cycle.
type StepResult struct {
	Proposals []Proposal
	Ranked    []Candidate
	Chosen    *Proposal  // nil when no candidate clears MinDelta
	Next      *qpi.Graph // validated successor, nil when Chosen is nil
	Before    float64    // C of the input graph
	After     float64    // C of Next (equal to Before when nothing was applied)
}

// Step runs one rewrite cycle on the validated graph X.
//
// If the applied rewrite yields a graph that fails validation, the chosen proposal ends in StageInvalid and
// the validation error is returned with the partial result.
func (e *Engine) Step(ctx context.Context, X *qpi.Graph) (*StepResult, error) {
	before, err := coherence.Evaluate(X, e.Coherence)
	if err != nil {
		return nil, err
	}

	res := &StepResult{
		Proposals: Propose(X),
		Before:    before.Total,
		After:     before.Total,
	}
	if err = ScoreAll(ctx, X, res.Proposals, e.Rules, e.Workers); err != nil {
		return nil, err
	}
	if klog.V(3) {
		for _, P := range res.Proposals {
			if P.Stage == StageRejected {
				klog.Infof("rejected %v: %v", P.Rewrite, P.Err)
			}
		}
	}

	res.Ranked = Schedule(Candidates(res.Proposals))
	if len(res.Ranked) == 0 || *res.Ranked[0].DeltaC <= e.MinDelta {
		return res, nil
	}

	P := &res.Proposals[res.Ranked[0].Seq]
	res.Chosen = P

	Xnext, err := P.Rewrite.apply(X)
	if err != nil {
		P.Stage, P.Err = StageInvalid, err
		return res, err
	}
	P.Stage = StageApplied

	if _, err = qpi.Validate(Xnext); err != nil {
		P.Stage, P.Err = StageInvalid, err
		return res, err
	}
	P.Stage = StageValidated
	res.Next = Xnext

	after, err := coherence.Evaluate(Xnext, e.Coherence)
	if err != nil {
		return res, err
	}
	res.After = after.Total
	return res, nil
}

// HaltReason says why Evolve stopped.
type HaltReason int

const (
	HaltConverged  HaltReason = iota + 1 // no candidate cleared MinDelta
	HaltMaxSteps                         // step budget exhausted
	HaltRecurrence                       // a previously visited graph reappeared
)

func (h HaltReason) String() string {
	switch h {
	case HaltConverged:
		return "converged"
	case HaltMaxSteps:
		return "max-steps"
	case HaltRecurrence:
		return "recurrence"
	}
	return "unknown"
}

// TraceStep records one applied rewrite.
type TraceStep struct {
	Index   int
	Rewrite Rewrite
	DeltaC  float64  // predicted
	Before  float64  // measured C before
	After   float64  // measured C after
	Hash    qpi.Hash // content hash of the resulting graph
}

// Trace is the history of an Evolve run.
type Trace struct {
	RunID   string
	Initial qpi.Hash
	Start   float64 // C of the initial graph
	Steps   []TraceStep
	Final   *qpi.Graph
	Halt    HaltReason
}

// Coherence returns the measured coherence series: the initial C followed by C after each step.
func (tr *Trace) Coherence() []float64 {
	series := make([]float64, 0, len(tr.Steps)+1)
	series = append(series, tr.Start)
	for _, s := range tr.Steps {
		series = append(series, s.After)
	}
	return series
}

// EvolveOpts parameterizes Evolve.
type EvolveOpts struct {
	MaxSteps int          // <= 0 means 64
	RunID    string       // generated when empty
	Seen     qpi.GraphSet // visited-state set; an in-memory set is used when nil
}

// Evolve repeatedly applies the best-scoring rewrite until convergence, recurrence, or MaxSteps.
func (e *Engine) Evolve(ctx context.Context, X *qpi.Graph, opts EvolveOpts) (*Trace, error) {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 64
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	seen := opts.Seen
	if seen == nil {
		set, err := catalog.NewGraphSet()
		if err != nil {
			return nil, err
		}
		defer set.Close()
		seen = set
	}

	start, err := coherence.Evaluate(X, e.Coherence)
	if err != nil {
		return nil, err
	}
	tr := &Trace{
		RunID:   opts.RunID,
		Initial: qpi.ContentHash(X),
		Start:   start.Total,
		Final:   X,
	}
	if _, err = seen.TryAddGraph(X); err != nil {
		return nil, err
	}

	for step := 0; ; step++ {
		if step >= opts.MaxSteps {
			tr.Halt = HaltMaxSteps
			break
		}
		if err = ctx.Err(); err != nil {
			return tr, err
		}

		res, err := e.Step(ctx, tr.Final)
		if err != nil {
			return tr, errors.Wrapf(err, "run %s step %d", tr.RunID, step)
		}
		if res.Chosen == nil {
			tr.Halt = HaltConverged
			break
		}

		ts := TraceStep{
			Index:   step,
			Rewrite: res.Chosen.Rewrite,
			DeltaC:  *res.Chosen.DeltaC,
			Before:  res.Before,
			After:   res.After,
			Hash:    qpi.ContentHash(res.Next),
		}
		tr.Steps = append(tr.Steps, ts)
		tr.Final = res.Next
		klog.V(2).Infof("run %s step %d: %v ΔC=%.6g C %.6g -> %.6g", tr.RunID, step, ts.Rewrite, ts.DeltaC, ts.Before, ts.After)

		added, err := seen.TryAddGraph(res.Next)
		if err != nil {
			return tr, err
		}
		if !added {
			tr.Halt = HaltRecurrence
			break
		}
	}

	klog.V(2).Infof("run %s halted (%v) after %d steps", tr.RunID, tr.Halt, len(tr.Steps))
	return tr, nil
}

// EchoTime returns the first index of the coherence series at which C drops below theta, or +Inf if it never does.
func EchoTime(tr *Trace, theta float64) float64 {
	for i, C := range tr.Coherence() {
		if C < theta {
			return float64(i)
		}
	}
	return math.Inf(1)
}

// MeanEchoTime averages the finite echo times of the given runs, or returns +Inf if none is finite.
func MeanEchoTime(traces []*Trace, theta float64) float64 {
	sum, count := 0.0, 0
	for _, tr := range traces {
		if tau := EchoTime(tr, theta); !math.IsInf(tau, 1) {
			sum += tau
			count++
		}
	}
	if count == 0 {
		return math.Inf(1)
	}
	return sum / float64(count)
}

// SaddleThreshold returns max(series) / e, the echo threshold used when no explicit theta is given.
func SaddleThreshold(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	peak := series[0]
	for _, C := range series[1:] {
		peak = math.Max(peak, C)
	}
	return peak / math.E
}
