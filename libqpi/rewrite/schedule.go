package rewrite

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/2x3systems/goqpi/qpi"
	"golang.org/x/sync/errgroup"
)

// Candidate is a proposed rewrite and its predicted ΔC.  DeltaC is nil for a candidate that was never scored.
type Candidate struct {
	Rewrite Rewrite
	DeltaC  *float64
	Seq     int // position in the originating proposal list
}

// NewCandidate returns a scored candidate.
func NewCandidate(r Rewrite, deltaC float64) Candidate {
	return Candidate{
		Rewrite: r,
		DeltaC:  &deltaC,
	}
}

// IsWellFormed reports if c carries a finite ΔC.
func (c Candidate) IsWellFormed() bool {
	return c.Rewrite != nil && c.DeltaC != nil && !math.IsNaN(*c.DeltaC) && !math.IsInf(*c.DeltaC, 0)
}

func (c Candidate) String() string {
	if c.DeltaC == nil {
		return fmt.Sprintf("%v ΔC=<none>", c.Rewrite)
	}
	return fmt.Sprintf("%v ΔC=%.6g", c.Rewrite, *c.DeltaC)
}

// Schedule drops candidates without a finite ΔC and returns the rest ordered by ΔC descending.
// Equal ΔC values keep their input order.  Schedule never applies anything.
func Schedule(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.IsWellFormed() {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].DeltaC > *ranked[j].DeltaC
	})
	return ranked
}

// Stage is the state of a Proposal within one rewrite cycle:
//
//	Proposed -> PreconditionChecked -> Rejected | Scored -> Applied -> Validated | Invalid
//
// Rejected and Invalid are terminal with Err set; Validated is terminal success.
type Stage int

const (
	StageProposed Stage = iota
	StagePreconditionChecked
	StageRejected
	StageScored
	StageApplied
	StageValidated
	StageInvalid
)

var stageNames = [...]string{
	"proposed",
	"precondition-checked",
	"rejected",
	"scored",
	"applied",
	"validated",
	"invalid",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Proposal tracks one candidate through a rewrite cycle.
type Proposal struct {
	Candidate
	Stage Stage
	Err   error
}

// Propose enumerates every candidate site of X in a fixed order: one Fusion per adjacent node pair (lower id
// first, all joining edges in the site), then one ColorFlip per node, both ascending by node id.
func Propose(X *qpi.Graph) []Proposal {
	var props []Proposal
	add := func(r Rewrite) {
		props = append(props, Proposal{
			Candidate: Candidate{Rewrite: r, Seq: len(props)},
			Stage:     StageProposed,
		})
	}

	edges := X.SortedEdges()
	for i := 0; i < len(edges); {
		e := edges[i]
		j := i
		for j < len(edges) && edges[j] == e {
			j++
		}
		add(Fusion{At: Site{
			Nodes: []qpi.NodeID{e.A, e.B},
			Edges: append([]qpi.Edge(nil), edges[i:j]...),
		}})
		i = j
	}
	for _, v := range X.SortedNodes() {
		add(ColorFlip{At: Site{Nodes: []qpi.NodeID{v}}})
	}
	return props
}

// ScoreAll moves each proposal from Proposed to Rejected or Scored.  Scoring runs on up to workers goroutines;
// each reads only X (shared, read-only) and writes only its own proposal.
func ScoreAll(ctx context.Context, X *qpi.Graph, props []Proposal, w Weights, workers int) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if workers < 1 {
		workers = 1
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	for i := range props {
		P := &props[i]
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			P.score(X, w)
			return nil
		})
	}
	return grp.Wait()
}

func (P *Proposal) score(X *qpi.Graph, w Weights) {
	if P.Stage != StageProposed {
		return
	}
	err := P.Rewrite.check(X)
	P.Stage = StagePreconditionChecked
	if err != nil {
		P.Stage = StageRejected
		P.Err = err
		P.DeltaC = nil
		return
	}
	deltaC := P.Rewrite.estimate(X, w)
	P.DeltaC = &deltaC
	P.Stage = StageScored
}

// Candidates returns the candidates of all proposals in proposal order (rejected ones carry no ΔC).
func Candidates(props []Proposal) []Candidate {
	cands := make([]Candidate, len(props))
	for i, P := range props {
		cands[i] = P.Candidate
		cands[i].Seq = i
	}
	return cands
}
