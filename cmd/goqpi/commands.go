package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/2x3systems/goqpi/libqpi"
	"github.com/2x3systems/goqpi/libqpi/catalog"
	"github.com/2x3systems/goqpi/libqpi/coherence"
	"github.com/2x3systems/goqpi/libqpi/hostbuf"
	"github.com/2x3systems/goqpi/libqpi/resonance"
	"github.com/2x3systems/goqpi/libqpi/rewrite"
	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"github.com/spf13/cobra"
)

// =============================================================================
// INSPECTION
// =============================================================================

func (sess *session) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [graph expr]",
		Short: "Parses and validates a graph, printing its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			X, err := libqpi.ParseGraph(args[0])
			if err != nil {
				return err
			}
			bins, err := qpi.MinimalBins(X)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, X.String())
			fmt.Fprintf(out, "nodes %d, edges %d, minimal bins %d\n", len(X.Nodes), len(X.Edges), bins)
			return nil
		},
	}
}

func (sess *session) coherenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coherence [graph expr]",
		Short: "Prints the coherence score C(G) and its itemization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			X, err := libqpi.ParseGraph(args[0])
			if err != nil {
				return err
			}
			report, err := coherence.Evaluate(X, sess.cfg.Coherence)
			if err != nil {
				return err
			}
			writeReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func writeReport(out io.Writer, report coherence.Report) {
	for _, term := range report.Cycles {
		fmt.Fprintf(out, "cycle %-16s winding %.6f  harmony %.6f\n", term.Nodes.Key(), term.Winding, term.Harmony)
	}
	fmt.Fprintf(out, "cycle term %.12g\n", report.CycleTerm)
	fmt.Fprintf(out, "node term  %.12g\n", report.NodeTerm)
	fmt.Fprintf(out, "C          %.12g\n", report.Total)
}

func (sess *session) signatureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signature [graph expr]",
		Short: "Prints the Omega phase-histogram signature of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			X, err := libqpi.ParseGraph(args[0])
			if err != nil {
				return err
			}
			omega, err := sess.signatureOf(cmd, X)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bins %d\n", omega.Bins)
			for i, c := range omega.Counts {
				if c > 0 {
					fmt.Fprintf(out, "bin %3d  count %d  p %.6f\n", i, c, omega.Hist[i])
				}
			}
			for _, cyc := range omega.Cycles {
				fmt.Fprintf(out, "cycle %s\n", cyc.Key())
			}
			return nil
		},
	}
	cmd.Flags().Int("bins", 0, "histogram bin count (0 for the graph's minimal bin count)")
	return cmd
}

func (sess *session) signatureOf(cmd *cobra.Command, X *qpi.Graph) (*resonance.Omega, error) {
	bins, err := sess.bins(cmd)
	if err != nil {
		return nil, err
	}
	if bins, err = libqpi.BinsFor(X, bins); err != nil {
		return nil, err
	}
	return resonance.DeriveSignature(X, bins)
}

func (sess *session) resonanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resonance [graph expr] [reference graph expr]",
		Short: "Scores a graph against the signature of a reference graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphs, err := libqpi.ParseGraphs(args...).Collect()
			if err != nil {
				return err
			}
			X, ref := graphs[0], graphs[1]
			omega, err := sess.signatureOf(cmd, ref)
			if err != nil {
				return errors.Wrap(err, "reference")
			}
			R, err := resonance.Resonance(X, omega)
			if err != nil {
				return err
			}
			S, err := resonance.Similarity(X, omega)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "resonance  %.12g\n", R)
			fmt.Fprintf(out, "similarity %.12g\n", S)
			return nil
		},
	}
	cmd.Flags().Int("bins", 0, "histogram bin count (0 for the reference's minimal bin count)")
	return cmd
}

func (sess *session) hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [graph expr]",
		Short: "Prints the BLAKE3 content hash of a graph's canonical encoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			X, err := libqpi.ParseGraph(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), qpi.ContentHash(X).String())
			return nil
		},
	}
}

// =============================================================================
// REWRITING
// =============================================================================

func (sess *session) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule [graph expr]",
		Short: "Ranks every applicable rewrite of a graph by predicted ΔC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			X, err := libqpi.ParseGraph(args[0])
			if err != nil {
				return err
			}
			props := rewrite.Propose(X)
			if err = rewrite.ScoreAll(cmd.Context(), X, props, sess.cfg.Rewrite, sess.cfg.Workers); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, c := range rewrite.Schedule(rewrite.Candidates(props)) {
				fmt.Fprintf(out, "%3d  %v\n", i+1, c)
			}
			for _, p := range props {
				if p.Stage == rewrite.StageRejected {
					klog.V(1).Infof("rejected %v: %v", p.Rewrite, p.Err)
				}
			}
			return nil
		},
	}
}

func (sess *session) evolveCmd() *cobra.Command {
	var (
		steps       int
		catalogPath string
	)
	cmd := &cobra.Command{
		Use:   "evolve [graph expr]",
		Short: "Repeatedly applies the best rewrite until convergence, recurrence, or the step limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			X, err := libqpi.ParseGraph(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("steps") {
				steps = sess.cfg.MaxSteps
			}
			if !cmd.Flags().Changed("catalog") {
				catalogPath = sess.cfg.Catalog
			}

			opts := rewrite.EvolveOpts{
				MaxSteps: steps,
			}
			if catalogPath != "" {
				archive, err := catalog.Open(qpi.CatalogOpts{
					DbPathName: catalogPath,
				})
				if err != nil {
					return err
				}
				defer archive.Close()

				seen, err := newArchivingSet(archive)
				if err != nil {
					return err
				}
				defer seen.Close()
				opts.Seen = seen
			}

			tr, err := sess.cfg.Engine().Evolve(cmd.Context(), X, opts)
			if err != nil {
				return err
			}
			writeTrace(cmd.OutOrStdout(), tr)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "maximum number of rewrites to apply")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog that records every visited graph")
	return cmd
}

func writeTrace(out io.Writer, tr *rewrite.Trace) {
	fmt.Fprintf(out, "run %s\n", tr.RunID)
	fmt.Fprintf(out, "step   0  C %.12g  %s\n", tr.Start, tr.Initial.String())
	for _, s := range tr.Steps {
		fmt.Fprintf(out, "step %3d  C %.12g  %s  %v ΔC=%.6g\n", s.Index+1, s.After, s.Hash.String(), s.Rewrite, s.DeltaC)
	}
	fmt.Fprintf(out, "halt %v\n", tr.Halt)
	fmt.Fprintf(out, "final %v\n", tr.Final)
}

// archivingSet tracks the states of a single run in memory and also records each new state in a persistent
// catalog.  Recurrence is judged by the run's own states only.
type archivingSet struct {
	*catalog.Catalog
	archive *catalog.Catalog
}

func newArchivingSet(archive *catalog.Catalog) (*archivingSet, error) {
	run, err := catalog.NewGraphSet()
	if err != nil {
		return nil, err
	}
	return &archivingSet{
		Catalog: run,
		archive: archive,
	}, nil
}

func (set *archivingSet) TryAddGraph(X *qpi.Graph) (bool, error) {
	added, err := set.Catalog.TryAddGraph(X)
	if err != nil || !added {
		return added, err
	}
	if _, err = set.archive.TryAddGraph(X); err != nil {
		return false, errors.Wrap(err, "archive")
	}
	return true, nil
}

// =============================================================================
// HOST BUFFERS
// =============================================================================

func (sess *session) packCmd() *cobra.Command {
	var (
		maxNodes int64
		outPath  string
	)
	cmd := &cobra.Command{
		Use:   "pack [graph expr]",
		Short: "Writes a graph as packed little-endian Params and Spider records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			X, err := libqpi.ParseGraph(args[0])
			if err != nil {
				return err
			}
			bins, err := sess.bins(cmd)
			if err != nil {
				return err
			}
			if bins, err = libqpi.BinsFor(X, bins); err != nil {
				return err
			}
			if maxNodes == 0 {
				maxNodes = int64(len(X.Nodes))
			}
			params, err := hostbuf.NewParams(maxNodes, int64(bins))
			if err != nil {
				return err
			}
			buf, err := hostbuf.Pack(X, params)
			if err != nil {
				return err
			}
			if err = os.WriteFile(outPath, buf, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes (%d spiders, %d bins) to %s\n", len(buf), len(X.Nodes), bins, outPath)
			return nil
		},
	}
	cmd.Flags().Int("bins", 0, "phase bin count (0 for the graph's minimal bin count)")
	cmd.Flags().Int64Var(&maxNodes, "max-nodes", 0, "node capacity of the buffer (0 for the graph's node count)")
	cmd.Flags().StringVar(&outPath, "out", "", "output file")
	cmd.MarkFlagRequired("out")
	return cmd
}

// =============================================================================
// SCRIPTING
// =============================================================================

func (sess *session) scriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "script [file.py]",
		Short: "Runs a Python script with the _pyqpi module available, or a REPL when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runPython("")
			}
			pathname := args[0]
			klog.V(1).Infof("running %s", pathname)
			start := time.Now()
			if err := runPython(pathname); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok in %v\n", pathname, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
