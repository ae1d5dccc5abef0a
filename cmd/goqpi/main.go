package main

import (
	"flag"
	"os"
	"strconv"

	"github.com/2x3systems/goqpi/libqpi"
	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"github.com/spf13/cobra"
)

func main() {
	err := newRootCmd().Execute()
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

// session is the state shared by every subcommand of one invocation.
type session struct {
	configPath string
	verbosity  int
	cfg        libqpi.Config
}

func newRootCmd() *cobra.Command {
	sess := &session{}

	rootCmd := &cobra.Command{
		Use:          "goqpi",
		Short:        "Coherence-driven graph rewriting over phase-labelled ZX graphs",
		Long:         `goqpi validates, scores, and evolves graphs written as expressions such as "0:Z(1/4), 1:X, 2:Z; 0-1-2-0".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			sess.initLogging()
			return sess.loadConfig()
		},
	}
	rootCmd.PersistentFlags().StringVar(&sess.configPath, "config", "", "YAML config file overlaid on the defaults")
	rootCmd.PersistentFlags().IntVarP(&sess.verbosity, "verbosity", "v", 0, "klog verbosity level")

	rootCmd.AddCommand(
		sess.validateCmd(),
		sess.coherenceCmd(),
		sess.signatureCmd(),
		sess.resonanceCmd(),
		sess.scheduleCmd(),
		sess.evolveCmd(),
		sess.hashCmd(),
		sess.packCmd(),
		sess.scriptCmd(),
	)
	return rootCmd
}

func (sess *session) initLogging() {
	fset := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	fset.Set("v", strconv.Itoa(sess.verbosity))
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})
}

func (sess *session) loadConfig() error {
	if sess.configPath == "" {
		sess.cfg = libqpi.DefaultConfig()
		return nil
	}
	cfg, err := libqpi.LoadConfig(sess.configPath)
	if err != nil {
		return err
	}
	sess.cfg = cfg
	klog.V(2).Infof("loaded config %q", sess.configPath)
	return nil
}

// bins returns the --bins flag if given, else the configured bin count.
func (sess *session) bins(cmd *cobra.Command) (int, error) {
	bins := sess.cfg.Bins
	if cmd.Flags().Changed("bins") {
		var err error
		if bins, err = cmd.Flags().GetInt("bins"); err != nil {
			return 0, err
		}
	}
	if bins < 0 {
		return 0, errors.Wrapf(qpi.ErrBadConfig, "--bins %d", bins)
	}
	return bins, nil
}
