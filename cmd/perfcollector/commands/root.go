package commands

import (
	"github.com/spf13/cobra"

	"github.com/spachava753/perfcollector/cmd/perfcollector/internal/clierr"
)

// options holds the flags shared by every subcommand.
type options struct {
	filter        string
	syncGit       bool
	outputRepo    string
	configPath    string
	benchmarksDir string
	rustRepo      string
	logLevel      string
	metricsFile   string
}

// NewRootCmd constructs the perfcollector root command.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "perfcollector",
		Short:         "Collects rustc performance data",
		Long:          "perfcollector benchmarks compiler commits that lack performance data and records the results in a git repository.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetOut(cmd.ErrOrStderr())
			_ = cmd.Usage()
			if len(args) > 0 {
				return clierr.Usagef("unknown subcommand %q", args[0])
			}
			return clierr.Usagef("no subcommand given")
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.ExitUsage, "invalid arguments", err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.filter, "filter", "", "run only benchmarks whose name contains this")
	flags.BoolVar(&opts.syncGit, "sync-git", false, "synchronize the output repository with its remote")
	flags.StringVar(&opts.outputRepo, "output-repo", "", "repository to write results to (required)")
	flags.StringVar(&opts.configPath, "config", "perfcollector.yaml", "collector configuration file")
	flags.StringVar(&opts.benchmarksDir, "benchmarks-dir", "", "directory containing the benchmark crates")
	flags.StringVar(&opts.rustRepo, "rust-repo", "", "local clone of the compiler repository")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write run metrics to this file")

	cmd.AddCommand(
		newProcessCmd(opts),
		newBenchCommitCmd(opts),
		newBenchLocalCmd(opts),
		newRemoveErrsCmd(opts),
		newRemoveBenchmarkCmd(opts),
		newTestBenchmarksCmd(opts),
		newRetryCmd(opts),
	)
	return cmd
}
