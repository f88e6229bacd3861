package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/spachava753/perfcollector/cmd/perfcollector/internal/clierr"
	"github.com/spachava753/perfcollector/internal/models"
	"github.com/spachava753/perfcollector/internal/toolchain"
)

func newBenchCommitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bench_commit <COMMIT>",
		Short: "Benchmark a single merged commit and record the results",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr(), setup{commits: true})
			if err != nil {
				return err
			}
			defer a.finish()

			return a.collector.BenchSHA(cmd.Context(), a.commits, args[0], a.benchmarks)
		},
	}
}

func newBenchLocalCmd(opts *options) *cobra.Command {
	var sha, date, cargo string

	cmd := &cobra.Command{
		Use:   "bench_local --commit <sha> --date <RFC3339> <RUSTC>",
		Short: "Benchmark a local rustc and write the results to stdout",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sha == "" || date == "" {
				return clierr.Usagef("flags \"commit\" and \"date\" are required")
			}
			when, err := time.Parse(time.RFC3339, date)
			if err != nil {
				return clierr.Wrap(clierr.ExitUsage, "invalid --date", err)
			}

			a, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr(), setup{})
			if err != nil {
				return err
			}
			defer a.finish()

			commit := models.Commit{SHA: sha, Date: when.UTC()}
			provider := toolchain.NewLocalProvider(args[0], cargo)
			return a.collector.BenchLocal(cmd.Context(), provider, commit, a.benchmarks, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&sha, "commit", "", "commit hash to associate the results with")
	cmd.Flags().StringVar(&date, "date", "", "date to associate the results with, in RFC3339 format")
	cmd.Flags().StringVar(&cargo, "cargo", "", "cargo binary to build with (default: cargo on PATH)")
	return cmd
}

func newTestBenchmarksCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "test_benchmarks",
		Short: "Check that the benchmarks selected by --filter build with the newest commit",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr(), setup{commits: true, excludeTestBenchmarks: true})
			if err != nil {
				return err
			}
			defer a.finish()

			_, err = a.collector.TestBenchmarks(cmd.Context(), a.commits, a.benchmarks)
			return err
		},
	}
}
