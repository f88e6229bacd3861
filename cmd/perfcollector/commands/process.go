package commands

import (
	"github.com/spf13/cobra"

	"github.com/spachava753/perfcollector/cmd/perfcollector/internal/clierr"
)

// usageArgs turns positional argument mistakes into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return clierr.Wrap(clierr.ExitUsage, "invalid arguments", err)
		}
		return nil
	}
}

func newProcessCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Drain the retry queue, then benchmark the newest commits that lack data",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr(), setup{commits: true})
			if err != nil {
				return err
			}
			defer a.finish()

			if err := a.collector.ProcessRetries(cmd.Context(), a.commits, a.benchmarks); err != nil {
				return err
			}
			return a.collector.ProcessCommits(cmd.Context(), a.commits, a.benchmarks)
		},
	}
}

func newRetryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <COMMIT>...",
		Short: "Queue commits to be benchmarked again by the next process run",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr(), setup{commits: true})
			if err != nil {
				return err
			}
			defer a.finish()

			return a.collector.QueueRetry(cmd.Context(), a.commits, args)
		},
	}
}
