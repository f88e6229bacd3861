package commands

import (
	"github.com/spf13/cobra"

	"github.com/spachava753/perfcollector/cmd/perfcollector/internal/clierr"
)

func newRemoveErrsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove_errs",
		Short: "Remove failed benchmark outcomes so they are run again",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr(), setup{commits: true})
			if err != nil {
				return err
			}
			defer a.finish()

			return a.collector.RemoveErrors(cmd.Context(), a.commits)
		},
	}
}

func newRemoveBenchmarkCmd(opts *options) *cobra.Command {
	var benchmark string

	cmd := &cobra.Command{
		Use:   "remove_benchmark --benchmark <name>",
		Short: "Remove the data of one benchmark from every record",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if benchmark == "" {
				return clierr.Usagef("required flag \"benchmark\" not set")
			}

			a, err := opts.newApp(cmd.Context(), cmd.ErrOrStderr(), setup{commits: true})
			if err != nil {
				return err
			}
			defer a.finish()

			return a.collector.RemoveBenchmark(cmd.Context(), a.commits, benchmark)
		},
	}

	cmd.Flags().StringVar(&benchmark, "benchmark", "", "benchmark name to remove data for")
	return cmd
}
