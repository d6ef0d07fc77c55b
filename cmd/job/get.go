package job

import (
	"context"

	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/spf13/cobra"
)

func newGet() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-uuid>",
		Short: "Prints the current state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) error {
				j, err := a.Client.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				return printJobs(cmd.OutOrStdout(), j)
			})
		},
	}
}
