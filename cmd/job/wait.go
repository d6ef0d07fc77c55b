package job

import (
	"context"

	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/spf13/cobra"
)

func newWait() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait <job-uuid>",
		Short: "Waits for a job to finish and prints its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) error {
				j, err := a.Client.GetJob(ctx, args[0])
				if err != nil {
					return err
				}

				queue, _ := cmd.Flags().GetString(queueFlag)
				return finish(ctx, cmd, a, queue, j)
			})
		},
	}

	cmd.Flags().String(queueFlag, "", "Forget the job in this queue once it finished")
	addWaitFlags(cmd)

	return cmd
}
