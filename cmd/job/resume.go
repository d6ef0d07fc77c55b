package job

import (
	"context"

	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/jobstore"
	"github.com/kashguard/go-horde-sdk/internal/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newResume() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Waits for every job remembered in a queue",
		Long: `Waits for every job remembered in a queue, e.g. after the process that created
them was restarted. Finished jobs are forgotten and printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) error {
				return resumeCmdFunc(ctx, cmd, a)
			})
		},
	}

	cmd.Flags().String(queueFlag, "", "Queue to resume, defaults to HORDE_JOB_QUEUE")
	addWaitFlags(cmd)

	return cmd
}

func resumeCmdFunc(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	log := util.LogFromContext(ctx)

	queue, _ := cmd.Flags().GetString(queueFlag)
	if queue == "" {
		queue = a.Config.JobQueue
	}
	if queue == "" {
		return errors.Wrap(jobstore.ErrEmptyQueue, "use --queue or HORDE_JOB_QUEUE")
	}
	warnVolatileQueue(ctx, a, queue)

	pending, err := a.Store.Pending(ctx, queue)
	if err != nil {
		return err
	}
	log.Info().Str("queue", queue).Int("pending", len(pending)).Msg("Resuming jobs")

	var failed int
	for _, id := range pending {
		j, err := a.Client.GetJob(ctx, id)
		if err != nil {
			var notFound *horde.NotFoundError
			if errors.As(err, &notFound) {
				log.Warn().Str("job_uuid", id).Msg("Job is unknown to the facilitator, forgetting it")
				if err := a.Store.Remove(ctx, queue, id); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if err := finish(ctx, cmd, a, queue, j); err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Error().Err(err).Str("job_uuid", id).Msg("Job did not succeed")
			failed++
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d jobs did not succeed", failed, len(pending))
	}
	return nil
}
