package job

import (
	"context"

	"github.com/go-openapi/swag"
	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/kashguard/go-horde-sdk/internal/util"
	"github.com/spf13/cobra"
)

const (
	correctnessFlag      = "correctness"
	expectedDurationFlag = "expected-duration"
)

func newFeedback() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <job-uuid>",
		Short: "Reports how correct a job's result was",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			correctness, err := cmd.Flags().GetFloat64(correctnessFlag)
			if err != nil {
				return err
			}

			var expectedDuration *float64
			if cmd.Flags().Changed(expectedDurationFlag) {
				d, err := cmd.Flags().GetFloat64(expectedDurationFlag)
				if err != nil {
					return err
				}
				expectedDuration = swag.Float64(d)
			}

			return run(cmd, func(ctx context.Context, a *app.App) error {
				j, err := a.Client.GetJob(ctx, args[0])
				if err != nil {
					return err
				}

				if err := j.SubmitFeedback(ctx, correctness, expectedDuration); err != nil {
					return err
				}

				util.LogFromContext(ctx).Info().Str("job_uuid", j.UUID).Float64("correctness", correctness).Msg("Feedback submitted")
				return nil
			})
		},
	}

	cmd.Flags().Float64(correctnessFlag, 1, "Result correctness between 0 and 1")
	cmd.Flags().Float64(expectedDurationFlag, 0, "Expected job duration in seconds")

	return cmd
}
