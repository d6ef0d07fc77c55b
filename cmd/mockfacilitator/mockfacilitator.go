package mockfacilitator

import (
	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/kashguard/go-horde-sdk/internal/mockfacilitator"
	"github.com/kashguard/go-horde-sdk/internal/util/command"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	addrFlag  = "addr"
	tokenFlag = "token"
	stepsFlag = "steps"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-facilitator",
		Short: "Runs an in-memory facilitator for local development",
		Long: `Runs an in-memory facilitator that verifies job signatures and walks every job
through the configured statuses, one status per poll.`,
		Args: cobra.NoArgs,
		RunE: runCmdFunc,
	}

	cmd.Flags().String(addrFlag, ":8000", "Listen address")
	cmd.Flags().String(tokenFlag, "", "Required facilitator token, empty accepts any")
	cmd.Flags().StringSlice(stepsFlag, nil, "Statuses a job walks through, defaults to Sent,Accepted,Executor Ready,Completed")

	return cmd
}

func runCmdFunc(cmd *cobra.Command, _ []string) error {
	if _, err := command.LoadConfig(cmd); err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString(addrFlag)
	token, _ := cmd.Flags().GetString(tokenFlag)
	rawSteps, _ := cmd.Flags().GetStringSlice(stepsFlag)

	opts := []mockfacilitator.Option{mockfacilitator.WithToken(token)}
	if len(rawSteps) > 0 {
		steps := make([]horde.Status, 0, len(rawSteps))
		for _, raw := range rawSteps {
			s, err := horde.ParseStatus(raw)
			if err != nil {
				return err
			}
			steps = append(steps, s)
		}
		opts = append(opts, mockfacilitator.WithStatusSteps(steps...))
	}

	log.Info().Str("addr", addr).Str("api", mockfacilitator.APIPrefix).Msg("Starting mock facilitator")
	return mockfacilitator.New(opts...).ListenAndServe(cmd.Context(), addr)
}
