package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kashguard/go-horde-sdk/cmd/job"
	"github.com/kashguard/go-horde-sdk/cmd/mockfacilitator"
	"github.com/kashguard/go-horde-sdk/cmd/sign"
	"github.com/kashguard/go-horde-sdk/internal/util/command"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "horde",
	Short: "Compute Horde facilitator client",
	Long: `Submits signed docker jobs to the Compute Horde facilitator and follows them
until they finish.

Configuration is read from HORDE_* environment variables and an optional .env file.`,
	SilenceUsage: true,
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP(command.VerboseFlag, "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		job.New(),
		sign.New(),
		mockfacilitator.New(),
	)
}
