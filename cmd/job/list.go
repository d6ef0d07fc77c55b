package job

import (
	"context"

	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/spf13/cobra"
)

const (
	pageFlag     = "page"
	pageSizeFlag = "page-size"
)

func newList() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists your jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := cmd.Flags().GetInt(pageFlag)
			if err != nil {
				return err
			}
			pageSize, err := cmd.Flags().GetInt(pageSizeFlag)
			if err != nil {
				return err
			}

			return run(cmd, func(ctx context.Context, a *app.App) error {
				jobs, err := a.Client.GetJobs(ctx, page, pageSize)
				if err != nil {
					return err
				}
				return printJobs(cmd.OutOrStdout(), jobs...)
			})
		},
	}

	cmd.Flags().Int(pageFlag, 1, "Page to fetch, starting at 1")
	cmd.Flags().Int(pageSizeFlag, 10, "Jobs per page")

	return cmd
}
