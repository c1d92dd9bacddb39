package cli

import (
	"github.com/spf13/cobra"
)

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Show command and room scheduler statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result SchedulerList

			if err := client.Get(cmd.Context(), "/api/v1/admin/scheduler", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
