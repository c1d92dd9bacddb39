package cli

import (
	"github.com/spf13/cobra"
)

func newConnectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "Count live transport connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := CountResult{label: "Connections"}

			if err := client.Get(cmd.Context(), "/api/v1/admin/connections/count", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
