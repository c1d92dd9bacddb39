package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and reset player sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsCountCmd())
	cmd.AddCommand(newSessionsResetCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result SessionList

			if err := client.Get(cmd.Context(), "/api/v1/admin/sessions", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newSessionsCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := CountResult{label: "Sessions"}

			if err := client.Get(cmd.Context(), "/api/v1/admin/sessions/count", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newSessionsResetCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every session and release all room seats",
		Long: `Remove every session on the server. Players stay connected but must log in
again; their next command is answered with NoSession.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to reset sessions without --yes")
			}

			var result ResetResult

			if err := client.Delete(cmd.Context(), "/api/v1/admin/sessions", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the reset")

	return cmd
}
