package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms [room_id]",
		Short: "Show room occupancy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output, cmd.OutOrStdout())

			if len(args) == 1 {
				id, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid room id %q", args[0])
				}

				var result Room
				if err := client.Get(cmd.Context(), fmt.Sprintf("/api/v1/admin/rooms/%d", id), &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			}

			var result RoomList
			if err := client.Get(cmd.Context(), "/api/v1/admin/rooms", &result); err != nil {
				return err
			}
			out.Print(result)
			return nil
		},
	}
}
