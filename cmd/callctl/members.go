package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkeye/Chorus/internal/adapters/transport"
	"github.com/dkeye/Chorus/internal/domain"
)

var membersCmd = &cobra.Command{
	Use:   "members <room-id>",
	Short: "List the users currently in a room's call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := transport.NewClient(cfg.Client.ServerURL, cfg.Client.RequestTimeout)
		if err != nil {
			return err
		}
		members, err := client.Members(cmd.Context(), domain.RoomID(args[0]))
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(members) == 0 {
			fmt.Fprintln(out, "no one is in the call")
			return nil
		}
		for _, m := range members {
			fmt.Fprintln(out, m)
		}
		return nil
	},
}
