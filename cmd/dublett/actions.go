package main

import (
	"github.com/spf13/cobra"

	"dublett/internal/api"
	"dublett/internal/config"
)

func newActionsCmd(cfg *config.Config, jsonOutput *bool, tenant *string) *cobra.Command {
	return &cobra.Command{
		Use:   "actions <group-id>",
		Short: "Show the resolution audit trail of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, *tenant, func(client *api.Client) error {
				actions, err := client.ListActions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(actions)
				}
				for _, action := range actions {
					_ = writePlain("%v %v by %v: %v (deleted %v, reclaimed %v bytes)\n",
						action["created_at"], action["strategy"], action["actor"],
						action["outcome"], action["deleted_count"], action["reclaimed_bytes"])
				}
				return nil
			})
		},
	}
}
