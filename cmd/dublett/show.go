package main

import (
	"github.com/spf13/cobra"

	"dublett/internal/api"
	"dublett/internal/config"
)

func newShowCmd(cfg *config.Config, jsonOutput *bool, tenant *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <group-id>",
		Short: "Show duplicate group details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, *tenant, func(client *api.Client) error {
				resp, err := client.GetGroup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeGroupDetail(resp)
			})
		},
	}
}
