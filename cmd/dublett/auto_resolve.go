package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dublett/internal/api"
	"dublett/internal/config"
)

func newAutoResolveCmd(cfg *config.Config, jsonOutput *bool, tenant *string) *cobra.Command {
	return &cobra.Command{
		Use:   "auto-resolve <group-id> <on|off>",
		Short: "Enable or disable automatic resolution for a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[1] {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return fmt.Errorf("expected 'on' or 'off', got %q", args[1])
			}

			return withClient(cfg, *tenant, func(client *api.Client) error {
				resp, err := client.ToggleAutoResolve(cmd.Context(), args[0], enabled)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("group %s: auto_resolve_enabled=%t auto_resolvable=%t\n",
					resp.ID, resp.AutoResolveEnabled, resp.AutoResolvable)
			})
		},
	}
}
