package main

import (
	"github.com/spf13/cobra"

	"dublett/internal/api"
	"dublett/internal/config"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool, tenant *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative maintenance operations",
	}

	cmd.AddCommand(newAdminReapCmd(cfg, jsonOutput, tenant))
	cmd.AddCommand(newAdminSweepCmd(cfg, jsonOutput, tenant))
	return cmd
}

func newAdminReapCmd(cfg *config.Config, jsonOutput *bool, tenant *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Revert stale in-progress claims back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, *tenant, func(client *api.Client) error {
				resp, err := client.AdminReap(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("released %d stale claims\n", resp.Released)
			})
		},
	}
}

func newAdminSweepCmd(cfg *config.Config, jsonOutput *bool, tenant *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Automatically resolve every eligible pending group for the tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, *tenant, func(client *api.Client) error {
				resp, err := client.AdminAutoResolve(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				var reclaimed int64
				for _, action := range resp.Actions {
					reclaimed += action.ReclaimedBytes
				}
				return writePlain("resolved %d groups, reclaimed %d bytes\n", len(resp.Actions), reclaimed)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum groups to resolve in one sweep")
	return cmd
}
