package main

import (
	"github.com/spf13/cobra"

	"dublett/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		tenant     string
	)

	cmd := &cobra.Command{
		Use:   "dublett",
		Short: "Dublett detects and resolves duplicate documents in housing cooperative archives",
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&tenant, "tenant", "", "tenant (cooperative) to act for; defaults to DUBLETT_TENANT")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newIngestCmd(cfg, &jsonOutput, &tenant),
		newListCmd(cfg, &jsonOutput, &tenant),
		newShowCmd(cfg, &jsonOutput, &tenant),
		newResolveCmd(cfg, &jsonOutput, &tenant),
		newAutoResolveCmd(cfg, &jsonOutput, &tenant),
		newActionsCmd(cfg, &jsonOutput, &tenant),
		newAdminCmd(cfg, &jsonOutput, &tenant),
		newInfoCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
	)

	return cmd
}
