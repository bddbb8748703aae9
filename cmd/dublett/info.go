package main

import (
	"sort"

	"github.com/spf13/cobra"

	"dublett/internal/api"
	"dublett/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show database and server info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, "", func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				_ = writePlain("db_path: %s\n", cfg.DBPath)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("total_files: %d\n", resp.TotalFiles)
				_ = writePlain("total_groups: %d\n", resp.TotalGroups)

				statuses := make([]string, 0, len(resp.GroupCounts))
				for status := range resp.GroupCounts {
					statuses = append(statuses, status)
				}
				sort.Strings(statuses)
				for _, status := range statuses {
					_ = writePlain("  %s: %d\n", status, resp.GroupCounts[status])
				}
				return nil
			})
		},
	}
}
