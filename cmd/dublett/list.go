package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"dublett/internal/api"
	"dublett/internal/config"
)

func newListCmd(cfg *config.Config, jsonOutput *bool, tenant *string) *cobra.Command {
	var (
		status    string
		groupType string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List duplicate groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, *tenant, func(client *api.Client) error {
				query := url.Values{}
				setIfNotEmpty(query, "status", status)
				setIfNotEmpty(query, "type", groupType)
				if limit > 0 {
					query.Set("limit", strconv.Itoa(limit))
				}
				if offset > 0 {
					query.Set("offset", strconv.Itoa(offset))
				}

				resp, err := client.ListGroups(cmd.Context(), query)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeGroupList(resp)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "resolution status filter (pending, in_progress, resolved, ignored)")
	cmd.Flags().StringVar(&groupType, "type", "", "group type filter (exact, similar, related, fuzzy)")
	cmd.Flags().IntVar(&limit, "limit", 0, "limit results")
	cmd.Flags().IntVar(&offset, "offset", 0, "offset results")

	return cmd
}
