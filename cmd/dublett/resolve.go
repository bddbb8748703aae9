package main

import (
	"github.com/spf13/cobra"

	"dublett/internal/api"
	"dublett/internal/config"
)

func newResolveCmd(cfg *config.Config, jsonOutput *bool, tenant *string) *cobra.Command {
	var (
		auto          bool
		actor         string
		deleteIDs     []string
		keepIDs       []string
		newMaster     string
		falsePositive bool
		note          string
	)

	cmd := &cobra.Command{
		Use:   "resolve <group-id>",
		Short: "Resolve a duplicate group",
		Long: `Resolve a duplicate group, either automatically (keep the master, delete
every other member) or manually with explicit delete/keep instructions.
Marking a group as a false positive settles it as ignored without deleting
anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, *tenant, func(client *api.Client) error {
				req := api.ResolveRequest{Strategy: "manual"}
				if auto {
					req.Strategy = "automatic"
				} else {
					req.Actor = actor
					req.DeleteFileIDs = deleteIDs
					req.KeepFileIDs = keepIDs
					req.NewMasterID = newMaster
					req.FalsePositive = falsePositive
					req.Note = note
				}

				resp, err := client.Resolve(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("group %s: %v (deleted %v, reclaimed %v bytes)\n",
					args[0], resp["outcome"], resp["deleted_count"], resp["reclaimed_bytes"])
			})
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "resolve automatically (exact groups only)")
	cmd.Flags().StringVar(&actor, "actor", "", "operator performing the resolution")
	cmd.Flags().StringSliceVar(&deleteIDs, "delete", nil, "file ids to delete")
	cmd.Flags().StringSliceVar(&keepIDs, "keep", nil, "file ids to flag for retention")
	cmd.Flags().StringVar(&newMaster, "master", "", "promote this file id to master")
	cmd.Flags().BoolVar(&falsePositive, "false-positive", false, "mark the group as not duplicates and settle it as ignored")
	cmd.Flags().StringVar(&note, "note", "", "note recorded on the audit action")

	return cmd
}
