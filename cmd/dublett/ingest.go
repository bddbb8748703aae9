package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dublett/internal/api"
	"dublett/internal/config"
)

func newIngestCmd(cfg *config.Config, jsonOutput *bool, tenant *string) *cobra.Command {
	var uploader string

	cmd := &cobra.Command{
		Use:   "ingest <file> [<file>...]",
		Short: "Upload documents and run duplicate detection on them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, *tenant, func(client *api.Client) error {
				responses := make([]api.UploadResponse, 0, len(args))
				for _, path := range args {
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					resp, err := client.Upload(cmd.Context(), filepath.Base(path), uploader, f)
					f.Close()
					if err != nil {
						return fmt.Errorf("upload %s: %w", path, err)
					}
					responses = append(responses, resp)
				}

				if *jsonOutput {
					return writeJSON(responses)
				}
				for _, resp := range responses {
					if resp.GroupID != "" {
						_ = writePlain("%s %s -> duplicate group %s\n", resp.File.ID, resp.File.Name, resp.GroupID)
						continue
					}
					_ = writePlain("%s %s\n", resp.File.ID, resp.File.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&uploader, "uploader", "", "member who uploaded the documents")
	return cmd
}
