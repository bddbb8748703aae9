package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dublett/internal/api"
	"dublett/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeGroupList(resp api.ListGroupsResponse) error {
	for _, group := range resp.Groups {
		if err := writePlain("%s\n", formatGroupLine(group)); err != nil {
			return err
		}
	}
	return writePlain("%d groups (of %d), %d pending, %d duplicates, ~%s reclaimable\n",
		len(resp.Groups),
		resp.Total,
		resp.Summary.PendingGroups,
		resp.Summary.TotalDuplicates,
		humanize.Bytes(uint64(resp.Summary.PotentialSavingsBytes)),
	)
}

func writeGroupDetail(group api.GroupResponse) error {
	lines := []string{
		fmt.Sprintf("id: %s", group.ID),
		fmt.Sprintf("tenant: %s", group.TenantID),
		fmt.Sprintf("type: %s", group.GroupType),
		fmt.Sprintf("status: %s", group.ResolutionStatus),
		fmt.Sprintf("strategy: %s", group.ResolutionStrategy),
		fmt.Sprintf("auto_resolvable: %t", group.AutoResolvable),
		fmt.Sprintf("master: %s", group.MasterFileID),
		fmt.Sprintf("files: %d (%s)", group.TotalFiles, humanize.Bytes(uint64(group.TotalSizeBytes))),
		fmt.Sprintf("created_at: %s", formatTime(group.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(group.UpdatedAt)),
	}
	if group.ClaimedBy != "" {
		lines = append(lines, fmt.Sprintf("claimed_by: %s", group.ClaimedBy))
	}

	keepFlagged := map[string]bool{}
	for _, member := range group.Members {
		if member.KeepFlag {
			keepFlagged[member.FileID] = true
		}
	}
	if len(group.Files) > 0 {
		lines = append(lines, "members:")
		for _, file := range group.Files {
			marks := make([]string, 0, 2)
			if file.ID == group.MasterFileID {
				marks = append(marks, "master")
			}
			if keepFlagged[file.ID] {
				marks = append(marks, "keep")
			}
			suffix := ""
			if len(marks) > 0 {
				suffix = " [" + strings.Join(marks, ",") + "]"
			}
			lines = append(lines, fmt.Sprintf("  - %s %s (%s)%s",
				file.ID, file.Name, humanize.Bytes(uint64(file.SizeBytes)), suffix))
		}
	}

	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatGroupLine(group api.GroupResponse) string {
	marker := "○"
	switch group.ResolutionStatus {
	case "resolved":
		marker = "●"
	case "ignored":
		marker = "◌"
	case "in_progress":
		marker = "◐"
	}
	return fmt.Sprintf("%s %s [%s] %d files, %s",
		marker, group.ID, group.GroupType, group.TotalFiles, humanize.Bytes(uint64(group.TotalSizeBytes)))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
