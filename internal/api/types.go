package api

import "dublett/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// UploadResponse is the result of ingesting one document.
type UploadResponse struct {
	File    models.File `json:"file"`
	GroupID string      `json:"group_id,omitempty"`
}

// GroupResponse is one duplicate group. Files and Members are populated on
// the single-group endpoint only.
type GroupResponse struct {
	models.DupGroup
	AutoResolvable bool                 `json:"auto_resolvable"`
	Files          []models.File        `json:"files,omitempty"`
	Members        []models.GroupMember `json:"members,omitempty"`
}

// SummaryResponse aggregates a tenant's duplicate backlog.
type SummaryResponse struct {
	PendingGroups         int   `json:"pending_groups"`
	TotalDuplicates       int   `json:"total_duplicates"`
	PotentialSavingsBytes int64 `json:"potential_storage_savings_bytes"`
}

// ListGroupsResponse is one page of a tenant's groups plus the backlog
// summary.
type ListGroupsResponse struct {
	Groups  []GroupResponse `json:"groups"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	Summary SummaryResponse `json:"summary"`
}

// ResolveRequest asks the server to settle a group.
type ResolveRequest struct {
	Strategy      string   `json:"strategy"`
	Actor         string   `json:"actor,omitempty"`
	DeleteFileIDs []string `json:"delete_file_ids,omitempty"`
	KeepFileIDs   []string `json:"keep_file_ids,omitempty"`
	NewMasterID   string   `json:"new_master_id,omitempty"`
	FalsePositive bool     `json:"false_positive,omitempty"`
	Note          string   `json:"note,omitempty"`
}

// ToggleAutoResolveRequest flips a group's automatic-resolution toggle.
type ToggleAutoResolveRequest struct {
	Enabled bool `json:"enabled"`
}

// ReapResponse reports how many stale claims were reverted.
type ReapResponse struct {
	Released int64 `json:"released"`
}

// AutoResolveRunResponse reports one automatic-resolution sweep.
type AutoResolveRunResponse struct {
	Actions []models.ResolutionAction `json:"actions"`
}

// InfoResponse reports server statistics.
type InfoResponse struct {
	SchemaVersion int            `json:"schema_version"`
	TotalFiles    int            `json:"total_files"`
	TotalGroups   int            `json:"total_groups"`
	GroupCounts   map[string]int `json:"group_counts"`
}
