package models

import "time"

// DupGroup is a cluster of files believed to be duplicates of each other.
type DupGroup struct {
	ID                 string             `json:"id"`
	TenantID           string             `json:"tenant_id"`
	GroupType          GroupType          `json:"group_type"`
	ResolutionStatus   ResolutionStatus   `json:"resolution_status"`
	ResolutionStrategy ResolutionStrategy `json:"resolution_strategy"`
	AutoResolveEnabled bool               `json:"auto_resolve_enabled"`
	MasterFileID       string             `json:"master_file_id"`
	TotalFiles         int                `json:"total_files"`
	TotalSizeBytes     int64              `json:"total_size_bytes"`
	ClaimedBy          string             `json:"claimed_by,omitempty"`
	ClaimedAt          *time.Time         `json:"claimed_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// GroupMember links a file into a duplicate group. KeepFlag marks files an
// operator explicitly retained; a flagged member blocks automatic resolution.
type GroupMember struct {
	GroupID  string    `json:"group_id"`
	FileID   string    `json:"file_id"`
	KeepFlag bool      `json:"keep_flag"`
	AddedAt  time.Time `json:"added_at"`
}
