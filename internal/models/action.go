package models

import "time"

// Actor identifiers recorded on resolution actions. Manual actions carry the
// operator's user id supplied by the session service.
const SystemActor = "system"

// ResolutionAction is the append-only audit record of what happened to a
// group. Immutable once written.
type ResolutionAction struct {
	ID                string             `json:"id"`
	GroupID           string             `json:"group_id"`
	TenantID          string             `json:"tenant_id"`
	Strategy          ResolutionStrategy `json:"strategy"`
	Actor             string             `json:"actor"`
	Outcome           ResolutionStatus   `json:"outcome"`
	DeletedCount      int                `json:"deleted_count"`
	ReclaimedBytes    int64              `json:"reclaimed_bytes"`
	InstructionDigest string             `json:"instruction_digest,omitempty"`
	Note              string             `json:"note,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}
