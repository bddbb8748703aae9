package store

import (
	"context"
	"time"

	"dublett/internal/models"
)

// EngineStore is the storage surface the dedup engine mutates groups
// through. All group-mutating methods commit atomically per call.
type EngineStore interface {
	FileExists(id string) (bool, error)
	CreateFile(ctx context.Context, file *models.File) error
	GetFile(ctx context.Context, id string) (*models.File, error)
	ListTenantFiles(ctx context.Context, tenantID, excludeID string, limit int) ([]models.File, error)
	ListGroupFiles(ctx context.Context, groupID string) ([]models.File, error)
	BlobKeyInUse(ctx context.Context, key string, excludeIDs []string) (bool, error)

	GroupExists(id string) (bool, error)
	CreateGroup(ctx context.Context, group *models.DupGroup, memberIDs []string) error
	GetGroup(ctx context.Context, id string) (*models.DupGroup, error)
	ListGroups(ctx context.Context, filter GroupFilter) ([]models.DupGroup, error)
	CountGroups(ctx context.Context, filter GroupFilter) (int, error)
	SummarizeGroups(ctx context.Context, tenantID string) (*GroupSummary, error)
	KeepFlaggedGroups(ctx context.Context, groupIDs []string) (map[string]bool, error)
	ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error)
	AttachMember(ctx context.Context, groupID, fileID string, update GroupUpdate) error
	UpdateGroup(ctx context.Context, id string, update GroupUpdate) error
	ClaimGroup(ctx context.Context, id, actor string, now, staleBefore time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, id string, now time.Time) error
	ReleaseStaleClaims(ctx context.Context, cutoff, now time.Time) (int64, error)
	ResolveGroup(ctx context.Context, groupID string, deleteFileIDs, keepFileIDs []string, update GroupUpdate, action *models.ResolutionAction) error

	ActionExists(id string) (bool, error)
	ListActions(ctx context.Context, groupID string) ([]models.ResolutionAction, error)
	LatestAction(ctx context.Context, groupID string) (*models.ResolutionAction, error)

	Info(ctx context.Context) (*StoreInfo, error)
}

var _ EngineStore = (*Store)(nil)
