package engine

import (
	"context"
	"fmt"

	"dublett/internal/models"
	"dublett/internal/store"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ListQuery filters a tenant's group listing.
type ListQuery struct {
	TenantID string
	Statuses []models.ResolutionStatus
	Types    []models.GroupType
	Limit    int
	Offset   int
}

// GroupView is a group together with its computed auto-resolvability.
// Auto-resolvability is never stored: it is derived from the group type,
// the auto-resolve toggle, and member keep flags at read time.
type GroupView struct {
	models.DupGroup
	AutoResolvable bool `json:"auto_resolvable"`
}

// GroupPage is one page of a tenant's group listing plus the tenant-wide
// backlog summary.
type GroupPage struct {
	Groups  []GroupView        `json:"groups"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	Summary store.GroupSummary `json:"summary"`
}

// GroupDetail is a group view expanded with its member files.
type GroupDetail struct {
	GroupView
	Files   []models.File        `json:"files"`
	Members []models.GroupMember `json:"members"`
}

// ListGroups returns one page of a tenant's duplicate groups, newest
// activity first. Limit is clamped to [1, MaxPageSize] with a default of
// DefaultPageSize; a negative offset is treated as zero.
func (e *Engine) ListGroups(ctx context.Context, query ListQuery) (*GroupPage, error) {
	if query.TenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	filter := store.GroupFilter{
		TenantID: query.TenantID,
		Statuses: statusStrings(query.Statuses),
		Types:    typeStrings(query.Types),
		Limit:    limit,
		Offset:   offset,
	}

	groups, err := e.store.ListGroups(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := e.store.CountGroups(ctx, filter)
	if err != nil {
		return nil, err
	}
	summary, err := e.store.SummarizeGroups(ctx, query.TenantID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(groups))
	for _, group := range groups {
		ids = append(ids, group.ID)
	}
	flagged, err := e.store.KeepFlaggedGroups(ctx, ids)
	if err != nil {
		return nil, err
	}

	page := &GroupPage{
		Groups:  make([]GroupView, 0, len(groups)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		Summary: *summary,
	}
	for _, group := range groups {
		page.Groups = append(page.Groups, GroupView{
			DupGroup:       group,
			AutoResolvable: viewAutoResolvable(&group, flagged[group.ID]),
		})
	}
	return page, nil
}

// GetGroup returns one group with its member files. TenantID, when set,
// must match the group's tenant.
func (e *Engine) GetGroup(ctx context.Context, tenantID, groupID string) (*GroupDetail, error) {
	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if tenantID != "" && tenantID != group.TenantID {
		return nil, fmt.Errorf("%w: group %s belongs to another tenant", ErrTenantMismatch, groupID)
	}

	files, err := e.store.ListGroupFiles(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := e.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	return &GroupDetail{
		GroupView: GroupView{
			DupGroup:       *group,
			AutoResolvable: AutoResolvable(group, members),
		},
		Files:   files,
		Members: members,
	}, nil
}

// ListActions returns a group's audit trail, oldest first.
func (e *Engine) ListActions(ctx context.Context, tenantID, groupID string) ([]models.ResolutionAction, error) {
	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if tenantID != "" && tenantID != group.TenantID {
		return nil, fmt.Errorf("%w: group %s belongs to another tenant", ErrTenantMismatch, groupID)
	}
	return e.store.ListActions(ctx, groupID)
}

func viewAutoResolvable(group *models.DupGroup, keepFlagged bool) bool {
	if group.ResolutionStatus.Terminal() {
		return false
	}
	return group.GroupType == models.GroupExact && group.AutoResolveEnabled && !keepFlagged
}

func statusStrings(statuses []models.ResolutionStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func typeStrings(types []models.GroupType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
