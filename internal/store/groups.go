package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dublett/internal/models"
)

// GroupFilter narrows group listings. TenantID is mandatory: the engine
// never lists groups across tenants.
type GroupFilter struct {
	TenantID string
	Statuses []string
	Types    []string
	Limit    int
	Offset   int
}

// GroupUpdate describes fields to update on a group.
type GroupUpdate struct {
	GroupType          *string
	ResolutionStatus   *string
	ResolutionStrategy *string
	AutoResolveEnabled *bool
	MasterFileID       *string
	TotalFiles         *int
	TotalSizeBytes     *int64
	ClaimedBy          *string
	ClaimedAt          *time.Time
	ClearClaim         bool
	UpdatedAt          time.Time
}

// GroupExists checks whether a group exists by id.
func (s *Store) GroupExists(id string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM dup_groups WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateGroup inserts a group, its initial members, and points the member
// files at the group, all in one transaction.
func (s *Store) CreateGroup(ctx context.Context, group *models.DupGroup, memberIDs []string) error {
	if group == nil {
		return fmt.Errorf("group is required")
	}
	if len(memberIDs) < 2 {
		return fmt.Errorf("a group requires at least two members")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dup_groups (
			id, tenant_id, group_type, resolution_status, resolution_strategy,
			auto_resolve_enabled, master_file_id, total_files, total_size_bytes,
			claimed_by, claimed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		group.ID,
		group.TenantID,
		group.GroupType,
		group.ResolutionStatus,
		group.ResolutionStrategy,
		boolToInt(group.AutoResolveEnabled),
		group.MasterFileID,
		group.TotalFiles,
		group.TotalSizeBytes,
		nullIfEmpty(group.ClaimedBy),
		nullTime(group.ClaimedAt),
		formatTime(group.CreatedAt),
		formatTime(group.UpdatedAt),
	)
	if err != nil {
		return err
	}

	for _, fileID := range memberIDs {
		if err = insertMember(ctx, tx, group.ID, fileID, group.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetGroup returns a group by id, or nil when absent.
func (s *Store) GetGroup(ctx context.Context, id string) (*models.DupGroup, error) {
	row := s.db.QueryRowContext(ctx, groupSelect+" WHERE id = ?", id)
	return scanGroup(row)
}

// ListGroups returns groups matching the provided filter, newest first.
func (s *Store) ListGroups(ctx context.Context, filter GroupFilter) ([]models.DupGroup, error) {
	if filter.TenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	query := groupSelect + " WHERE tenant_id = ?"
	args := []any{filter.TenantID}

	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND resolution_status IN (%s)", placeholders(len(filter.Statuses)))
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if len(filter.Types) > 0 {
		query += fmt.Sprintf(" AND group_type IN (%s)", placeholders(len(filter.Types)))
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}

	query += " ORDER BY updated_at DESC, id ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.DupGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, rows.Err()
}

// ListMembers returns the membership rows of a group.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, file_id, keep_flag, added_at
		FROM group_members WHERE group_id = ? ORDER BY added_at ASC, file_id ASC
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.GroupMember
	for rows.Next() {
		var member models.GroupMember
		var keep int
		var addedAt string
		if err := rows.Scan(&member.GroupID, &member.FileID, &keep, &addedAt); err != nil {
			return nil, err
		}
		member.KeepFlag = keep != 0
		parsed, err := parseTime(addedAt)
		if err != nil {
			return nil, err
		}
		member.AddedAt = parsed
		members = append(members, member)
	}
	return members, rows.Err()
}

// AttachMember adds a file to a group and applies the recomputed group
// fields in one transaction.
func (s *Store) AttachMember(ctx context.Context, groupID, fileID string, update GroupUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertMember(ctx, tx, groupID, fileID, update.UpdatedAt); err != nil {
		return err
	}
	if err = applyGroupUpdate(ctx, tx, groupID, update); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateGroup applies the update to a group outside any membership change.
func (s *Store) UpdateGroup(ctx context.Context, id string, update GroupUpdate) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = applyGroupUpdate(ctx, tx, id, update); err != nil {
		return err
	}
	return tx.Commit()
}

// ClaimGroup atomically claims a group for resolution. The claim succeeds
// when the group is pending, or in progress with a claim older than
// staleBefore (crashed-worker recovery).
func (s *Store) ClaimGroup(ctx context.Context, id, actor string, now, staleBefore time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dup_groups
		SET resolution_status = ?, claimed_by = ?, claimed_at = ?, updated_at = ?
		WHERE id = ?
		AND (resolution_status = ? OR (resolution_status = ? AND claimed_at < ?))
	`,
		string(models.StatusInProgress),
		actor,
		formatTime(now),
		formatTime(now),
		id,
		string(models.StatusPending),
		string(models.StatusInProgress),
		formatTime(staleBefore),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ReleaseClaim reverts an in-progress group back to pending without
// resolving it (abandoned or failed resolution attempt).
func (s *Store) ReleaseClaim(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dup_groups
		SET resolution_status = ?, claimed_by = NULL, claimed_at = NULL, updated_at = ?
		WHERE id = ? AND resolution_status = ?
	`, string(models.StatusPending), formatTime(now), id, string(models.StatusInProgress))
	return err
}

// ReleaseStaleClaims reverts all in-progress groups whose claim is older
// than cutoff back to pending. Returns how many groups were released.
func (s *Store) ReleaseStaleClaims(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dup_groups
		SET resolution_status = ?, claimed_by = NULL, claimed_at = NULL, updated_at = ?
		WHERE resolution_status = ? AND claimed_at < ?
	`, string(models.StatusPending), formatTime(now), string(models.StatusInProgress), formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResolveGroup commits a resolution outcome: duplicate file records are
// removed (memberships cascade), retention flags recorded, the group state
// updated, and the audit action appended — all in one transaction.
func (s *Store) ResolveGroup(ctx context.Context, groupID string, deleteFileIDs, keepFileIDs []string, update GroupUpdate, action *models.ResolutionAction) error {
	if action == nil {
		return fmt.Errorf("action is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if len(deleteFileIDs) > 0 {
		args := make([]any, 0, len(deleteFileIDs))
		for _, id := range deleteFileIDs {
			args = append(args, id)
		}
		query := fmt.Sprintf("DELETE FROM files WHERE id IN (%s)", placeholders(len(deleteFileIDs)))
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if len(keepFileIDs) > 0 {
		args := []any{groupID}
		for _, id := range keepFileIDs {
			args = append(args, id)
		}
		query := fmt.Sprintf("UPDATE group_members SET keep_flag = 1 WHERE group_id = ? AND file_id IN (%s)", placeholders(len(keepFileIDs)))
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err = applyGroupUpdate(ctx, tx, groupID, update); err != nil {
		return err
	}
	if err = insertAction(ctx, tx, action); err != nil {
		return err
	}

	return tx.Commit()
}

// CountGroupsByStatus returns group counts per resolution status, across
// all tenants. Used by the info endpoint.
func (s *Store) CountGroupsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT resolution_status, COUNT(*) FROM dup_groups GROUP BY resolution_status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CountGroups returns the number of groups matching a filter, ignoring its
// Limit and Offset. Backs listing pagination.
func (s *Store) CountGroups(ctx context.Context, filter GroupFilter) (int, error) {
	if filter.TenantID == "" {
		return 0, fmt.Errorf("tenant id is required")
	}

	query := "SELECT COUNT(*) FROM dup_groups WHERE tenant_id = ?"
	args := []any{filter.TenantID}

	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND resolution_status IN (%s)", placeholders(len(filter.Statuses)))
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if len(filter.Types) > 0 {
		query += fmt.Sprintf(" AND group_type IN (%s)", placeholders(len(filter.Types)))
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}

	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// GroupSummary aggregates a tenant's duplicate backlog. All three figures
// only count groups still awaiting resolution. PendingGroups narrows
// further to the groups that need a human: manual strategy, or not
// auto-resolvable (non-exact type, toggle off, or a retention flag).
type GroupSummary struct {
	PendingGroups         int   `json:"pending_groups"`
	TotalDuplicates       int   `json:"total_duplicates"`
	PotentialSavingsBytes int64 `json:"potential_storage_savings_bytes"`
}

// SummarizeGroups computes the backlog summary for one tenant. Each
// unresolved group contributes total_files-1 duplicates and, with per-file
// size approximated as total_size/total_files, the size of those
// duplicates as potential savings. The auto-resolvable test here mirrors
// viewAutoResolvable in the engine's query service.
func (s *Store) SummarizeGroups(ctx context.Context, tenantID string) (*GroupSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	summary := &GroupSummary{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN resolution_status IN ('pending', 'in_progress')
				AND (resolution_strategy = 'manual'
					OR group_type != 'exact'
					OR auto_resolve_enabled = 0
					OR EXISTS (SELECT 1 FROM group_members m
						WHERE m.group_id = dup_groups.id AND m.keep_flag = 1))
				THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN resolution_status IN ('pending', 'in_progress')
				THEN total_files - 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN resolution_status IN ('pending', 'in_progress') AND total_files > 0
				THEN (total_size_bytes / total_files) * (total_files - 1) ELSE 0 END), 0)
		FROM dup_groups WHERE tenant_id = ?
	`, tenantID).Scan(&summary.PendingGroups, &summary.TotalDuplicates, &summary.PotentialSavingsBytes)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// KeepFlaggedGroups returns the subset of the given group ids that have at
// least one member flagged for retention.
func (s *Store) KeepFlaggedGroups(ctx context.Context, groupIDs []string) (map[string]bool, error) {
	flagged := map[string]bool{}
	if len(groupIDs) == 0 {
		return flagged, nil
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT group_id FROM group_members WHERE keep_flag = 1 AND group_id IN (%s)",
		placeholders(len(groupIDs)),
	)
	args := make([]any, 0, len(groupIDs))
	for _, id := range groupIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		flagged[id] = true
	}
	return flagged, rows.Err()
}

// StoreInfo reports schema and record counts.
type StoreInfo struct {
	SchemaVersion int            `json:"schema_version"`
	TotalFiles    int            `json:"total_files"`
	TotalGroups   int            `json:"total_groups"`
	GroupCounts   map[string]int `json:"group_counts"`
}

// Info returns store-wide statistics.
func (s *Store) Info(ctx context.Context) (*StoreInfo, error) {
	info := &StoreInfo{}

	version, err := currentVersion(s.db)
	if err != nil {
		return nil, err
	}
	info.SchemaVersion = version

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&info.TotalFiles); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dup_groups").Scan(&info.TotalGroups); err != nil {
		return nil, err
	}

	counts, err := s.CountGroupsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	info.GroupCounts = counts

	return info, nil
}

const groupSelect = `SELECT id, tenant_id, group_type, resolution_status, resolution_strategy,
	auto_resolve_enabled, master_file_id, total_files, total_size_bytes,
	claimed_by, claimed_at, created_at, updated_at FROM dup_groups`

func scanGroup(scanner interface {
	Scan(dest ...any) error
}) (*models.DupGroup, error) {
	var group models.DupGroup
	var groupType, status, strategy string
	var autoResolve int
	var claimedBy, claimedAt sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&group.ID,
		&group.TenantID,
		&groupType,
		&status,
		&strategy,
		&autoResolve,
		&group.MasterFileID,
		&group.TotalFiles,
		&group.TotalSizeBytes,
		&claimedBy,
		&claimedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	group.GroupType = models.GroupType(groupType)
	group.ResolutionStatus = models.ResolutionStatus(status)
	group.ResolutionStrategy = models.ResolutionStrategy(strategy)
	group.AutoResolveEnabled = autoResolve != 0
	group.ClaimedBy = claimedBy.String

	if claimedAt.Valid {
		parsed, err := parseTime(claimedAt.String)
		if err != nil {
			return nil, err
		}
		group.ClaimedAt = &parsed
	}

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	parsedUpdated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	group.CreatedAt = parsedCreated
	group.UpdatedAt = parsedUpdated

	return &group, nil
}

func insertMember(ctx context.Context, tx *sql.Tx, groupID, fileID string, addedAt time.Time) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO group_members (group_id, file_id, keep_flag, added_at) VALUES (?, ?, 0, ?)",
		groupID, fileID, formatTime(addedAt),
	); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "UPDATE files SET group_id = ? WHERE id = ?", groupID, fileID)
	return err
}

func applyGroupUpdate(ctx context.Context, tx *sql.Tx, id string, update GroupUpdate) error {
	set := []string{}
	args := []any{}

	if update.GroupType != nil {
		set = append(set, "group_type = ?")
		args = append(args, *update.GroupType)
	}
	if update.ResolutionStatus != nil {
		set = append(set, "resolution_status = ?")
		args = append(args, *update.ResolutionStatus)
	}
	if update.ResolutionStrategy != nil {
		set = append(set, "resolution_strategy = ?")
		args = append(args, *update.ResolutionStrategy)
	}
	if update.AutoResolveEnabled != nil {
		set = append(set, "auto_resolve_enabled = ?")
		args = append(args, boolToInt(*update.AutoResolveEnabled))
	}
	if update.MasterFileID != nil {
		set = append(set, "master_file_id = ?")
		args = append(args, *update.MasterFileID)
	}
	if update.TotalFiles != nil {
		set = append(set, "total_files = ?")
		args = append(args, *update.TotalFiles)
	}
	if update.TotalSizeBytes != nil {
		set = append(set, "total_size_bytes = ?")
		args = append(args, *update.TotalSizeBytes)
	}
	if update.ClearClaim {
		set = append(set, "claimed_by = NULL", "claimed_at = NULL")
	} else {
		if update.ClaimedBy != nil {
			set = append(set, "claimed_by = ?")
			args = append(args, nullIfEmpty(*update.ClaimedBy))
		}
		if update.ClaimedAt != nil {
			set = append(set, "claimed_at = ?")
			args = append(args, nullTime(update.ClaimedAt))
		}
	}

	set = append(set, "updated_at = ?")
	args = append(args, formatTime(update.UpdatedAt))

	args = append(args, id)
	query := fmt.Sprintf("UPDATE dup_groups SET %s WHERE id = ?", strings.Join(set, ", "))
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
