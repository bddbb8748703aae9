package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"dublett/internal/models"
	"dublett/internal/store"
)

// Actor identifies who drives a resolution. Manual actions carry the
// operator identity supplied by the session service; the engine trusts it
// but verifies the tenant matches the group.
type Actor struct {
	ID       string
	TenantID string
}

// SystemActor is the automatic-resolution actor.
func SystemActor() Actor {
	return Actor{ID: models.SystemActor}
}

// ManualInstructions is the explicit operator instruction set for manual
// resolution.
type ManualInstructions struct {
	DeleteFileIDs []string `json:"delete_file_ids,omitempty"`
	KeepFileIDs   []string `json:"keep_file_ids,omitempty"`
	NewMasterID   string   `json:"new_master_id,omitempty"`
	FalsePositive bool     `json:"false_positive,omitempty"`
	Note          string   `json:"note,omitempty"`
}

// Resolve drives a group to a terminal state and returns the audit action.
// Re-resolving a settled group with the same instructions is a no-op that
// returns the original action. Invariant violations reject the call with no
// state change.
func (e *Engine) Resolve(ctx context.Context, groupID string, strategy models.ResolutionStrategy, instructions *ManualInstructions, actor Actor) (*models.ResolutionAction, error) {
	release, err := e.locks.acquire(ctx, groupScope(groupID))
	if err != nil {
		return nil, err
	}
	defer release()

	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if actor.TenantID != "" && actor.TenantID != group.TenantID {
		return nil, fmt.Errorf("%w: actor tenant %s, group tenant %s", ErrTenantMismatch, actor.TenantID, group.TenantID)
	}

	digest := instructionDigest(strategy, instructions)

	if group.ResolutionStatus.Terminal() {
		latest, err := e.store.LatestAction(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.InstructionDigest == digest {
			return latest, nil
		}
		return nil, invariantViolation("group %s is already %s", groupID, group.ResolutionStatus)
	}

	files, err := e.store.ListGroupFiles(ctx, groupID)
	if err != nil {
		return nil, err
	}
	memberRows, err := e.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	plan, err := e.planResolution(group, files, memberRows, strategy, instructions)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	claimed, err := e.store.ClaimGroup(ctx, groupID, actor.ID, now, now.Add(-e.opts.ClaimTimeout))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: group %s claimed by another worker", ErrGroupContention, groupID)
	}
	e.emitTransition(group, group.ResolutionStatus, models.StatusInProgress, actor.ID, "claim")

	// Blob deletions go out before the record commit. They are idempotent,
	// so a failure here leaves the group claimed and safe to retry; the
	// claim is released for an immediate retry.
	if err := e.deleteBlobs(ctx, plan.deleteFiles); err != nil {
		if relErr := e.store.ReleaseClaim(ctx, groupID, time.Now().UTC()); relErr != nil {
			e.emitError("release claim", relErr, "group_id", groupID)
		}
		return nil, err
	}

	actionID, err := store.GenerateActionID(e.store.ActionExists)
	if err != nil {
		return nil, err
	}

	action := &models.ResolutionAction{
		ID:                actionID,
		GroupID:           groupID,
		TenantID:          group.TenantID,
		Strategy:          strategy,
		Actor:             actor.ID,
		Outcome:           plan.outcome,
		DeletedCount:      len(plan.deleteFiles),
		ReclaimedBytes:    plan.reclaimedBytes,
		InstructionDigest: digest,
		Note:              plan.note,
		CreatedAt:         time.Now().UTC(),
	}

	remainingFiles := plan.remaining
	totalFiles := len(remainingFiles)
	totalSize := sumSizes(remainingFiles)
	update := store.GroupUpdate{
		ResolutionStatus:   strPtr(string(plan.outcome)),
		ResolutionStrategy: strPtr(string(strategy)),
		MasterFileID:       strPtr(plan.masterID),
		TotalFiles:         &totalFiles,
		TotalSizeBytes:     &totalSize,
		ClearClaim:         true,
		UpdatedAt:          action.CreatedAt,
	}

	if err := e.store.ResolveGroup(ctx, groupID, fileIDs(plan.deleteFiles), plan.keepFileIDs, update, action); err != nil {
		return nil, err
	}

	e.emitTransition(group, models.StatusInProgress, plan.outcome, actor.ID, "resolution committed")
	e.logger.Info("group resolved",
		"group_id", groupID,
		"tenant_id", group.TenantID,
		"strategy", strategy,
		"outcome", plan.outcome,
		"deleted_count", action.DeletedCount,
		"reclaimed_bytes", action.ReclaimedBytes,
	)

	return action, nil
}

// ToggleAutoResolve flips whether a group is eligible for automatic
// resolution. Returns false when the group does not exist.
func (e *Engine) ToggleAutoResolve(ctx context.Context, groupID string, enabled bool) (bool, error) {
	release, err := e.locks.acquire(ctx, groupScope(groupID))
	if err != nil {
		return false, err
	}
	defer release()

	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	if group == nil {
		return false, nil
	}

	update := store.GroupUpdate{
		AutoResolveEnabled: &enabled,
		UpdatedAt:          time.Now().UTC(),
	}
	if err := e.store.UpdateGroup(ctx, groupID, update); err != nil {
		return false, err
	}

	e.logger.Info("auto-resolve toggled", "group_id", groupID, "tenant_id", group.TenantID, "enabled", enabled)
	return true, nil
}

// ReapStaleClaims reverts in-progress groups whose claim outlived the claim
// timeout back to pending, so a crashed worker never locks a group forever.
func (e *Engine) ReapStaleClaims(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	released, err := e.store.ReleaseStaleClaims(ctx, now.Add(-e.opts.ClaimTimeout), now)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		e.logger.Info("stale claims released", "count", released)
	}
	return released, nil
}

// AutoResolvePending resolves every auto-resolvable pending group of a
// tenant, up to limit. Per-group failures are logged and skipped; one bad
// group never aborts the sweep.
func (e *Engine) AutoResolvePending(ctx context.Context, tenantID string, limit int) ([]models.ResolutionAction, error) {
	groups, err := e.store.ListGroups(ctx, store.GroupFilter{
		TenantID: tenantID,
		Statuses: []string{string(models.StatusPending)},
		Types:    []string{string(models.GroupExact)},
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	var actions []models.ResolutionAction
	for _, group := range groups {
		action, err := e.Resolve(ctx, group.ID, models.StrategyAutomatic, nil, SystemActor())
		if err != nil {
			e.emitError("auto resolve", err, "group_id", group.ID, "tenant_id", tenantID)
			continue
		}
		actions = append(actions, *action)
	}
	return actions, nil
}

// resolutionPlan is the validated outcome of a resolution before any side
// effect is issued.
type resolutionPlan struct {
	outcome        models.ResolutionStatus
	masterID       string
	deleteFiles    []models.File
	keepFileIDs    []string
	remaining      []models.File
	reclaimedBytes int64
	note           string
}

func (e *Engine) planResolution(group *models.DupGroup, files []models.File, memberRows []models.GroupMember, strategy models.ResolutionStrategy, instructions *ManualInstructions) (*resolutionPlan, error) {
	switch strategy {
	case models.StrategyAutomatic:
		return planAutomatic(group, files, memberRows)
	case models.StrategyManual:
		return planManual(group, files, instructions)
	default:
		return nil, invariantViolation("unknown strategy %q", strategy)
	}
}

func planAutomatic(group *models.DupGroup, files []models.File, memberRows []models.GroupMember) (*resolutionPlan, error) {
	if !AutoResolvable(group, memberRows) {
		return nil, invariantViolation("group %s is not auto-resolvable", group.ID)
	}

	plan := &resolutionPlan{
		outcome:  models.StatusResolved,
		masterID: group.MasterFileID,
	}
	for _, f := range files {
		if f.ID == group.MasterFileID {
			plan.remaining = append(plan.remaining, f)
			continue
		}
		plan.deleteFiles = append(plan.deleteFiles, f)
		plan.reclaimedBytes += f.SizeBytes
	}
	if len(plan.remaining) == 0 {
		return nil, invariantViolation("master %s is not a member of group %s", group.MasterFileID, group.ID)
	}
	return plan, nil
}

func planManual(group *models.DupGroup, files []models.File, instructions *ManualInstructions) (*resolutionPlan, error) {
	if instructions == nil {
		return nil, invariantViolation("manual resolution requires instructions")
	}

	byID := map[string]models.File{}
	for _, f := range files {
		byID[f.ID] = f
	}

	masterID := group.MasterFileID
	if instructions.NewMasterID != "" {
		if _, ok := byID[instructions.NewMasterID]; !ok {
			return nil, invariantViolation("master override %s is not a member of group %s", instructions.NewMasterID, group.ID)
		}
		masterID = instructions.NewMasterID
	}

	deleteSet := map[string]struct{}{}
	for _, id := range instructions.DeleteFileIDs {
		if _, ok := byID[id]; !ok {
			return nil, invariantViolation("file %s is not a member of group %s", id, group.ID)
		}
		deleteSet[id] = struct{}{}
	}
	if _, ok := deleteSet[masterID]; ok {
		return nil, invariantViolation("cannot delete master %s; name a new master to replace it", masterID)
	}
	if len(deleteSet) >= len(files) {
		return nil, invariantViolation("cannot delete the last remaining member of group %s", group.ID)
	}

	if instructions.FalsePositive && len(deleteSet) > 0 {
		return nil, invariantViolation("a false-positive group keeps all members; delete list must be empty")
	}

	var keepIDs []string
	for _, id := range instructions.KeepFileIDs {
		if _, ok := byID[id]; !ok {
			return nil, invariantViolation("file %s is not a member of group %s", id, group.ID)
		}
		if _, deleted := deleteSet[id]; deleted {
			return nil, invariantViolation("file %s cannot be both kept and deleted", id)
		}
		keepIDs = append(keepIDs, id)
	}

	plan := &resolutionPlan{
		outcome:     models.StatusResolved,
		masterID:    masterID,
		keepFileIDs: keepIDs,
		note:        strings.TrimSpace(instructions.Note),
	}
	if instructions.FalsePositive {
		plan.outcome = models.StatusIgnored
	}

	for _, f := range files {
		if _, deleted := deleteSet[f.ID]; deleted {
			plan.deleteFiles = append(plan.deleteFiles, f)
			plan.reclaimedBytes += f.SizeBytes
			continue
		}
		plan.remaining = append(plan.remaining, f)
	}
	return plan, nil
}

// deleteBlobs issues duplicate deletions to the blob collaborator. A blob
// object shared with a surviving file (the CAS stores exact duplicates
// once) is left in place.
func (e *Engine) deleteBlobs(ctx context.Context, deleted []models.File) error {
	if e.blobs == nil || len(deleted) == 0 {
		return nil
	}

	deletedIDs := fileIDs(deleted)
	seen := map[string]struct{}{}
	for _, f := range deleted {
		if f.BlobKey == "" {
			continue
		}
		if _, ok := seen[f.BlobKey]; ok {
			continue
		}
		seen[f.BlobKey] = struct{}{}

		inUse, err := e.store.BlobKeyInUse(ctx, f.BlobKey, deletedIDs)
		if err != nil {
			return err
		}
		if inUse {
			continue
		}
		if err := e.blobs.Delete(ctx, f.BlobKey); err != nil {
			return fmt.Errorf("delete blob %s: %w", f.BlobKey, err)
		}
	}
	return nil
}

// instructionDigest canonicalizes a resolution request so replays of a
// settled group can be recognized as no-ops.
func instructionDigest(strategy models.ResolutionStrategy, instructions *ManualInstructions) string {
	parts := []string{string(strategy)}
	if instructions != nil {
		deletes := append([]string{}, instructions.DeleteFileIDs...)
		keeps := append([]string{}, instructions.KeepFileIDs...)
		sort.Strings(deletes)
		sort.Strings(keeps)
		parts = append(parts,
			"delete="+strings.Join(deletes, ","),
			"keep="+strings.Join(keeps, ","),
			"master="+instructions.NewMasterID,
			fmt.Sprintf("false_positive=%t", instructions.FalsePositive),
		)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}

func fileIDs(files []models.File) []string {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids
}
