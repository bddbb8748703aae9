package engine

import (
	"context"
	"time"

	"dublett/internal/models"
	"dublett/internal/similarity"
	"dublett/internal/store"
)

// matchTarget is one potential destination for an attaching file: either an
// existing group or an ungrouped file that would seed a new group.
type matchTarget struct {
	class     similarity.MatchClass
	groupID   string
	fileID    string
	createdAt time.Time
}

// Attach links a freshly fingerprinted file into a duplicate group. It
// returns the group id, or empty when nothing in the tenant matches (a lone
// file is not a duplicate and no group is created). Re-attaching an already
// grouped file returns its current group.
func (e *Engine) Attach(ctx context.Context, fileID string) (string, error) {
	file, err := e.store.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	if file == nil {
		return "", ErrFileNotFound
	}
	if file.GroupID != "" {
		return file.GroupID, nil
	}

	// Group identity is unknown until candidates are compared, so attach
	// serializes on the tenant scope.
	release, err := e.locks.acquire(ctx, tenantScope(file.TenantID))
	if err != nil {
		return "", err
	}
	defer release()

	// Re-read under the lock: a concurrent attach may have grouped the
	// file while this call waited.
	file, err = e.store.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	if file == nil {
		return "", ErrFileNotFound
	}
	if file.GroupID != "" {
		return file.GroupID, nil
	}

	target, err := e.bestTarget(ctx, file)
	if err != nil {
		return "", err
	}
	if target == nil {
		return "", nil
	}

	if target.groupID != "" {
		return e.joinGroup(ctx, file, target)
	}
	return e.createGroup(ctx, file, target)
}

// bestTarget compares the file against every candidate in its tenant and
// picks the strongest match. Ties on match class go to the earliest
// creation timestamp, so late uploads land in established groups
// deterministically.
func (e *Engine) bestTarget(ctx context.Context, file *models.File) (*matchTarget, error) {
	candidates, err := e.store.ListTenantFiles(ctx, file.TenantID, file.ID, e.opts.CandidateLimit)
	if err != nil {
		return nil, err
	}

	groupCreated := map[string]time.Time{}
	var best *matchTarget

	for i := range candidates {
		candidate := &candidates[i]
		class, err := e.cmp.Compare(file, candidate)
		if err != nil {
			// Comparison errors are local to one pair; they never
			// abort the attach of the file itself.
			e.emitError("compare", err, "file_id", file.ID, "candidate_id", candidate.ID)
			continue
		}
		if class == similarity.MatchNone {
			continue
		}

		target := matchTarget{class: class, fileID: candidate.ID, createdAt: candidate.UploadedAt}
		if candidate.GroupID != "" {
			created, ok := groupCreated[candidate.GroupID]
			if !ok {
				group, err := e.store.GetGroup(ctx, candidate.GroupID)
				if err != nil {
					return nil, err
				}
				if group == nil {
					continue
				}
				created = group.CreatedAt
				groupCreated[candidate.GroupID] = created
			}
			target.groupID = candidate.GroupID
			target.createdAt = created
		}

		if best == nil || strongerTarget(target, *best) {
			clone := target
			best = &clone
		}
	}

	return best, nil
}

func strongerTarget(a, b matchTarget) bool {
	if a.class != b.class {
		return a.class > b.class
	}
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.Before(b.createdAt)
	}
	// Same class and timestamp: prefer an existing group, then lowest id.
	if (a.groupID != "") != (b.groupID != "") {
		return a.groupID != ""
	}
	if a.groupID != b.groupID {
		return a.groupID < b.groupID
	}
	return a.fileID < b.fileID
}

func (e *Engine) joinGroup(ctx context.Context, file *models.File, target *matchTarget) (string, error) {
	// The membership mutation itself happens under the group scope, the
	// same scope resolve serializes on.
	release, err := e.locks.acquire(ctx, groupScope(target.groupID))
	if err != nil {
		return "", err
	}
	defer release()

	group, err := e.store.GetGroup(ctx, target.groupID)
	if err != nil {
		return "", err
	}
	if group == nil {
		return "", ErrGroupNotFound
	}

	members, err := e.store.ListGroupFiles(ctx, group.ID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	all := append(append([]models.File{}, members...), *file)

	// The stored tier is the weakest link spanning all members, so the
	// joining file is held against every current member, not only the
	// candidate it matched best. A pair below the fuzzy threshold clamps
	// to the fuzzy tier: the file still joined through its best link.
	joinClass := target.class
	for i := range members {
		class, err := e.cmp.Compare(file, &members[i])
		if err != nil {
			e.emitError("compare", err, "file_id", file.ID, "candidate_id", members[i].ID)
			continue
		}
		if class < joinClass {
			joinClass = class
		}
	}

	newType := models.WeakerGroupType(group.GroupType, joinClass.GroupType())
	strategy := strategyForType(newType)
	master := selectMaster(all)
	totalFiles := len(all)
	totalSize := sumSizes(all)

	update := store.GroupUpdate{
		GroupType:          strPtr(string(newType)),
		ResolutionStrategy: strPtr(string(strategy)),
		MasterFileID:       strPtr(master),
		TotalFiles:         &totalFiles,
		TotalSizeBytes:     &totalSize,
		UpdatedAt:          now,
	}

	// A settled group gaining a late duplicate reopens for review.
	reopened := group.ResolutionStatus.Terminal()
	if reopened {
		update.ResolutionStatus = strPtr(string(models.StatusPending))
		update.ClearClaim = true
	}

	if err := e.store.AttachMember(ctx, group.ID, file.ID, update); err != nil {
		return "", err
	}

	if reopened {
		e.emitTransition(group, group.ResolutionStatus, models.StatusPending, models.SystemActor, "new member "+file.ID)
	}
	e.logger.Info("file attached",
		"file_id", file.ID,
		"group_id", group.ID,
		"tenant_id", group.TenantID,
		"match_class", target.class.String(),
		"group_type", newType,
		"total_files", totalFiles,
	)

	return group.ID, nil
}

func (e *Engine) createGroup(ctx context.Context, file *models.File, target *matchTarget) (string, error) {
	partner, err := e.store.GetFile(ctx, target.fileID)
	if err != nil {
		return "", err
	}
	if partner == nil || partner.GroupID != "" {
		// The partner was grouped or removed between comparison and
		// creation; retryable.
		return "", ErrGroupContention
	}

	id, err := store.GenerateGroupID(e.store.GroupExists)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	pair := []models.File{*partner, *file}
	groupType := target.class.GroupType()

	group := &models.DupGroup{
		ID:                 id,
		TenantID:           file.TenantID,
		GroupType:          groupType,
		ResolutionStatus:   models.StatusPending,
		ResolutionStrategy: strategyForType(groupType),
		AutoResolveEnabled: true,
		MasterFileID:       selectMaster(pair),
		TotalFiles:         len(pair),
		TotalSizeBytes:     sumSizes(pair),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := e.store.CreateGroup(ctx, group, []string{partner.ID, file.ID}); err != nil {
		return "", err
	}

	e.logger.Info("group created",
		"group_id", group.ID,
		"tenant_id", group.TenantID,
		"group_type", group.GroupType,
		"master_file_id", group.MasterFileID,
		"member_ids", []string{partner.ID, file.ID},
	)

	return group.ID, nil
}

// selectMaster picks the canonical file of a group: earliest upload, then
// largest byte size, then lowest id as the deterministic tie-break.
func selectMaster(files []models.File) string {
	if len(files) == 0 {
		return ""
	}
	best := files[0]
	for _, f := range files[1:] {
		switch {
		case f.UploadedAt.Before(best.UploadedAt):
			best = f
		case f.UploadedAt.Equal(best.UploadedAt) && f.SizeBytes > best.SizeBytes:
			best = f
		case f.UploadedAt.Equal(best.UploadedAt) && f.SizeBytes == best.SizeBytes && f.ID < best.ID:
			best = f
		}
	}
	return best.ID
}

func sumSizes(files []models.File) int64 {
	var total int64
	for _, f := range files {
		total += f.SizeBytes
	}
	return total
}

func strategyForType(t models.GroupType) models.ResolutionStrategy {
	if t == models.GroupExact {
		return models.StrategyAutomatic
	}
	return models.StrategyManual
}

func strPtr(s string) *string { return &s }
