package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"dublett/internal/models"
	"dublett/internal/store"
)

func TestResolveAutomatic(t *testing.T) {
	eng, st, cas := testEngine(t)
	ctx := context.Background()
	content := "underhållsplan 2026-2031"

	first := mustIngest(t, eng, "brf-eken", "plan.pdf", "anna", content)
	second := mustIngest(t, eng, "brf-eken", "plan (1).pdf", "bertil", content)
	third := mustIngest(t, eng, "brf-eken", "plan-kopia.pdf", "anna", content)

	action, err := eng.Resolve(ctx, third.GroupID, models.StrategyAutomatic, nil, SystemActor())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if action.Outcome != models.StatusResolved {
		t.Fatalf("expected resolved outcome, got %s", action.Outcome)
	}
	if action.Actor != models.SystemActor {
		t.Fatalf("automatic resolution acts as the system, got %q", action.Actor)
	}
	if action.DeletedCount != 2 {
		t.Fatalf("expected both non-masters deleted, got %d", action.DeletedCount)
	}
	wantReclaimed := second.File.SizeBytes + third.File.SizeBytes
	if action.ReclaimedBytes != wantReclaimed {
		t.Fatalf("expected %d reclaimed bytes, got %d", wantReclaimed, action.ReclaimedBytes)
	}

	group, err := st.GetGroup(ctx, third.GroupID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if group.ResolutionStatus != models.StatusResolved {
		t.Fatalf("expected resolved group, got %s", group.ResolutionStatus)
	}
	if group.MasterFileID != first.File.ID || group.TotalFiles != 1 {
		t.Fatalf("only the master survives: %+v", group)
	}
	if group.ClaimedBy != "" || group.ClaimedAt != nil {
		t.Fatalf("claim must clear on commit: %+v", group)
	}

	for _, id := range []string{second.File.ID, third.File.ID} {
		file, err := st.GetFile(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if file != nil {
			t.Fatalf("duplicate %s should be deleted", id)
		}
	}

	// All three copies shared one CAS object; the surviving master still
	// references it, so the blob must remain readable.
	rc, err := cas.Open(ctx, first.File.BlobKey)
	if err != nil {
		t.Fatalf("master blob lost: %v", err)
	}
	rc.Close()
}

func TestResolveManualDeletesChosenFiles(t *testing.T) {
	eng, st, cas := testEngine(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Distinct revisions with their own blobs, grouped by signature.
	keep := mustIngest(t, eng, "brf-eken", "offert-v2.pdf", "anna", "offert takarbeten version 2")
	oldKey := mustPutBlob(t, cas, "offert takarbeten version 1 gammal")
	seedFile(t, st, &models.File{
		ID: "fl-man002", TenantID: "brf-eken", Name: "offert-v1.pdf",
		ContentHash: "h-old", SimHash: keep.File.SimHash ^ 0b1, SizeBytes: 700,
		BlobKey: oldKey, UploadedAt: base,
	})
	groupID, err := eng.Attach(ctx, "fl-man002")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if groupID == "" {
		t.Fatal("revisions must group")
	}

	actor := Actor{ID: "anna", TenantID: "brf-eken"}
	action, err := eng.Resolve(ctx, groupID, models.StrategyManual, &ManualInstructions{
		DeleteFileIDs: []string{"fl-man002"},
		NewMasterID:   keep.File.ID,
		Note:          "v1 superseded",
	}, actor)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if action.Outcome != models.StatusResolved || action.DeletedCount != 1 {
		t.Fatalf("unexpected action: %+v", action)
	}
	if action.Note != "v1 superseded" {
		t.Fatalf("note lost: %q", action.Note)
	}

	group, _ := st.GetGroup(ctx, groupID)
	if group.MasterFileID != keep.File.ID {
		t.Fatalf("master override not applied: %+v", group)
	}

	// The deleted revision had its own blob; it must be gone.
	deleted, _ := st.GetFile(ctx, "fl-man002")
	if deleted != nil {
		t.Fatal("deleted revision still in store")
	}
	if _, err := cas.Open(ctx, oldKey); err == nil {
		t.Fatal("orphaned blob must be deleted with its file")
	}

	// Kept file's blob stays.
	rc, err := cas.Open(ctx, keep.File.BlobKey)
	if err != nil {
		t.Fatalf("kept blob lost: %v", err)
	}
	rc.Close()
}

func TestResolveFalsePositive(t *testing.T) {
	eng, st, _ := testEngine(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seedFile(t, st, &models.File{
		ID: "fl-fps001", TenantID: "brf-eken", Name: "hyresavtal-lokal-a.pdf",
		ContentHash: "h-a", SimHash: 0, SizeBytes: 1000, UploadedAt: base,
	})
	seedFile(t, st, &models.File{
		ID: "fl-fps002", TenantID: "brf-eken", Name: "hyresavtal-lokal-b.pdf",
		ContentHash: "h-b", SimHash: 0b1, SizeBytes: 1000, UploadedAt: base.Add(time.Minute),
	})
	groupID, err := eng.Attach(ctx, "fl-fps002")
	if err != nil || groupID == "" {
		t.Fatalf("attach: group=%q err=%v", groupID, err)
	}

	actor := Actor{ID: "anna", TenantID: "brf-eken"}
	action, err := eng.Resolve(ctx, groupID, models.StrategyManual, &ManualInstructions{
		FalsePositive: true,
		Note:          "different premises, similar template",
	}, actor)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if action.Outcome != models.StatusIgnored {
		t.Fatalf("false positive resolves to ignored, got %s", action.Outcome)
	}
	if action.DeletedCount != 0 || action.ReclaimedBytes != 0 {
		t.Fatalf("false positive deletes nothing: %+v", action)
	}

	group, _ := st.GetGroup(ctx, groupID)
	if group.ResolutionStatus != models.StatusIgnored {
		t.Fatalf("expected ignored group, got %s", group.ResolutionStatus)
	}
	for _, id := range []string{"fl-fps001", "fl-fps002"} {
		file, _ := st.GetFile(ctx, id)
		if file == nil {
			t.Fatalf("member %s must survive a false-positive resolution", id)
		}
	}

	// Deletion instructions contradict a false-positive verdict.
	_, err = eng.Resolve(ctx, groupID, models.StrategyManual, &ManualInstructions{
		FalsePositive: true,
		DeleteFileIDs: []string{"fl-fps002"},
	}, actor)
	if !errors.Is(err, ErrResolutionInvariant) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestResolveIdempotentReplay(t *testing.T) {
	eng, _, _ := testEngine(t)
	ctx := context.Background()
	content := "revisionsberättelse 2025"

	mustIngest(t, eng, "brf-eken", "revision.pdf", "anna", content)
	second := mustIngest(t, eng, "brf-eken", "revision (1).pdf", "anna", content)

	first, err := eng.Resolve(ctx, second.GroupID, models.StrategyAutomatic, nil, SystemActor())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	replay, err := eng.Resolve(ctx, second.GroupID, models.StrategyAutomatic, nil, SystemActor())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("replay must return the recorded action: %s vs %s", replay.ID, first.ID)
	}

	// Different instructions against a settled group are rejected.
	_, err = eng.Resolve(ctx, second.GroupID, models.StrategyManual, &ManualInstructions{FalsePositive: true}, Actor{ID: "anna", TenantID: "brf-eken"})
	if !errors.Is(err, ErrResolutionInvariant) {
		t.Fatalf("expected invariant violation on a settled group, got %v", err)
	}
}

func TestResolveRejectsInvalidPlans(t *testing.T) {
	newGroup := func(t *testing.T) (*Engine, string, []string) {
		t.Helper()
		eng, _, _ := testEngine(t)
		content := "ordningsregler gård"
		first := mustIngest(t, eng, "brf-eken", "regler.pdf", "anna", content)
		second := mustIngest(t, eng, "brf-eken", "regler (1).pdf", "anna", content)
		return eng, second.GroupID, []string{first.File.ID, second.File.ID}
	}
	actor := Actor{ID: "anna", TenantID: "brf-eken"}
	ctx := context.Background()

	t.Run("manual without instructions", func(t *testing.T) {
		eng, groupID, _ := newGroup(t)
		_, err := eng.Resolve(ctx, groupID, models.StrategyManual, nil, actor)
		if !errors.Is(err, ErrResolutionInvariant) {
			t.Fatalf("expected invariant violation, got %v", err)
		}
	})

	t.Run("deleting the master", func(t *testing.T) {
		eng, groupID, ids := newGroup(t)
		_, err := eng.Resolve(ctx, groupID, models.StrategyManual, &ManualInstructions{
			DeleteFileIDs: []string{ids[0]},
		}, actor)
		if !errors.Is(err, ErrResolutionInvariant) {
			t.Fatalf("expected invariant violation, got %v", err)
		}
	})

	t.Run("deleting every member", func(t *testing.T) {
		eng, groupID, ids := newGroup(t)
		_, err := eng.Resolve(ctx, groupID, models.StrategyManual, &ManualInstructions{
			DeleteFileIDs: ids,
			NewMasterID:   ids[1],
		}, actor)
		if !errors.Is(err, ErrResolutionInvariant) {
			t.Fatalf("expected invariant violation, got %v", err)
		}
	})

	t.Run("keep and delete the same file", func(t *testing.T) {
		eng, groupID, ids := newGroup(t)
		_, err := eng.Resolve(ctx, groupID, models.StrategyManual, &ManualInstructions{
			DeleteFileIDs: []string{ids[1]},
			KeepFileIDs:   []string{ids[1]},
		}, actor)
		if !errors.Is(err, ErrResolutionInvariant) {
			t.Fatalf("expected invariant violation, got %v", err)
		}
	})

	t.Run("foreign file id", func(t *testing.T) {
		eng, groupID, _ := newGroup(t)
		_, err := eng.Resolve(ctx, groupID, models.StrategyManual, &ManualInstructions{
			DeleteFileIDs: []string{"fl-zzz999"},
		}, actor)
		if !errors.Is(err, ErrResolutionInvariant) {
			t.Fatalf("expected invariant violation, got %v", err)
		}
	})

	t.Run("rejection leaves the group pending and unclaimed", func(t *testing.T) {
		eng, groupID, ids := newGroup(t)
		_, err := eng.Resolve(ctx, groupID, models.StrategyManual, &ManualInstructions{
			DeleteFileIDs: []string{ids[0]},
		}, actor)
		if !errors.Is(err, ErrResolutionInvariant) {
			t.Fatalf("expected invariant violation, got %v", err)
		}

		detail, err := eng.GetGroup(ctx, "brf-eken", groupID)
		if err != nil {
			t.Fatalf("get group: %v", err)
		}
		if detail.ResolutionStatus != models.StatusPending || detail.ClaimedBy != "" {
			t.Fatalf("rejected resolution must not change state: %+v", detail.DupGroup)
		}
	})
}

func TestResolveAutomaticGates(t *testing.T) {
	ctx := context.Background()

	t.Run("non-exact group", func(t *testing.T) {
		eng, st, _ := testEngine(t)
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		seedFile(t, st, &models.File{ID: "fl-gat001", TenantID: "brf-eken", Name: "a.pdf", ContentHash: "h-1", SimHash: 0, SizeBytes: 100, UploadedAt: base})
		seedFile(t, st, &models.File{ID: "fl-gat002", TenantID: "brf-eken", Name: "b.pdf", ContentHash: "h-2", SimHash: 0b1, SizeBytes: 100, UploadedAt: base.Add(time.Minute)})
		groupID, err := eng.Attach(ctx, "fl-gat002")
		if err != nil || groupID == "" {
			t.Fatalf("attach: group=%q err=%v", groupID, err)
		}

		_, err = eng.Resolve(ctx, groupID, models.StrategyAutomatic, nil, SystemActor())
		if !errors.Is(err, ErrResolutionInvariant) {
			t.Fatalf("similar groups never auto-resolve, got %v", err)
		}
	})

	t.Run("auto-resolve disabled", func(t *testing.T) {
		eng, _, _ := testEngine(t)
		content := "parkeringsavtal plats 14"
		mustIngest(t, eng, "brf-eken", "p.pdf", "anna", content)
		second := mustIngest(t, eng, "brf-eken", "p (1).pdf", "anna", content)

		found, err := eng.ToggleAutoResolve(ctx, second.GroupID, false)
		if err != nil || !found {
			t.Fatalf("toggle: found=%v err=%v", found, err)
		}

		_, err = eng.Resolve(ctx, second.GroupID, models.StrategyAutomatic, nil, SystemActor())
		if !errors.Is(err, ErrResolutionInvariant) {
			t.Fatalf("disabled group must not auto-resolve, got %v", err)
		}
	})
}

func TestResolveTenantAndExistenceChecks(t *testing.T) {
	eng, _, _ := testEngine(t)
	ctx := context.Background()
	content := "garageavtal"

	mustIngest(t, eng, "brf-eken", "g.pdf", "anna", content)
	second := mustIngest(t, eng, "brf-eken", "g (1).pdf", "anna", content)

	_, err := eng.Resolve(ctx, second.GroupID, models.StrategyAutomatic, nil, Actor{ID: "carin", TenantID: "brf-linden"})
	if !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}

	_, err = eng.Resolve(ctx, "dg-zzz999", models.StrategyAutomatic, nil, SystemActor())
	if !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("expected group not found, got %v", err)
	}
}

func TestResolveContention(t *testing.T) {
	eng, st, _ := testEngine(t)
	ctx := context.Background()
	content := "försäkringsbrev fastighet"

	mustIngest(t, eng, "brf-eken", "f.pdf", "anna", content)
	second := mustIngest(t, eng, "brf-eken", "f (1).pdf", "anna", content)

	// Another worker holds a fresh claim.
	now := time.Now().UTC()
	claimed, err := st.ClaimGroup(ctx, second.GroupID, "other-worker", now, now.Add(-DefaultClaimTimeout))
	if err != nil || !claimed {
		t.Fatalf("pre-claim: claimed=%v err=%v", claimed, err)
	}

	_, err = eng.Resolve(ctx, second.GroupID, models.StrategyAutomatic, nil, SystemActor())
	if !errors.Is(err, ErrGroupContention) {
		t.Fatalf("expected contention against a live claim, got %v", err)
	}
}

func TestToggleAutoResolveUnknownGroup(t *testing.T) {
	eng, _, _ := testEngine(t)
	found, err := eng.ToggleAutoResolve(context.Background(), "dg-zzz999", true)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if found {
		t.Fatal("unknown group must report not found")
	}
}

func TestReapStaleClaims(t *testing.T) {
	eng, st, _ := testEngine(t)
	ctx := context.Background()
	content := "snöröjningsavtal"

	mustIngest(t, eng, "brf-eken", "s.pdf", "anna", content)
	second := mustIngest(t, eng, "brf-eken", "s (1).pdf", "anna", content)

	// Simulate a worker that claimed the group and crashed an hour ago.
	old := time.Now().UTC().Add(-time.Hour)
	claimed, err := st.ClaimGroup(ctx, second.GroupID, "crashed-worker", old, old.Add(-DefaultClaimTimeout))
	if err != nil || !claimed {
		t.Fatalf("pre-claim: claimed=%v err=%v", claimed, err)
	}

	released, err := eng.ReapStaleClaims(ctx)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released claim, got %d", released)
	}

	group, _ := st.GetGroup(ctx, second.GroupID)
	if group.ResolutionStatus != models.StatusPending || group.ClaimedBy != "" {
		t.Fatalf("group not recovered: %+v", group)
	}

	// The recovered group resolves normally.
	if _, err := eng.Resolve(ctx, second.GroupID, models.StrategyAutomatic, nil, SystemActor()); err != nil {
		t.Fatalf("resolve after reap: %v", err)
	}
}

func TestAutoResolvePendingSweep(t *testing.T) {
	eng, st, _ := testEngine(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Three exact pairs, far apart from each other in signature space.
	pairs := []struct {
		ids     [2]string
		hash    string
		simhash uint64
	}{
		{[2]string{"fl-swa001", "fl-swa002"}, "h-sweep-a", 0},
		{[2]string{"fl-swb001", "fl-swb002"}, "h-sweep-b", 0x3FFFF},
		{[2]string{"fl-swc001", "fl-swc002"}, "h-sweep-c", 0x3FFFF << 18},
	}
	groupIDs := make([]string, 0, len(pairs))
	for i, p := range pairs {
		for j, id := range p.ids {
			seedFile(t, st, &models.File{
				ID: id, TenantID: "brf-eken", Name: "doc.pdf",
				ContentHash: p.hash, SimHash: p.simhash, SizeBytes: 1000,
				UploadedAt: base.Add(time.Duration(i*2+j) * time.Minute),
			})
		}
		groupID, err := eng.Attach(ctx, p.ids[1])
		if err != nil || groupID == "" {
			t.Fatalf("attach pair %d: group=%q err=%v", i, groupID, err)
		}
		groupIDs = append(groupIDs, groupID)
	}

	// Flag one member of the third group for retention.
	err := st.ResolveGroup(ctx, groupIDs[2], nil, []string{"fl-swc002"}, store.GroupUpdate{UpdatedAt: time.Now().UTC()}, &models.ResolutionAction{
		ID: "ra-flag01", GroupID: groupIDs[2], TenantID: "brf-eken",
		Strategy: models.StrategyManual, Actor: "anna", Outcome: models.StatusPending,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("flag member: %v", err)
	}

	actions, err := eng.AutoResolvePending(ctx, "brf-eken", 100)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(actions))
	}

	for _, groupID := range groupIDs[:2] {
		group, _ := st.GetGroup(ctx, groupID)
		if group.ResolutionStatus != models.StatusResolved {
			t.Fatalf("group %s should be resolved, got %s", groupID, group.ResolutionStatus)
		}
	}
	protected, _ := st.GetGroup(ctx, groupIDs[2])
	if protected.ResolutionStatus != models.StatusPending {
		t.Fatalf("keep-flagged group must survive the sweep, got %s", protected.ResolutionStatus)
	}
}

func TestInstructionDigest(t *testing.T) {
	auto := instructionDigest(models.StrategyAutomatic, nil)
	if auto == "" {
		t.Fatal("digest must never be empty")
	}
	if auto != instructionDigest(models.StrategyAutomatic, nil) {
		t.Fatal("digest must be deterministic")
	}
	if auto == instructionDigest(models.StrategyManual, nil) {
		t.Fatal("strategy must be part of the digest")
	}

	a := instructionDigest(models.StrategyManual, &ManualInstructions{DeleteFileIDs: []string{"fl-aaa111", "fl-bbb222"}})
	b := instructionDigest(models.StrategyManual, &ManualInstructions{DeleteFileIDs: []string{"fl-bbb222", "fl-aaa111"}})
	if a != b {
		t.Fatal("id order must not change the digest")
	}

	c := instructionDigest(models.StrategyManual, &ManualInstructions{DeleteFileIDs: []string{"fl-aaa111"}})
	if a == c {
		t.Fatal("different delete sets must differ")
	}

	fp := instructionDigest(models.StrategyManual, &ManualInstructions{FalsePositive: true})
	if fp == instructionDigest(models.StrategyManual, &ManualInstructions{}) {
		t.Fatal("false positive must be part of the digest")
	}
}
