package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dublett/internal/blobstore"
	"dublett/internal/models"
	"dublett/internal/similarity"
	"dublett/internal/store"
)

// testEngine builds an engine over a temporary store and blob tree with the
// default similarity policy.
func testEngine(t *testing.T) (*Engine, *store.Store, *blobstore.LocalCAS) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cas, err := blobstore.NewLocalCAS(t.TempDir())
	if err != nil {
		t.Fatalf("new cas: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := New(st, cas, similarity.NewComparator(similarity.DefaultPolicy()), logger, Options{})
	return eng, st, cas
}

// mustIngest uploads content for a tenant and returns the result.
func mustIngest(t *testing.T, eng *Engine, tenantID, name, uploader, content string) *IngestResult {
	t.Helper()
	res, err := eng.Ingest(context.Background(), IngestRequest{
		TenantID:   tenantID,
		Name:       name,
		UploaderID: uploader,
		Body:       strings.NewReader(content),
	})
	if err != nil {
		t.Fatalf("ingest %s: %v", name, err)
	}
	return res
}

// mustPutBlob stores content in the CAS and returns its blob key.
func mustPutBlob(t *testing.T, cas *blobstore.LocalCAS, content string) string {
	t.Helper()
	put, err := cas.Put(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("put blob: %v", err)
	}
	return put.BlobKey
}

// seedFile writes a file record with handcrafted identity fields, bypassing
// ingestion. Used to pin signature distances exactly.
func seedFile(t *testing.T, st *store.Store, file *models.File) *models.File {
	t.Helper()
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	if err := st.CreateFile(context.Background(), file); err != nil {
		t.Fatalf("seed file %s: %v", file.ID, err)
	}
	return file
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.LockWait != DefaultLockWait {
		t.Fatalf("expected default lock wait, got %v", opts.LockWait)
	}
	if opts.ClaimTimeout != DefaultClaimTimeout {
		t.Fatalf("expected default claim timeout, got %v", opts.ClaimTimeout)
	}
	if opts.CandidateLimit != 0 {
		t.Fatalf("zero candidate limit means unbounded, got %d", opts.CandidateLimit)
	}

	custom := Options{LockWait: time.Second, ClaimTimeout: time.Minute, CandidateLimit: 10}.withDefaults()
	if custom.LockWait != time.Second || custom.ClaimTimeout != time.Minute || custom.CandidateLimit != 10 {
		t.Fatalf("explicit options must survive: %+v", custom)
	}
}

func TestAutoResolvable(t *testing.T) {
	group := &models.DupGroup{GroupType: models.GroupExact, AutoResolveEnabled: true}
	members := []models.GroupMember{{FileID: "fl-aaa111"}, {FileID: "fl-bbb222"}}

	if !AutoResolvable(group, members) {
		t.Fatal("exact enabled unflagged group is auto-resolvable")
	}

	flagged := append([]models.GroupMember{}, members...)
	flagged[1].KeepFlag = true
	if AutoResolvable(group, flagged) {
		t.Fatal("a keep flag blocks automatic resolution")
	}

	disabled := *group
	disabled.AutoResolveEnabled = false
	if AutoResolvable(&disabled, members) {
		t.Fatal("the toggle blocks automatic resolution")
	}

	similar := *group
	similar.GroupType = models.GroupSimilar
	if AutoResolvable(&similar, members) {
		t.Fatal("only exact groups auto-resolve")
	}

	if AutoResolvable(nil, members) {
		t.Fatal("nil group is never auto-resolvable")
	}
}

func TestScopeLocksContention(t *testing.T) {
	locks := newScopeLocks(50 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.acquire(ctx, "group/dg-aaa111")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := locks.acquire(ctx, "group/dg-aaa111"); err == nil {
		t.Fatal("expected contention on a held scope")
	}

	if _, err := locks.acquire(ctx, "group/dg-bbb222"); err != nil {
		t.Fatalf("independent scope must not contend: %v", err)
	}

	release()
	release2, err := locks.acquire(ctx, "group/dg-aaa111")
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	release2()
}

func TestScopeLocksEvictIdle(t *testing.T) {
	locks := newScopeLocks(50 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.acquire(ctx, tenantScope("brf-eken"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	locks.mu.Lock()
	held := len(locks.locks)
	locks.mu.Unlock()
	if held != 1 {
		t.Fatalf("held scope must be tracked, got %d entries", held)
	}

	// A timed-out waiter releases its reference and must not pin the entry.
	if _, err := locks.acquire(ctx, tenantScope("brf-eken")); err == nil {
		t.Fatal("expected contention on a held scope")
	}

	release()

	locks.mu.Lock()
	remaining := len(locks.locks)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("idle scopes must be evicted after release, got %d entries", remaining)
	}

	release2, err := locks.acquire(ctx, tenantScope("brf-eken"))
	if err != nil {
		t.Fatalf("reacquire after eviction: %v", err)
	}
	release2()
}
