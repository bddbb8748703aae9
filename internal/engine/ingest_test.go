package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"dublett/internal/fingerprint"
)

func TestIngestFingerprintsWhileStoring(t *testing.T) {
	eng, st, cas := testEngine(t)
	ctx := context.Background()
	content := "andrahandsuthyrning ansökan lgh 0902"

	res := mustIngest(t, eng, "brf-eken", "ansokan.pdf", "anna", content)

	want, err := fingerprint.FromReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("reference fingerprint: %v", err)
	}
	if res.File.ContentHash != want.SHA256 {
		t.Fatalf("stored hash %q differs from content hash %q", res.File.ContentHash, want.SHA256)
	}
	if res.File.SimHash != want.SimHash {
		t.Fatalf("stored simhash %#x differs from %#x", res.File.SimHash, want.SimHash)
	}
	if res.File.SizeBytes != int64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), res.File.SizeBytes)
	}

	// The same bytes that were fingerprinted landed in the CAS.
	rc, err := cas.Open(ctx, res.File.BlobKey)
	if err != nil {
		t.Fatalf("open blob: %v", err)
	}
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(stored) != content {
		t.Fatalf("blob bytes differ: %q", string(stored))
	}

	// And the record is queryable.
	file, err := st.GetFile(ctx, res.File.ID)
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if file == nil || file.UploaderID != "anna" {
		t.Fatalf("unexpected record: %+v", file)
	}
}

func TestIngestValidation(t *testing.T) {
	eng, _, _ := testEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  IngestRequest
	}{
		{name: "missing tenant", req: IngestRequest{Name: "a.pdf", Body: strings.NewReader("x")}},
		{name: "missing name", req: IngestRequest{TenantID: "brf-eken", Body: strings.NewReader("x")}},
		{name: "blank name", req: IngestRequest{TenantID: "brf-eken", Name: "   ", Body: strings.NewReader("x")}},
		{name: "nil body", req: IngestRequest{TenantID: "brf-eken", Name: "a.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Ingest(ctx, tt.req)
			if !errors.Is(err, ErrIngestion) {
				t.Fatalf("expected ErrIngestion, got %v", err)
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk error")
}

func TestIngestReadFailureIsIngestionError(t *testing.T) {
	eng, st, _ := testEngine(t)
	ctx := context.Background()

	_, err := eng.Ingest(ctx, IngestRequest{TenantID: "brf-eken", Name: "bad.pdf", Body: failingReader{}})
	if !errors.Is(err, ErrIngestion) {
		t.Fatalf("expected ErrIngestion, got %v", err)
	}

	// A failed upload leaves no record behind.
	files, err := st.ListTenantFiles(ctx, "brf-eken", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files after a failed upload, got %d", len(files))
	}
}

func TestIngestTrimsFields(t *testing.T) {
	eng, _, _ := testEngine(t)

	res, err := eng.Ingest(context.Background(), IngestRequest{
		TenantID:   "  brf-eken  ",
		Name:       "  avtal.pdf  ",
		UploaderID: "  anna  ",
		Body:       strings.NewReader("innehåll"),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.File.TenantID != "brf-eken" || res.File.Name != "avtal.pdf" || res.File.UploaderID != "anna" {
		t.Fatalf("fields not trimmed: %+v", res.File)
	}
}
