package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"dublett/internal/models"
)

func TestUploadFile(t *testing.T) {
	t.Run("requires tenant header", func(t *testing.T) {
		_, handler := newTestServer(t)
		w := doUpload(t, handler, "", "a.pdf", "", "innehåll")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if resp := decodeErrorResponse(t, w); resp.ErrorCode != ErrCodeInvalidTenant {
			t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidTenant, resp.ErrorCode)
		}
	})

	t.Run("creates file and groups duplicates", func(t *testing.T) {
		_, handler := newTestServer(t)

		first := mustUpload(t, handler, "brf-eken", "stadgar.pdf", "stadgar för brf eken")
		if first.File.ID == "" || first.File.TenantID != "brf-eken" {
			t.Fatalf("unexpected file: %+v", first.File)
		}
		if first.GroupID != "" {
			t.Fatalf("a lone upload is not a duplicate, got group %q", first.GroupID)
		}

		second := mustUpload(t, handler, "brf-eken", "stadgar (1).pdf", "stadgar för brf eken")
		if second.GroupID == "" {
			t.Fatal("identical upload must group")
		}
		if second.File.GroupID != second.GroupID {
			t.Fatalf("file record should carry its group: %+v", second.File)
		}
	})

	t.Run("rejects invalid uploader", func(t *testing.T) {
		_, handler := newTestServer(t)
		w := doUpload(t, handler, "brf-eken", "a.pdf", "Not A Valid Actor!", "innehåll")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestGetFile(t *testing.T) {
	_, handler := newTestServer(t)
	uploaded := mustUpload(t, handler, "brf-eken", "avtal.pdf", "avtalstext")

	t.Run("owner reads the record", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodGet, "/v1/files/"+uploaded.File.ID, "brf-eken", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var file models.File
		if err := json.Unmarshal(w.Body.Bytes(), &file); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if file.ID != uploaded.File.ID || file.Name != "avtal.pdf" {
			t.Fatalf("unexpected file: %+v", file)
		}
	})

	t.Run("foreign tenant is forbidden", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodGet, "/v1/files/"+uploaded.File.ID, "brf-linden", nil)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
		if resp := decodeErrorResponse(t, w); resp.ErrorCode != ErrCodeTenantMismatch {
			t.Fatalf("expected error_code %d, got %d", ErrCodeTenantMismatch, resp.ErrorCode)
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodGet, "/v1/files/fl-zzz999", "brf-eken", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
		if resp := decodeErrorResponse(t, w); resp.ErrorCode != ErrCodeFileNotFound {
			t.Fatalf("expected error_code %d, got %d", ErrCodeFileNotFound, resp.ErrorCode)
		}
	})

	t.Run("malformed id is rejected", func(t *testing.T) {
		w := doJSON(t, handler, http.MethodGet, "/v1/files/not-an-id", "brf-eken", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if resp := decodeErrorResponse(t, w); resp.ErrorCode != ErrCodeInvalidID {
			t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidID, resp.ErrorCode)
		}
	})
}

func TestDownloadFile(t *testing.T) {
	_, handler := newTestServer(t)
	content := "protokollsbilaga med beslut"
	uploaded := mustUpload(t, handler, "brf-eken", "bilaga.pdf", content)

	w := doJSON(t, handler, http.MethodGet, "/v1/files/"+uploaded.File.ID+"/content", "brf-eken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != content {
		t.Fatalf("downloaded bytes differ: %q", got)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="bilaga.pdf"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	foreign := doJSON(t, handler, http.MethodGet, "/v1/files/"+uploaded.File.ID+"/content", "brf-linden", nil)
	if foreign.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign tenant, got %d", foreign.Code)
	}
}
