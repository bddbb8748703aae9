package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"dublett/internal/engine"
)

func TestIDValidation(t *testing.T) {
	valid := map[string]func(string) bool{
		"fl-abc123": validateFileID,
		"dg-000000": validateGroupID,
		"ra-zzz999": validateActionID,
	}
	for id, check := range valid {
		if !check(id) {
			t.Fatalf("expected %q to validate", id)
		}
	}

	invalid := []struct {
		id    string
		check func(string) bool
	}{
		{"fl-ABC123", validateFileID},
		{"fl-abc12", validateFileID},
		{"fl-abc1234", validateFileID},
		{"dg-abc123", validateFileID},
		{"fl-abc123", validateGroupID},
		{"", validateGroupID},
		{"dg-abc123/extra", validateGroupID},
	}
	for _, tt := range invalid {
		if tt.check(tt.id) {
			t.Fatalf("expected %q to be rejected", tt.id)
		}
	}
}

func TestTenantFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/groups", nil)
	req.Header.Set(tenantHeader, "  BRF-Eken  ")

	tenant, err := tenantFromRequest(req)
	if err != nil {
		t.Fatalf("tenant: %v", err)
	}
	if tenant != "brf-eken" {
		t.Fatalf("expected normalized tenant, got %q", tenant)
	}

	req.Header.Set(tenantHeader, "not valid!")
	if _, err := tenantFromRequest(req); err == nil {
		t.Fatal("expected rejection of invalid tenant")
	}

	req.Header.Del(tenantHeader)
	if _, err := tenantFromRequest(req); err == nil {
		t.Fatal("expected rejection of missing tenant")
	}
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"pending", []string{"pending"}},
		{"pending,resolved", []string{"pending", "resolved"}},
		{" pending , , resolved ", []string{"pending", "resolved"}},
	}
	for _, tt := range tests {
		if got := splitCSV(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("splitCSV(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestQueryIntDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/groups?limit=25", nil)
	got, err := queryIntDefault(req, "limit", 0)
	if err != nil || got != 25 {
		t.Fatalf("expected 25, got %d err=%v", got, err)
	}

	got, err = queryIntDefault(req, "offset", 7)
	if err != nil || got != 7 {
		t.Fatalf("expected default 7, got %d err=%v", got, err)
	}

	bad := httptest.NewRequest(http.MethodGet, "/v1/groups?limit=abc", nil)
	if _, err := queryIntDefault(bad, "limit", 0); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"group not found", engine.ErrGroupNotFound, http.StatusNotFound, ErrCodeGroupNotFound},
		{"file not found", engine.ErrFileNotFound, http.StatusNotFound, ErrCodeFileNotFound},
		{"tenant mismatch", engine.ErrTenantMismatch, http.StatusForbidden, ErrCodeTenantMismatch},
		{"contention", engine.ErrGroupContention, http.StatusConflict, ErrCodeGroupContention},
		{"invariant", engine.ErrResolutionInvariant, http.StatusConflict, ErrCodeResolutionInvariant},
		{"ingestion", engine.ErrIngestion, http.StatusBadRequest, ErrCodeIngestionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := serviceError(tt.err)
			var apiErr apiError
			if !errors.As(mapped, &apiErr) {
				t.Fatalf("expected apiError, got %T", mapped)
			}
			if apiErr.status != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, apiErr.status)
			}
			if apiErr.errCode != tt.wantCode {
				t.Fatalf("expected error_code %d, got %d", tt.wantCode, apiErr.errCode)
			}
		})
	}
}
