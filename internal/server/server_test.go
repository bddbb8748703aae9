package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"dublett/internal/api"
	"dublett/internal/blobstore"
	"dublett/internal/config"
	"dublett/internal/engine"
	"dublett/internal/similarity"
	"dublett/internal/store"
)

// newTestServer wires a server over a temporary store and blob tree.
func newTestServer(t *testing.T) (*Server, http.Handler) {
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
	eng := engine.New(st, cas, similarity.NewComparator(similarity.DefaultPolicy()), logger, engine.Options{})
	srv := New("127.0.0.1:0", st, eng, cas, config.Default().Uploads, "", logger)
	return srv, srv.routes()
}

// doUpload posts one multipart file upload and returns the response.
func doUpload(t *testing.T, handler http.Handler, tenant, name, uploader, content string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			t.Fatalf("write name field: %v", err)
		}
	}
	if uploader != "" {
		if err := mw.WriteField("uploader", uploader); err != nil {
			t.Fatalf("write uploader field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if tenant != "" {
		req.Header.Set(tenantHeader, tenant)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// mustUpload uploads and decodes a successful response.
func mustUpload(t *testing.T, handler http.Handler, tenant, name, content string) api.UploadResponse {
	t.Helper()
	w := doUpload(t, handler, tenant, name, "", content)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload %s: expected 201, got %d: %s", name, w.Code, w.Body.String())
	}
	var resp api.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return resp
}

// decodeErrorResponse unmarshals a structured API error body.
func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func doJSON(t *testing.T, handler http.Handler, method, path, tenant string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if tenant != "" {
		req.Header.Set(tenantHeader, tenant)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestListenAddrRemoteGuard(t *testing.T) {
	t.Run("allows loopback", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("http://127.0.0.1:7433")
		if err != nil {
			t.Fatalf("expected loopback to be allowed, got error: %v", err)
		}
		if addr != "127.0.0.1:7433" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("blocks non-loopback by default", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		if _, err := ListenAddr("http://0.0.0.0:7433"); err == nil {
			t.Fatal("expected error for non-loopback listen host")
		}
	})

	t.Run("allows non-loopback when explicitly enabled", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "true")
		addr, err := ListenAddr("http://0.0.0.0:7433")
		if err != nil {
			t.Fatalf("expected allow-remote to permit host, got error: %v", err)
		}
		if addr != "0.0.0.0:7433" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})
}

func TestHealthAndInfo(t *testing.T) {
	_, handler := newTestServer(t)

	w := doJSON(t, handler, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}

	mustUpload(t, handler, "brf-eken", "a.pdf", "dokument")

	w = doJSON(t, handler, http.MethodGet, "/v1/info", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("info: expected 200, got %d", w.Code)
	}
	var info api.InfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.SchemaVersion != 2 || info.TotalFiles != 1 {
		t.Fatalf("unexpected info: %+v", info)
	}
}
