package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"dublett/internal/api"
	"dublett/internal/auth"
	"dublett/internal/engine"
)

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		s.uploadFile(w, r)
	})
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFromRequest(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.uploads.MultipartMaxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.writeErrorReq(w, r, http.StatusBadRequest,
				badRequestCode(fmt.Errorf("upload exceeds %d bytes", s.uploads.MaxUploadBytes), ErrCodeRequestTooLarge))
			return
		}
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(fmt.Errorf("invalid multipart payload: %v", err)))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	part, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("file part is required"), ErrCodeMissingRequired))
		return
	}
	defer part.Close()

	name := r.FormValue("name")
	if name == "" && header != nil {
		name = filepath.Base(header.Filename)
	}

	uploader := r.FormValue("uploader")
	if uploader != "" {
		uploader, err = auth.NormalizeActorID(uploader)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(err))
			return
		}
	}

	result, err := s.engine.Ingest(r.Context(), engine.IngestRequest{
		TenantID:   tenant,
		Name:       name,
		UploaderID: uploader,
		Body:       part,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, api.UploadResponse{
		File:    *result.File,
		GroupID: result.GroupID,
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFromRequest(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	id, err := requireFilePathID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	file, err := s.store.GetFile(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if file == nil {
		s.writeServiceError(w, r, fmt.Errorf("%w: %s", engine.ErrFileNotFound, id))
		return
	}
	if file.TenantID != tenant {
		s.writeServiceError(w, r, fmt.Errorf("%w: file %s", engine.ErrTenantMismatch, id))
		return
	}

	s.writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFromRequest(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	id, err := requireFilePathID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	file, err := s.store.GetFile(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if file == nil {
		s.writeServiceError(w, r, fmt.Errorf("%w: %s", engine.ErrFileNotFound, id))
		return
	}
	if file.TenantID != tenant {
		s.writeServiceError(w, r, fmt.Errorf("%w: file %s", engine.ErrTenantMismatch, id))
		return
	}

	rc, err := s.blobs.Open(r.Context(), file.BlobKey)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeServiceError(w, r, fmt.Errorf("%w: content for %s", engine.ErrFileNotFound, id))
			return
		}
		s.writeErrorReq(w, r, http.StatusInternalServerError,
			makeAPIError(http.StatusInternalServerError, "internal", ErrCodeBlobFailure, err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Error("stream file content", "file_id", id, "error", err)
	}
}
