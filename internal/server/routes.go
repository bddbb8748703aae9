package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Document ingestion and retrieval.
	mux.HandleFunc("POST /v1/files", s.handleUploadFile)
	mux.HandleFunc("GET /v1/files/{id}", s.handleGetFile)
	mux.HandleFunc("GET /v1/files/{id}/content", s.handleDownloadFile)

	// Duplicate groups.
	mux.HandleFunc("GET /v1/groups", s.handleListGroups)
	mux.HandleFunc("GET /v1/groups/{id}", s.handleGetGroup)
	mux.HandleFunc("GET /v1/groups/{id}/actions", s.handleListActions)
	mux.HandleFunc("POST /v1/groups/{id}/resolve", s.handleResolveGroup)
	mux.HandleFunc("POST /v1/groups/{id}/auto-resolve", s.handleToggleAutoResolve)

	// Admin.
	mux.HandleFunc("POST /v1/admin/reap", s.handleAdminReap)
	mux.HandleFunc("POST /v1/admin/auto-resolve", s.handleAdminAutoResolve)

	return mux
}
