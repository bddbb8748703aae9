package server

import (
	"net/http"

	"dublett/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Info(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.InfoResponse{
		SchemaVersion: info.SchemaVersion,
		TotalFiles:    info.TotalFiles,
		TotalGroups:   info.TotalGroups,
		GroupCounts:   info.GroupCounts,
	}

	s.writeJSON(w, http.StatusOK, resp)
}
