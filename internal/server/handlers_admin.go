package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"dublett/internal/api"
	"dublett/internal/auth"
	"dublett/internal/models"
)

const adminTokenHeader = "X-Admin-Token"

// requireAdmin checks the admin token. A configured bcrypt hash takes
// precedence over the plaintext env token; with neither configured, admin
// endpoints stay open for local single-user setups.
func (s *Server) requireAdmin(r *http.Request) error {
	candidate := strings.TrimSpace(r.Header.Get(adminTokenHeader))

	if s.adminTokenHash != "" {
		if !auth.VerifyToken(s.adminTokenHash, candidate) {
			return unauthorized(fmt.Errorf("invalid admin token"))
		}
		return nil
	}
	if s.adminToken != "" {
		if subtle.ConstantTimeCompare([]byte(s.adminToken), []byte(candidate)) != 1 {
			return unauthorized(fmt.Errorf("invalid admin token"))
		}
		return nil
	}
	return nil
}

func (s *Server) handleAdminReap(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAdmin(r); err != nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, err)
		return
	}

	released, err := s.engine.ReapStaleClaims(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.ReapResponse{Released: released})
}

func (s *Server) handleAdminAutoResolve(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAdmin(r); err != nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, err)
		return
	}

	s.withLimiter(w, r, s.sweepLimiter, "auto-resolve", func() {
		tenant, err := tenantFromRequest(r)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		limit, err := queryIntDefault(r, "limit", 100)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}

		actions, err := s.engine.AutoResolvePending(r.Context(), tenant, limit)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		resp := api.AutoResolveRunResponse{Actions: actions}
		if resp.Actions == nil {
			resp.Actions = []models.ResolutionAction{}
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}
