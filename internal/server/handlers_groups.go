package server

import (
	"fmt"
	"net/http"

	"dublett/internal/api"
	"dublett/internal/auth"
	"dublett/internal/engine"
	"dublett/internal/models"
)

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFromRequest(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	var statuses []models.ResolutionStatus
	for _, raw := range splitCSV(r.URL.Query().Get("status")) {
		status, err := normalizeStatus(raw)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		statuses = append(statuses, models.ResolutionStatus(status))
	}

	var types []models.GroupType
	for _, raw := range splitCSV(r.URL.Query().Get("type")) {
		groupType, err := normalizeGroupType(raw)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		types = append(types, models.GroupType(groupType))
	}

	limit, err := queryIntDefault(r, "limit", 0)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	offset, err := queryIntDefault(r, "offset", 0)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	page, err := s.engine.ListGroups(r.Context(), engine.ListQuery{
		TenantID: tenant,
		Statuses: statuses,
		Types:    types,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := api.ListGroupsResponse{
		Groups: make([]api.GroupResponse, 0, len(page.Groups)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
		Summary: api.SummaryResponse{
			PendingGroups:         page.Summary.PendingGroups,
			TotalDuplicates:       page.Summary.TotalDuplicates,
			PotentialSavingsBytes: page.Summary.PotentialSavingsBytes,
		},
	}
	for _, view := range page.Groups {
		resp.Groups = append(resp.Groups, api.GroupResponse{
			DupGroup:       view.DupGroup,
			AutoResolvable: view.AutoResolvable,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFromRequest(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	id, err := requireGroupPathID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	detail, err := s.engine.GetGroup(r.Context(), tenant, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.GroupResponse{
		DupGroup:       detail.DupGroup,
		AutoResolvable: detail.AutoResolvable,
		Files:          detail.Files,
		Members:        detail.Members,
	})
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFromRequest(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	id, err := requireGroupPathID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	actions, err := s.engine.ListActions(r.Context(), tenant, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if actions == nil {
		actions = []models.ResolutionAction{}
	}

	s.writeJSON(w, http.StatusOK, actions)
}

func (s *Server) handleResolveGroup(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFromRequest(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	id, err := requireGroupPathID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	var req api.ResolveRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	strategy, err := normalizeStrategy(req.Strategy)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	actor := engine.SystemActor()
	actor.TenantID = tenant
	var instructions *engine.ManualInstructions
	if strategy == models.StrategyManual {
		actorID, err := auth.NormalizeActorID(req.Actor)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest,
				badRequestCode(fmt.Errorf("manual resolution requires an actor: %w", err), ErrCodeMissingRequired))
			return
		}
		actor.ID = actorID

		if err := requireFileIDs(req.DeleteFileIDs); err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		if err := requireFileIDs(req.KeepFileIDs); err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		if req.NewMasterID != "" && !validateFileID(req.NewMasterID) {
			s.writeErrorReq(w, r, http.StatusBadRequest,
				badRequestCode(fmt.Errorf("invalid new master id"), ErrCodeInvalidID))
			return
		}

		instructions = &engine.ManualInstructions{
			DeleteFileIDs: req.DeleteFileIDs,
			KeepFileIDs:   req.KeepFileIDs,
			NewMasterID:   req.NewMasterID,
			FalsePositive: req.FalsePositive,
			Note:          req.Note,
		}
	}

	action, err := s.engine.Resolve(r.Context(), id, strategy, instructions, actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, action)
}

func (s *Server) handleToggleAutoResolve(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantFromRequest(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	id, err := requireGroupPathID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	var req api.ToggleAutoResolveRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	// Tenant ownership is checked before the toggle so a foreign group is
	// reported as forbidden, not silently flipped.
	if _, err := s.engine.GetGroup(r.Context(), tenant, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	found, err := s.engine.ToggleAutoResolve(r.Context(), id, req.Enabled)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !found {
		s.writeServiceError(w, r, fmt.Errorf("%w: %s", engine.ErrGroupNotFound, id))
		return
	}

	detail, err := s.engine.GetGroup(r.Context(), tenant, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.GroupResponse{
		DupGroup:       detail.DupGroup,
		AutoResolvable: detail.AutoResolvable,
	})
}
