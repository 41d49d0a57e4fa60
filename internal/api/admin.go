package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"iara/internal/models"
	"iara/internal/storage"
)

func (s *Server) handleRequestApproval(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeFail(w, badRequest("invalid json: %v", err))
		return
	}
	if p.Email == "" {
		p.Email = strings.TrimSpace(req.Email)
	}
	a, created, err := s.approvals.RequestApproval(r.Context(), p, req.FullName)
	if err != nil {
		writeFail(w, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{"success": true, "approval": a, "created": created})
}

// handleApproveUser accepts the decision as a JSON body or as query parameters so
// that links in admin emails work.
func (s *Server) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	p, ok := s.admin(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"userId"`
		Action string `json:"action"`
	}
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &req); err != nil {
			writeFail(w, err)
			return
		}
	} else {
		req.UserID = r.URL.Query().Get("userId")
		req.Action = r.URL.Query().Get("action")
	}
	a, err := s.approvals.Decide(r.Context(), p, strings.TrimSpace(req.UserID), req.Action)
	if err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "approval": a})
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	p, ok := s.admin(w, r)
	if !ok {
		return
	}
	users, err := s.approvals.ListUsers(r.Context(), p)
	if err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": users})
}

func (s *Server) handleAdminUserRole(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	p, ok := s.admin(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID string      `json:"userId"`
		Role   models.Role `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeFail(w, badRequest("userId is required"))
		return
	}
	if err := s.approvals.SetRole(r.Context(), p, req.UserID, req.Role); err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user_id": req.UserID, "role": req.Role})
}

func (s *Server) handleAdminApprovals(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	p, ok := s.admin(w, r)
	if !ok {
		return
	}
	list, err := s.approvals.List(r.Context(), p, r.URL.Query().Get("status"))
	if err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "approvals": list})
}

func (s *Server) handleAdminCases(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	p, ok := s.admin(w, r)
	if !ok {
		return
	}
	list, err := s.cases.ListAllCases(r.Context(), p)
	if err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cases": list})
}

func (s *Server) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if _, ok := s.admin(w, r); !ok {
		return
	}
	q := r.URL.Query()
	f := storage.LogFilter{CaseID: q.Get("caseId"), Status: q.Get("status")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeFail(w, badRequest("limit must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	logs, err := s.logs.List(r.Context(), f)
	if err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "logs": logs})
}

func (s *Server) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	if _, ok := s.admin(w, r); !ok {
		return
	}
	if r.Method == http.MethodGet {
		list, err := s.settings.List(r.Context())
		if err != nil {
			writeFail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": list})
		return
	}
	var req models.Setting
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, err)
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		writeFail(w, badRequest("key is required"))
		return
	}
	req.UpdatedAt = time.Now().UTC()
	if err := s.settings.Set(r.Context(), req.Key, req.Value, req.UpdatedAt); err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "setting": req})
}
