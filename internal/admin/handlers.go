package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/coldkeep/coldkeep/internal/lifecycle"
	"github.com/coldkeep/coldkeep/internal/record"
	"github.com/coldkeep/coldkeep/internal/tier"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type filesResponse struct {
	Files []record.File `json:"files"`
	Count int           `json:"count"`
}

type urlResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type orphansResponse struct {
	Orphans []lifecycle.OrphanObject `json:"orphans"`
	Count   int                      `json:"count"`
}

type deleteOrphansRequest struct {
	Prefix string    `json:"prefix"`
	Tier   tier.Tier `json:"tier"`
	DryRun bool      `json:"dry_run"`
}

type adoptOrphansRequest struct {
	Prefix      string    `json:"prefix"`
	Tier        tier.Tier `json:"tier"`
	SetHotUntil bool      `json:"set_hot_until"`
	HotFor      string    `json:"hot_for,omitempty"` // duration string, e.g. "24h"
}

type archiveResponse struct {
	Moved int `json:"moved"`
}

func (s *Server) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode admin response")
	}
}

// handlerError maps lifecycle errors onto HTTP status codes.
func (s *Server) handlerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, record.ErrNotFound):
		s.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrNoVisibilityPrefix), errors.Is(err, lifecycle.ErrNotHot):
		s.jsonError(w, err.Error(), http.StatusConflict)
	default:
		s.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"records": "ok"}
	code := http.StatusOK

	// A miss proves the record backend answered; only transport or
	// backend failures count against health.
	if _, err := s.manager.FindByID(r.Context(), "health-probe"); err != nil && !errors.Is(err, record.ErrNotFound) {
		checks["records"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	status := "ok"
	if code != http.StatusOK {
		status = "degraded"
	}
	s.writeJSON(w, code, healthResponse{Status: status, Checks: checks})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.manager.ListFiles(r.Context())
	if err != nil {
		s.handlerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, filesResponse{Files: files, Count: len(files)})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.manager.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handlerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFileURL(w http.ResponseWriter, r *http.Request) {
	var expires time.Duration
	if v := r.URL.Query().Get("expires"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.jsonError(w, "invalid expires duration", http.StatusBadRequest)
			return
		}
		expires = d
	}

	f, err := s.manager.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handlerError(w, err)
		return
	}

	u, err := s.manager.URL(f, expires)
	if err != nil {
		s.handlerError(w, err)
		return
	}
	s.audit.LogFileOp(subjectFromContext(r.Context()), "get_url", f.ID, "ok", "", r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, urlResponse{ID: f.ID, URL: u})
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	all, err := s.manager.ListAllObjects(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.handlerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleListOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := s.manager.ListOrphanObjects(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.handlerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orphansResponse{Orphans: orphans, Count: len(orphans)})
}

func (s *Server) handleDeleteOrphans(w http.ResponseWriter, r *http.Request) {
	var req deleteOrphansRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Tier != "" && !req.Tier.Valid() {
		s.jsonError(w, "invalid tier", http.StatusBadRequest)
		return
	}

	result, err := s.manager.DeleteOrphans(r.Context(), lifecycle.DeleteOrphanOptions{
		Prefix: req.Prefix,
		Tier:   req.Tier,
		DryRun: req.DryRun,
	})
	if err != nil {
		s.handlerError(w, err)
		return
	}
	s.audit.LogOrphanOp(subjectFromContext(r.Context()), "delete", string(req.Tier), req.Prefix, result.Deleted, result.DryRun, r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdoptOrphans(w http.ResponseWriter, r *http.Request) {
	var req adoptOrphansRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Tier != "" && !req.Tier.Valid() {
		s.jsonError(w, "invalid tier", http.StatusBadRequest)
		return
	}

	opts := lifecycle.AdoptOrphanOptions{
		Prefix:      req.Prefix,
		Tier:        req.Tier,
		SetHotUntil: req.SetHotUntil,
	}
	if req.HotFor != "" {
		d, err := time.ParseDuration(req.HotFor)
		if err != nil {
			s.jsonError(w, "invalid hot_for duration", http.StatusBadRequest)
			return
		}
		opts.HotDuration = &d
	}

	result, err := s.manager.AdoptOrphans(r.Context(), opts)
	if err != nil {
		s.handlerError(w, err)
		return
	}
	s.audit.LogOrphanOp(subjectFromContext(r.Context()), "adopt", string(req.Tier), req.Prefix, result.Adopted, false, r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	moved, err := s.manager.ArchiveExpiredHotFiles(r.Context())
	if err != nil {
		s.handlerError(w, err)
		return
	}
	s.audit.LogFileOp(subjectFromContext(r.Context()), "archive", "", "ok", fmt.Sprintf("%d file(s) moved", moved), r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, archiveResponse{Moved: moved})
}
