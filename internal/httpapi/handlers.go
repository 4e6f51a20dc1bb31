package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/dimkroon/translate-subs/internal/config"
	"github.com/dimkroon/translate-subs/internal/jobs"
	"github.com/dimkroon/translate-subs/pkg/log"
)

type enqueueJobRequest struct {
	Source         string `json:"source"`
	SubtitlePath   string `json:"subtitle_path"`
	TargetLanguage string `json:"target_language"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}
	if strings.TrimSpace(req.SubtitlePath) == "" {
		writeError(w, http.StatusBadRequest, "subtitle_path is required")
		return
	}

	target := language.Und
	if req.TargetLanguage != "" {
		tag, err := language.Parse(req.TargetLanguage)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid target_language")
			return
		}
		target = tag
	}

	job, created, err := s.svc.Enqueue(req.Source, req.SubtitlePath, target)
	if err != nil {
		writeAppError(w, err)
		return
	}
	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"created": created,
		"job":     job,
	})
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.queue.Retry(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrJobActive):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeAppError(w, err)
	default:
		writeJSON(w, http.StatusAccepted, job)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Counts())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	created, err := s.svc.ScanOnce(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"created": created,
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	dir, err := s.svc.ExportDiagnostics()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"path": dir,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	var req config.RuntimeSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.settings.UpdateRuntimeSettings(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.apply != nil {
		if err := s.apply(saved); err != nil {
			writeAppError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, saved)
}

// writeAppError maps the error kind to a status code.
func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperr.KindValidation, apperr.KindConfig, apperr.KindParse:
			status = http.StatusBadRequest
		case apperr.KindFileNotFound:
			status = http.StatusNotFound
		}
	}
	if status == http.StatusInternalServerError {
		log.Error("Request failed: %v", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
