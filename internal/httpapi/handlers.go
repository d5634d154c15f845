package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/jenkinsprobe/internal/domain"
	"github.com/hamed0406/jenkinsprobe/internal/hosts"
	"github.com/hamed0406/jenkinsprobe/internal/repo"
)

type scanPayload struct {
	Hosts []string `json:"hosts"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// handleStartScan runs a scan synchronously and returns the stored report.
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var p scanPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	set := hosts.FromLines(p.Hosts)
	if set.Len() == 0 {
		writeError(w, http.StatusBadRequest, "no hosts")
		return
	}
	if s.MaxHosts > 0 && set.Len() > s.MaxHosts {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d hosts per scan", s.MaxHosts))
		return
	}

	rep := &domain.Report{StartedAt: time.Now().UTC()}
	part, err := s.Scanner.Run(r.Context(), set)
	if err != nil {
		s.Logger.Warn("scan_failed", zap.Int("hosts", set.Len()), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "scan aborted")
		return
	}
	rep.FinishedAt = time.Now().UTC()
	rep.Partition = part

	if err := s.Reports.Save(r.Context(), rep); err != nil {
		s.Logger.Error("report_save_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store report")
		return
	}

	s.Logger.Info("scan_completed",
		zap.String("scan_id", string(rep.ID)),
		zap.Int("hosts", set.Len()),
		zap.Int("unsecured", part.Vulnerable.Len()),
		zap.Duration("took", rep.Duration()),
	)
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	list, err := s.Reports.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := domain.ScanID(chi.URLParam(r, "id"))
	rep, err := s.Reports.Get(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get error")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
