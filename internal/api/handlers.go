// internal/api/handlers.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/clinovault/sentinel/internal/diagnostic"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// handleReadyz reports readiness from the latest diagnostic report. No
// report yet means the service is still warming up but able to serve.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	report := s.engine.LastReport()
	if report == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"ready":  true,
			"status": string(diagnostic.StatusUnknown),
		})
		return
	}

	status := http.StatusOK
	ready := true
	if report.OverallHealth == diagnostic.StatusUnhealthy {
		status = http.StatusServiceUnavailable
		ready = false
	}
	s.writeJSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": string(report.OverallHealth),
	})
}

func (s *Server) handleGetDiagnostics(w http.ResponseWriter, r *http.Request) {
	report := s.engine.LastReport()
	if report == nil {
		s.writeError(w, http.StatusNotFound, "no diagnostic report available yet")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRunDiagnostics(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Run(r.Context(), diagnostic.TriggerManual)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			// Client went away mid-session; nothing to answer.
			return
		}
		s.logger.Error("manual diagnostic run failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "diagnostic session failed")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("active") == "true" {
		s.writeJSON(w, http.StatusOK, s.alerts.Active())
		return
	}
	s.writeJSON(w, http.StatusOK, s.alerts.All())
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.alerts.ResolveAlert(id); err != nil {
		s.writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.alerts.Get(id))
}
