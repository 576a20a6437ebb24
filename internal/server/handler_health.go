package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/ksched/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
	Runs      int    `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	resp := healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     "ok",
	}

	_, total, err := s.store.ListRuns(r.Context(), model.ListOptions{Limit: 1})
	if err != nil {
		s.logger.Warn("health: store unavailable", "error", err)
		resp.Status = "degraded"
		resp.Store = err.Error()
	}
	resp.Runs = total
	respondOK(w, reqID, resp)
}
