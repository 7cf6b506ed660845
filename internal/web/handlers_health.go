package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/regionalert/internal/core"
)

type healthResponse struct {
	Status   string                    `json:"status"`
	Database string                    `json:"database"`
	Imports  *core.ImportLimiterStatus `json:"imports,omitempty"`
}

// handleHealth serves GET /healthz. It returns 503 when the store is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "unchecked"}
	status := http.StatusOK

	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	if s.deps.Limiter != nil {
		st := s.deps.Limiter.Status()
		resp.Imports = &st
	}

	respondJSON(w, status, resp)
}
