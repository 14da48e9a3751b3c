package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/panel"
)

// dependencyCheckTimeout bounds all dependency checks of one health request.
const dependencyCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/door", func(r chi.Router) {
			r.Get("/", s.handleGetDoor)
			r.Get("/commands", s.handleListCommands)
			r.Post("/commands", s.handleDoorCommand)
			r.Get("/history", s.handleDoorHistory)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	if s.cfg.Panel {
		r.Handle("/*", panel.Handler(s.cfg.PanelDir))
	}

	return r
}

// handleHealth returns the server health status. The bridge report is
// included when a health source is configured. A failing dependency check
// answers 503 with status "unhealthy".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.health != nil {
		report := s.health.Status()
		resp["status"] = report.Status
		resp["bridge"] = report
	}

	code := http.StatusOK
	if len(s.checks) > 0 {
		deps, ok := s.runChecks(r.Context())
		resp["dependencies"] = deps
		if !ok {
			resp["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}

// runChecks checks every dependency with a shared timeout.
func (s *Server) runChecks(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, dependencyCheckTimeout)
	defer cancel()

	out := make(map[string]string, len(s.checks))
	ok := true
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			s.logger.Warn("dependency check failed", "dependency", name, "error", err)
			out[name] = err.Error()
			ok = false
			continue
		}
		out[name] = "ok"
	}
	return out, ok
}
