package listener

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ishandutta2007/taskt/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.whitelistMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Both authenticate the body themselves.
		r.Post("/control", s.handleControl)
		r.Post("/auth/token", s.handleIssueToken)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/commands", requirePermission(auth.PermRunRead, s.handleListCommands))
			r.Get("/scripts", requirePermission(auth.PermRunRead, s.handleListScripts))
			r.Get("/history", requirePermission(auth.PermRunRead, s.handleListHistory))

			r.Route("/runs", func(r chi.Router) {
				r.Get("/", requirePermission(auth.PermRunRead, s.handleListRuns))
				r.Post("/", requirePermission(auth.PermRunStart, s.handleStartRun))

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", requirePermission(auth.PermRunRead, s.handleGetRun))
					r.Get("/history", requirePermission(auth.PermRunRead, s.handleGetRunHistory))
					r.Post("/{action}", s.handleRunAction)
				})
			})

			r.Get("/ws", requirePermission(auth.PermRunRead, s.handleWebSocket))
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"active_runs": s.manager.Active(),
		"ws_clients":  s.hub.ClientCount(),
	})
}
