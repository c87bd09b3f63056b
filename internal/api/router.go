package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/trailobot-core/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Dashboard page
	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.cfg.PanelDir)))
	r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Read-only dashboard state
		r.Get("/status", s.handleStatus)
		r.Get("/telemetry", s.handleTelemetry)
		r.Get("/grid", s.handleGrid)
		r.Get("/goals", s.handleListGoals)
		r.Get("/goals/{id}", s.handleGetGoal)
		r.Get("/teleop", s.handleGetTeleop)

		// WebSocket (ticket checked in handler when auth is on)
		r.Get("/ws", s.handleWebSocket)

		// Commands
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Put("/bridge/endpoint", s.handleSetEndpoint)
			r.Post("/greeting", s.handleGreeting)
			r.Post("/goals", s.handleSendGoal)
			r.Post("/navigation/cancel", s.handleCancel)
			r.Put("/teleop", s.handleSetTeleop)
			r.Put("/teleop/velocity", s.handleSetVelocity)
		})
	})

	return r
}
