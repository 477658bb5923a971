package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Capstone-E1/hydrodose_console/internal/ws"
)

// SetupRoutes configures all HTTP routes for the operator console
func SetupRoutes(handlers *Handlers, wsHub *ws.Hub) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // local console UI
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Session
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", handlers.Login)
			r.Post("/register", handlers.Register)
			r.Post("/logout", handlers.Logout)
			r.Get("/session", handlers.GetSession)
		})

		// Alum dosing flow
		r.Route("/alum", func(r chi.Router) {
			r.Get("/state", handlers.GetAlumState)
			r.Post("/submit", handlers.SubmitAlum)
			r.Post("/advanced", handlers.SubmitAlumAdvanced)
			r.Put("/inputs", handlers.UpdateAlumInputs)
		})

		// Lime dosing flows (pre-lime, post-lime)
		r.Route("/lime/{stage}", func(r chi.Router) {
			r.Get("/state", handlers.GetLimeState)
			r.Post("/submit", handlers.SubmitLime)
		})

		// Dashboard
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", handlers.GetDashboard)
			r.Put("/lookback", handlers.SetLookback)
		})

		// Downloads
		r.Get("/reports/{capability}/pdf", handlers.DownloadReport)
		r.Get("/exports/history.xlsx", handlers.DownloadHistoryXLSX)
	})

	// WebSocket endpoint for live updates
	r.Get("/ws", wsHub.HandleWebSocket)

	return r
}
