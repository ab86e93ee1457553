package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/soconnect-backend/internal/handlers"
	"github.com/AnshRaj112/soconnect-backend/internal/metrics"
	"github.com/AnshRaj112/soconnect-backend/internal/middleware"
	"github.com/AnshRaj112/soconnect-backend/internal/services"
)

// Guards are the per-group middlewares the routes need.
type Guards struct {
	Auth        middleware.Authorizer
	SendLimiter *services.SendLimiter // nil disables per-sender limits
	AdminToken  string                // empty disables the admin routes
}

func SetupRoutes(r chi.Router, h *handlers.Handler, g Guards) {
	r.Get("/health", h.Health)
	r.Method("GET", "/metrics", metrics.Handler())

	// Auth routes
	r.Post("/api/register", h.Register)
	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(g.Auth))

		r.Get("/api/me", h.Me)

		// Conversation reads
		r.Get("/api/conversations", h.Conversations)
		r.Get("/api/conversation/{code}", h.Conversation)

		// Live sync socket
		r.Get("/ws/conversation/{code}", h.SyncSocket)

		// Writes, limited per sender
		r.Group(func(r chi.Router) {
			r.Use(middleware.SendRateLimit(g.SendLimiter))
			r.Post("/api/message", h.SendMessage)
			r.Post("/api/upload", h.UploadFile)
		})
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(g.AdminToken))
		r.Delete("/api/admin/users/{code}", h.DeleteUser)
	})
}
