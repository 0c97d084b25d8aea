// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/handlers"
	"github.com/danielhkuo/wqt-backend/middleware"
)

func NewRouter(pool *db.Pool, cfg cliparse.Config) http.Handler {
	r := chi.NewRouter()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(pool, cfg)
	stateHandler := handlers.NewStateHandler(pool, cfg)
	shiftHandler := handlers.NewShiftHandler(pool, cfg)
	orderHandler := handlers.NewOrderHandler(pool, cfg)
	historyHandler := handlers.NewHistoryHandler(pool, cfg)
	deviceHandler := handlers.NewDeviceHandler(pool, cfg)
	adminHandler := handlers.NewAdminHandler(pool, cfg)
	messageHandler := handlers.NewMessageHandler(pool, cfg)
	locationHandler := handlers.NewLocationHandler(pool, cfg)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wqt-backend API v1"))
	})

	// Authentication (public; register checks for an admin token itself)
	r.Post("/api/auth/register", middleware.WithLogging(authHandler.Register))
	r.Post("/api/auth/login", middleware.WithLogging(authHandler.Login))
	r.Post("/auth/login_pin", middleware.WithLogging(authHandler.LoginPin))
	r.Post("/auth/role_access", middleware.WithLogging(authHandler.RoleAccess))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.JWTSecret))

		r.Get("/api/auth/me", middleware.WithLogging(authHandler.Me))

		// Tracker state
		r.Get("/api/state", middleware.WithLogging(stateHandler.GetState))
		r.Post("/api/state", middleware.WithLogging(stateHandler.SaveState))

		// Shifts
		r.Post("/api/shifts/start", middleware.WithLogging(shiftHandler.StartShift))
		r.Post("/api/shifts/end", middleware.WithLogging(shiftHandler.EndShift))
		r.Get("/api/shifts/active", middleware.WithLogging(shiftHandler.GetActive))
		r.Get("/api/shifts/recent", middleware.WithLogging(shiftHandler.GetRecent))
		r.Get("/api/shift/{id}/state", middleware.WithLogging(shiftHandler.GetShiftState))
		r.Patch("/api/shift/{id}/state", middleware.WithLogging(shiftHandler.PatchShiftState))

		// Orders and history
		r.Post("/api/orders/record", middleware.WithLogging(orderHandler.RecordOrder))
		r.Get("/api/history/operator/{id}", middleware.WithLogging(historyHandler.OperatorHistory))
		r.Get("/api/history/operator/{id}/export", middleware.WithLogging(historyHandler.ExportHistory))

		// Devices
		r.Get("/api/devices/me", middleware.WithLogging(deviceHandler.GetMe))

		// Admin
		r.Get("/api/admin/devices", middleware.WithLogging(deviceHandler.ListDevices))
		r.Get("/api/admin/logs", middleware.WithLogging(adminHandler.RecentUsage))
		r.Get("/api/admin/usage/summary", middleware.WithLogging(adminHandler.UsageSummary))
		r.Post("/api/admin/messages", middleware.WithLogging(messageHandler.CreateMessage))

		// Messages
		r.Get("/api/messages", middleware.WithLogging(messageHandler.ListMessages))
		r.Post("/api/messages/{id}/read", middleware.WithLogging(messageHandler.MarkRead))

		// Warehouse locations
		r.Post("/api/warehouse/locations/bulk", middleware.WithLogging(locationHandler.BulkUpdate))
		r.Get("/api/warehouse/locations/summary", middleware.WithLogging(locationHandler.Summary))
		r.Post("/api/warehouse/locations/{aisle}/{bay}/toggle", middleware.WithLogging(locationHandler.Toggle))
	})

	return middleware.Chain(r,
		chimw.RequestID,
		middleware.Recover,
		middleware.CORS,
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
			ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		}),
	)
}
