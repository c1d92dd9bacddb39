package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/chathub/internal/api/apierr"
	"github.com/mcoot/chathub/internal/api/handler"
	"github.com/mcoot/chathub/internal/api/middleware"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	ServerID    string
	AdminToken  string
	Diagnostics handler.Diagnostics
	// WebSocket serves the chat protocol; the route is omitted when nil
	WebSocket http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	})

	adminHandler := handler.NewAdminHandler(cfg.Diagnostics, cfg.ServerID)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestID)
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", adminHandler.Health).Methods(http.MethodGet)

	if cfg.WebSocket != nil {
		api.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	}

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminToken(cfg.AdminToken))
	admin.HandleFunc("/sessions", adminHandler.ListSessions).Methods(http.MethodGet)
	admin.HandleFunc("/sessions", adminHandler.ResetSessions).Methods(http.MethodDelete)
	admin.HandleFunc("/sessions/count", adminHandler.SessionCount).Methods(http.MethodGet)
	admin.HandleFunc("/connections/count", adminHandler.ConnectionCount).Methods(http.MethodGet)
	admin.HandleFunc("/rooms", adminHandler.ListRooms).Methods(http.MethodGet)
	admin.HandleFunc("/rooms/{room_id}", adminHandler.GetRoom).Methods(http.MethodGet)
	admin.HandleFunc("/scheduler", adminHandler.Schedulers).Methods(http.MethodGet)

	return r
}
