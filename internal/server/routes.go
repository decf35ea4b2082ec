package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/gosuda/callbridge/internal/api/admin"
	"github.com/gosuda/callbridge/internal/api/botapi"
	"github.com/gosuda/callbridge/internal/api/ws"
)

func registerBotRoutes(api huma.API, calls botapi.Lifecycle) {
	botapi.RegisterRoutes(api, calls)
}

func registerAdminRoutes(api huma.API, sessions admin.SessionReader, logger zerolog.Logger) {
	admin.RegisterRoutes(api, sessions, logger)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/admin/ws/calls", hub.ServeCalls)
	r.Get("/admin/ws/calls/{id}", hub.ServeCall)
}
