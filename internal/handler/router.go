package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yichenzhou/tablemate/internal/backend"
	"github.com/yichenzhou/tablemate/internal/handler/rooms"
	"github.com/yichenzhou/tablemate/internal/handler/state"
	"github.com/yichenzhou/tablemate/internal/service/aicontext"
	"github.com/yichenzhou/tablemate/internal/service/collections"
	"github.com/yichenzhou/tablemate/internal/service/directory"
	locationService "github.com/yichenzhou/tablemate/internal/service/location"
	"github.com/yichenzhou/tablemate/internal/service/presence"
	"github.com/yichenzhou/tablemate/internal/service/session"
)

// Deps bundles the services the local surface exposes.
type Deps struct {
	API         *backend.Client
	Directory   *directory.Service
	Session     *session.Service
	Tracker     *presence.Tracker
	Location    *locationService.Cache
	Collections *collections.Service
	Contexts    *aicontext.Builder
}

// NewRouter wires the local debug/inspection routes to the engine's
// services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	roomsHandler := rooms.New(deps.API, deps.Directory, deps.Session, deps.Tracker)
	stateHandler := state.New(deps.Location, deps.Collections, deps.Contexts)

	r.Route("/api", func(api chi.Router) {
		roomsHandler.RegisterRoutes(api)
		stateHandler.RegisterRoutes(api)
	})

	return r
}
