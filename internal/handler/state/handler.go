// Package state exposes the location cache, collections, and context
// aggregator over the local debug surface. The location fix route is
// the upstream input boundary for the background location source.
package state

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	locationModel "github.com/yichenzhou/tablemate/internal/model/location"
	"github.com/yichenzhou/tablemate/internal/model/place"
	"github.com/yichenzhou/tablemate/internal/service/aicontext"
	"github.com/yichenzhou/tablemate/internal/service/collections"
	locationService "github.com/yichenzhou/tablemate/internal/service/location"
	"github.com/yichenzhou/tablemate/pkg/utils"
)

// Handler serves location, collections, and context routes.
type Handler struct {
	location    *locationService.Cache
	collections *collections.Service
	contexts    *aicontext.Builder
}

// New creates the state handler.
func New(location *locationService.Cache, coll *collections.Service, contexts *aicontext.Builder) *Handler {
	return &Handler{location: location, collections: coll, contexts: contexts}
}

// RegisterRoutes mounts the state routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/location", h.handleLocation)
	r.Post("/location/fix", h.handleFix)

	r.Get("/collections/favorites", h.handleFavorites)
	r.Post("/collections/favorites/toggle", h.handleToggleFavorite)
	r.Get("/collections/discoveries", h.handleDiscoveries)
	r.Post("/collections/refresh", h.handleRefresh)

	r.Get("/context", h.handleContext)
}

func (h *Handler) handleLocation(w http.ResponseWriter, r *http.Request) {
	snap := h.location.Current()
	if snap == nil {
		utils.RespondError(w, http.StatusNotFound, "no location observed yet")
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleFix accepts a raw geolocation fix and hands it to the cache
// without waiting for resolution.
func (h *Handler) handleFix(w http.ResponseWriter, r *http.Request) {
	var fix locationModel.Fix
	if err := utils.DecodeJSON(r, &fix); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.location.UpdateAsync(fix)
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleFavorites(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.collections.Favorites())
}

func (h *Handler) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var p place.Place
	if err := utils.DecodeJSON(r, &p); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Name == "" && p.PlaceID == "" {
		utils.RespondError(w, http.StatusBadRequest, "place name or id is required")
		return
	}

	err := h.collections.ToggleFavorite(r.Context(), p)
	payload := map[string]any{
		"place_key":   p.Key(),
		"is_favorite": h.collections.IsFavorite(p.Key()),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	utils.RespondJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleDiscoveries(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.collections.Discoveries())
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.collections.FetchAll(r.Context()); err != nil {
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"favorites":   len(h.collections.Favorites()),
		"discoveries": len(h.collections.Discoveries()),
	})
}

func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.contexts.Build())
}
