// Package rooms exposes the room directory, lifecycle calls, and the
// active session over the local debug surface.
package rooms

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yichenzhou/tablemate/internal/backend"
	"github.com/yichenzhou/tablemate/internal/service/directory"
	"github.com/yichenzhou/tablemate/internal/service/presence"
	"github.com/yichenzhou/tablemate/internal/service/session"
	"github.com/yichenzhou/tablemate/pkg/utils"
)

// Handler serves room and session routes.
type Handler struct {
	api       *backend.Client
	directory *directory.Service
	session   *session.Service
	tracker   *presence.Tracker
}

// New creates the rooms handler.
func New(api *backend.Client, dir *directory.Service, sess *session.Service, tracker *presence.Tracker) *Handler {
	return &Handler{api: api, directory: dir, session: sess, tracker: tracker}
}

// RegisterRoutes mounts the room routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rooms", h.handleList)
	r.Post("/rooms", h.handleCreate)
	r.Post("/rooms/join", h.handleJoin)
	r.Delete("/rooms/{roomID}", h.handleDelete)
	r.Post("/rooms/{roomID}/leave", h.handleLeave)

	r.Post("/session/connect", h.handleConnect)
	r.Post("/session/disconnect", h.handleDisconnect)
	r.Get("/session/messages", h.handleMessages)
	r.Post("/session/messages", h.handleSend)
	r.Get("/session/typing", h.handleTyping)
	r.Post("/session/typing", h.handleSetTyping)
}

// handleList refreshes and returns the merged directory.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.directory.Fetch(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		IsPublic bool   `json:"is_public"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := h.api.CreateRoom(r.Context(), payload.Name, payload.IsPublic)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Code == "" {
		utils.RespondError(w, http.StatusBadRequest, "code is required")
		return
	}

	joined, err := h.api.JoinRoom(r.Context(), payload.Code)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, joined)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if err := h.api.DeleteRoom(r.Context(), roomID); err != nil {
		respondBackendError(w, err)
		return
	}
	if h.session.ActiveRoom() == roomID {
		h.session.Leave()
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"room_id": roomID})
}

func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if err := h.api.LeaveRoom(r.Context(), roomID); err != nil {
		respondBackendError(w, err)
		return
	}
	if h.session.ActiveRoom() == roomID {
		h.session.Leave()
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"room_id": roomID})
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RoomID string `json:"room_id"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.RoomID == "" {
		utils.RespondError(w, http.StatusBadRequest, "room_id is required")
		return
	}

	if err := h.session.Connect(payload.RoomID); err != nil {
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"room_id": payload.RoomID})
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	h.session.Disconnect()
	utils.RespondJSON(w, http.StatusOK, map[string]string{"room_id": h.session.ActiveRoom()})
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.session.Messages())
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	if err := h.session.SendMessage(r.Context(), payload.Content); err != nil {
		if errors.Is(err, session.ErrNoActiveRoom) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		respondBackendError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *Handler) handleTyping(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"typing": h.tracker.TypingNow()})
}

func (h *Handler) handleSetTyping(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Typing bool `json:"typing"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.tracker.SetTyping(payload.Typing)
	utils.RespondJSON(w, http.StatusAccepted, map[string]bool{"typing": payload.Typing})
}

// respondBackendError maps a backend rejection onto the local surface,
// preserving the remote status and detail.
func respondBackendError(w http.ResponseWriter, err error) {
	var remote *backend.RemoteError
	if errors.As(err, &remote) {
		utils.RespondError(w, remote.Status, remote.Detail)
		return
	}
	utils.RespondError(w, http.StatusBadGateway, err.Error())
}
