package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/hexlay/cyberchat/internal/model/chat"
	"github.com/hexlay/cyberchat/internal/service/session"
	"github.com/hexlay/cyberchat/internal/service/turn"
	"github.com/hexlay/cyberchat/pkg/utils"
)

// Handler serves session-collection and transient-state endpoints.
type Handler struct {
	sessions *session.Service
	engine   *turn.Engine
}

// New creates the chat handler.
func New(sessions *session.Service, engine *turn.Engine) *Handler {
	return &Handler{sessions: sessions, engine: engine}
}

// RegisterRoutes registers session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Post("/sessions", h.handleCreateSession)
	r.Post("/sessions/{sessionID}/activate", h.handleActivateSession)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
	r.Get("/messages", h.handleMessages)
	r.Get("/state", h.handleState)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessions": h.sessions.Sessions(),
		"active":   h.sessions.ActiveID(),
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	created := h.sessions.Create()
	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleActivateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !h.sessions.Switch(id) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"active": id})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !h.sessions.Delete(id) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"active": h.sessions.ActiveID()})
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	messages := h.sessions.Messages()
	if messages == nil {
		messages = []chatmodel.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": h.sessions.ActiveID(),
		"messages":  messages,
	})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.engine.Snapshot())
}
