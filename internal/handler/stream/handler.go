// Package stream delivers turn submissions over Server-Sent Events and a
// websocket channel. Input is routed through the command interpreter first;
// only unmatched input reaches the submission engine.
package stream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hexlay/cyberchat/internal/model/chat"
	"github.com/hexlay/cyberchat/internal/service/command"
	"github.com/hexlay/cyberchat/internal/service/session"
	"github.com/hexlay/cyberchat/internal/service/turn"
	"github.com/hexlay/cyberchat/pkg/utils"
)

// Handler manages streamed turn delivery.
type Handler struct {
	sessions *session.Service
	engine   *turn.Engine
	commands *command.Interpreter
}

// New creates the stream handler.
func New(sessions *session.Service, engine *turn.Engine, commands *command.Interpreter) *Handler {
	return &Handler{sessions: sessions, engine: engine, commands: commands}
}

// Frame is one streamed response event.
type Frame struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleChat processes one input over SSE.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	if h.commands.Run(message) {
		utils.SendSSEChunk(w, flusher, Frame{
			Event:   "command",
			Content: h.engine.Input(),
		})
		utils.SendSSEChunk(w, flusher, Frame{Event: "end", Finished: true})
		return
	}

	h.ensureActiveSession()

	utils.SendSSEChunk(w, flusher, Frame{
		Event:     "start",
		SessionID: h.sessions.ActiveID(),
	})

	err := h.engine.Submit(r.Context(), message, func(delta string) {
		utils.SendSSEChunk(w, flusher, Frame{
			Event:     "delta",
			SessionID: h.sessions.ActiveID(),
			Content:   delta,
		})
	})
	h.finishSSE(w, flusher, err)
}

// HandleRetry re-issues the last user turn over SSE.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	utils.SendSSEChunk(w, flusher, Frame{
		Event:     "start",
		SessionID: h.sessions.ActiveID(),
	})

	err := h.engine.Retry(r.Context(), func(delta string) {
		utils.SendSSEChunk(w, flusher, Frame{
			Event:     "delta",
			SessionID: h.sessions.ActiveID(),
			Content:   delta,
		})
	})
	h.finishSSE(w, flusher, err)
}

func (h *Handler) finishSSE(w http.ResponseWriter, flusher http.Flusher, err error) {
	sessionID := h.sessions.ActiveID()

	switch {
	case err == nil:
		utils.SendSSEChunk(w, flusher, Frame{
			Event:     "message",
			SessionID: sessionID,
			Content:   h.assistantContent(),
		})
	case errors.Is(err, turn.ErrNoUserTurn):
		// Retry with no prior user turn is a no-op, not a failure.
	default:
		utils.SendSSEChunk(w, flusher, Frame{
			Event: "error",
			Error: fmt.Sprintf("submission failed: %v", err),
		})
	}

	utils.SendSSEChunk(w, flusher, Frame{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})
}

// ensureActiveSession lazily creates a session for the first turn of a fresh
// install, mirroring the implicit single chat of the legacy mode.
func (h *Handler) ensureActiveSession() {
	if h.sessions.ActiveID() == "" {
		h.sessions.Create()
	}
}

// assistantContent returns the trailing assistant message, which holds the
// full coalesced response after a successful submission.
func (h *Handler) assistantContent() string {
	messages := h.sessions.Messages()
	if n := len(messages); n > 0 && messages[n-1].Role == chat.RoleAssistant {
		return messages[n-1].Content
	}
	return ""
}
