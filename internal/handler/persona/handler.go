package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hexlay/cyberchat/internal/model/persona"
	"github.com/hexlay/cyberchat/pkg/utils"
)

// Handler serves the persona registry.
type Handler struct{}

// New creates the persona handler.
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes registers persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

type personaView struct {
	Key         persona.Key `json:"key"`
	Description string      `json:"description"`
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	keys := persona.All()
	views := make([]personaView, 0, len(keys))
	for _, key := range keys {
		views = append(views, personaView{Key: key, Description: key.Description()})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}
