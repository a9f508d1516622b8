package chat

import (
	"time"

	"github.com/hexlay/cyberchat/internal/model/persona"
)

// Session is one persisted conversation, bound to the persona that was
// selected when it was created.
type Session struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Messages  []Message   `json:"messages"`
	CreatedAt time.Time   `json:"createdAt"`
	Persona   persona.Key `json:"persona"`
}

// Summary describes a session without its transcript, for listings.
type Summary struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	CreatedAt time.Time   `json:"createdAt"`
	Persona   persona.Key `json:"persona"`
	Turns     int         `json:"turns"`
}

// Summarize strips the transcript down to listing metadata.
func (s *Session) Summarize() Summary {
	return Summary{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		Persona:   s.Persona,
		Turns:     len(s.Messages),
	}
}
