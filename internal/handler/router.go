package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chathandler "github.com/hexlay/cyberchat/internal/handler/chat"
	personahandler "github.com/hexlay/cyberchat/internal/handler/persona"
	streamhandler "github.com/hexlay/cyberchat/internal/handler/stream"
	middlewarePkg "github.com/hexlay/cyberchat/internal/middleware"
	"github.com/hexlay/cyberchat/internal/service/command"
	"github.com/hexlay/cyberchat/internal/service/session"
	"github.com/hexlay/cyberchat/internal/service/turn"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(sessions *session.Service, engine *turn.Engine, commands *command.Interpreter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := personahandler.New()
	chatHandler := chathandler.New(sessions, engine)
	streamHandler := streamhandler.New(sessions, engine, commands)
	wsHandler := streamhandler.NewWebSocket(streamHandler)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		api.Get("/chat", streamHandler.HandleChat)
		api.Get("/chat/retry", streamHandler.HandleRetry)
		api.Get("/ws", wsHandler.HandleWebSocket)
	})

	return r
}
