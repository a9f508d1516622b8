package stream

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hexlay/cyberchat/internal/service/turn"
)

// WebSocketHandler carries the same submit/delta/end frames as the SSE
// endpoint over a persistent websocket, for clients that keep one connection
// open across turns.
type WebSocketHandler struct {
	inner    *Handler
	upgrader websocket.Upgrader
}

// NewWebSocket creates the websocket handler on top of the stream handler.
func NewWebSocket(inner *Handler) *WebSocketHandler {
	return &WebSocketHandler{
		inner: inner,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type outboundFrame struct {
	Frame
	Timestamp int64 `json:"timestamp"`
}

// HandleWebSocket upgrades the connection and serves turns until the client
// disconnects. Disconnecting mid-stream abandons the turn this connection
// started; turns started over other channels keep running.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var inbound inboundFrame
		if err := conn.ReadJSON(&inbound); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}

		switch inbound.Type {
		case "submit":
			h.serveTurn(conn, r, inbound.Text, false)
		case "retry":
			h.serveTurn(conn, r, "", true)
		default:
			h.send(conn, Frame{Event: "error", Error: fmt.Sprintf("unknown frame type %q", inbound.Type)})
		}
	}
}

func (h *WebSocketHandler) serveTurn(conn *websocket.Conn, r *http.Request, text string, retry bool) {
	if !retry && h.inner.commands.Run(text) {
		h.send(conn, Frame{Event: "command", Content: h.inner.engine.Input()})
		h.send(conn, Frame{Event: "end", Finished: true})
		return
	}

	h.inner.ensureActiveSession()
	h.send(conn, Frame{Event: "start", SessionID: h.inner.sessions.ActiveID()})

	onDelta := func(delta string) {
		ok := h.send(conn, Frame{
			Event:     "delta",
			SessionID: h.inner.sessions.ActiveID(),
			Content:   delta,
		})
		if !ok {
			// The client went away mid-stream; the in-flight turn is the one
			// this connection started, so it is safe to abandon.
			h.inner.engine.Cancel()
		}
	}

	var err error
	if retry {
		err = h.inner.engine.Retry(r.Context(), onDelta)
	} else {
		err = h.inner.engine.Submit(r.Context(), text, onDelta)
	}

	switch {
	case err == nil:
		h.send(conn, Frame{
			Event:     "message",
			SessionID: h.inner.sessions.ActiveID(),
			Content:   h.inner.assistantContent(),
		})
	case errors.Is(err, turn.ErrNoUserTurn):
	default:
		h.send(conn, Frame{Event: "error", Error: fmt.Sprintf("submission failed: %v", err)})
	}

	h.send(conn, Frame{
		Event:     "end",
		SessionID: h.inner.sessions.ActiveID(),
		Finished:  true,
	})
}

func (h *WebSocketHandler) send(conn *websocket.Conn, frame Frame) bool {
	outbound := outboundFrame{Frame: frame, Timestamp: time.Now().UnixMilli()}
	if err := conn.WriteJSON(outbound); err != nil {
		log.Printf("[ws] write failed: %v", err)
		return false
	}
	return true
}
