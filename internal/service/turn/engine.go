// Package turn drives one submission at a time: it commits the user turn,
// opens a streamed backend response, and folds the chunks into the session
// store so the transcript always ends in a single assistant message.
package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/hexlay/cyberchat/internal/cue"
	"github.com/hexlay/cyberchat/internal/model/chat"
	"github.com/hexlay/cyberchat/internal/model/persona"
	"github.com/hexlay/cyberchat/internal/service/session"
)

var (
	// ErrEmptyInput rejects whitespace-only submissions before any state changes.
	ErrEmptyInput = errors.New("empty input")
	// ErrBusy rejects a submission while another is in flight. This is the
	// sole guard against overlapping streams into one session.
	ErrBusy = errors.New("submission already in flight")
	// ErrNoUserTurn means retry found no prior user message to re-issue.
	ErrNoUserTurn = errors.New("no user message to retry")
	// ErrNoGateway means the backend is not configured.
	ErrNoGateway = errors.New("backend gateway unavailable")
)

// Phase names the engine states.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseError
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// Gateway is the backend boundary the engine submits through.
type Gateway interface {
	StreamingEnabled() bool
	Generate(ctx context.Context, system string, history []chat.Message, userMessage string) (*schema.Message, error)
	Stream(ctx context.Context, system string, history []chat.Message, userMessage string) (*schema.StreamReader[*schema.Message], error)
}

// State is a snapshot of the transient UI state. None of it is persisted.
type State struct {
	Phase     Phase       `json:"-"`
	PhaseName string      `json:"phase"`
	Busy      bool        `json:"isLoading"`
	Error     string      `json:"error,omitempty"`
	Input     string      `json:"input"`
	Persona   persona.Key `json:"persona"`
	ActiveID  string      `json:"activeSession,omitempty"`
}

// Engine is the turn submission state machine.
type Engine struct {
	sessions *session.Service
	gateway  Gateway
	cues     cue.Player
	timeout  time.Duration

	mu     sync.Mutex
	phase  Phase
	err    error
	input  string
	cancel context.CancelFunc
}

// New wires the engine. A zero timeout disables the per-submission deadline.
func New(sessions *session.Service, gateway Gateway, cues cue.Player, timeout time.Duration) *Engine {
	if cues == nil {
		cues = cue.Nop{}
	}
	return &Engine{
		sessions: sessions,
		gateway:  gateway,
		cues:     cues,
		timeout:  timeout,
	}
}

// Submit runs one user turn to completion. Empty input and overlapping
// submissions are rejected before any state changes. onDelta, if non-nil,
// observes each streamed chunk as it is committed.
func (e *Engine) Submit(ctx context.Context, raw string, onDelta func(string)) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ErrEmptyInput
	}

	if err := e.begin(); err != nil {
		return err
	}

	e.cues.Play(cue.Send)
	e.sessions.Append(chat.RoleUser, text)
	return e.run(ctx, text, onDelta)
}

// Retry re-issues the most recent prior user turn without duplicating it in
// the transcript. With no user turn on record it is a no-op.
func (e *Engine) Retry(ctx context.Context, onDelta func(string)) error {
	text, ok := e.sessions.LastUserMessage()
	if !ok {
		return ErrNoUserTurn
	}

	if err := e.begin(); err != nil {
		return err
	}

	return e.run(ctx, text, onDelta)
}

// Cancel abandons an in-flight submission. The stream reader is released by
// the aborted read; already-committed partial output stays in the session.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Input returns the draft input.
func (e *Engine) Input() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input
}

// SetInput replaces the draft input.
func (e *Engine) SetInput(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.input = text
}

// Snapshot reports the current transient state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := State{
		Phase:     e.phase,
		PhaseName: e.phase.String(),
		Busy:      e.phase == PhaseSubmitting,
		Input:     e.input,
		Persona:   e.sessions.Persona(),
		ActiveID:  e.sessions.ActiveID(),
	}
	if e.err != nil {
		state.Error = e.err.Error()
	}
	return state
}

// begin transitions idle/error -> submitting, clearing any prior error and
// the draft input.
func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseSubmitting {
		return ErrBusy
	}

	e.phase = PhaseSubmitting
	e.err = nil
	e.input = ""
	return nil
}

func (e *Engine) run(ctx context.Context, userTurn string, onDelta func(string)) error {
	if e.gateway == nil {
		return e.fail(ErrNoGateway)
	}

	// The user turn being answered travels as the query, not as history.
	// Everything from that turn on is stripped, which also drops the partial
	// assistant output a failed attempt may have left behind it.
	history := e.sessions.Messages()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != chat.RoleUser {
			continue
		}
		if history[i].Content == userTurn {
			history = history[:i]
		}
		break
	}

	if e.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, e.timeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	system := e.sessions.Persona().Prompt()

	if !e.gateway.StreamingEnabled() {
		response, err := e.gateway.Generate(ctx, system, history, userTurn)
		if err != nil {
			return e.fail(err)
		}
		if response != nil && response.Content != "" {
			e.sessions.Append(chat.RoleAssistant, response.Content)
			if onDelta != nil {
				onDelta(response.Content)
			}
		}
		e.finish()
		return nil
	}

	stream, err := e.gateway.Stream(ctx, system, history, userTurn)
	if err != nil {
		return e.fail(fmt.Errorf("open response stream: %w", err))
	}
	defer stream.Close()

	// The running buffer is re-committed after every chunk; the session store's
	// overwrite-if-assistant rule keeps it a single trailing message.
	var buffer strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return e.fail(fmt.Errorf("read response stream: %w", recvErr))
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		buffer.WriteString(chunk.Content)
		e.sessions.Append(chat.RoleAssistant, buffer.String())
		if onDelta != nil {
			onDelta(chunk.Content)
		}
	}

	e.finish()
	return nil
}

// fail transitions to the error state. Partial assistant output already
// committed to the session is left intact.
func (e *Engine) fail(err error) error {
	e.mu.Lock()
	e.phase = PhaseError
	e.err = err
	e.cancel = nil
	e.mu.Unlock()

	e.cues.Play(cue.Error)
	log.Printf("[turn] submission failed: %v", err)
	return err
}

func (e *Engine) finish() {
	e.mu.Lock()
	e.phase = PhaseIdle
	e.cancel = nil
	e.mu.Unlock()

	e.cues.Play(cue.Message)
}
