// Package command maps literal slash-prefixed input onto side-effecting
// actions against the session store and persona selection. Unmatched input
// falls through to normal submission; an unknown command is not an error.
package command

import (
	"fmt"
	"strings"

	"github.com/hexlay/cyberchat/internal/cue"
	"github.com/hexlay/cyberchat/internal/model/persona"
	"github.com/hexlay/cyberchat/internal/service/session"
	"github.com/hexlay/cyberchat/internal/service/turn"
)

// Name is the closed set of command literals. Matching is exact and
// case-sensitive; commands take no arguments.
type Name string

const (
	NameClear     Name = "/clear"
	NameHelp      Name = "/help"
	NamePersona   Name = "/persona"
	NameNetrunner Name = "/netrunner"
	NameCorporate Name = "/corporate"
	NameStreet    Name = "/street"
)

// All enumerates the command table in help order.
func All() []Name {
	return []Name{NameClear, NameHelp, NamePersona, NameNetrunner, NameCorporate, NameStreet}
}

// Description is the help line for the command.
func (n Name) Description() string {
	switch n {
	case NameClear:
		return "Clear chat history"
	case NameHelp:
		return "Show available commands"
	case NamePersona:
		return "Change AI personality (netrunner/corporate/street)"
	case NameNetrunner:
		return "Switch to netrunner personality"
	case NameCorporate:
		return "Switch to corporate personality"
	case NameStreet:
		return "Switch to street personality"
	default:
		return ""
	}
}

// Interpreter executes commands against the session store and engine.
type Interpreter struct {
	sessions *session.Service
	engine   *turn.Engine
	cues     cue.Player
}

// New wires the interpreter.
func New(sessions *session.Service, engine *turn.Engine, cues cue.Player) *Interpreter {
	if cues == nil {
		cues = cue.Nop{}
	}
	return &Interpreter{sessions: sessions, engine: engine, cues: cues}
}

// Run matches the trimmed input against the command table and executes the
// action. It reports whether the input was consumed; unmatched input must be
// handed to the submission engine unchanged.
func (i *Interpreter) Run(raw string) bool {
	name := Name(strings.TrimSpace(raw))

	switch name {
	case NameClear:
		i.engine.SetInput("")
		i.sessions.Clear()
	case NameHelp:
		// Help populates the draft input instead of submitting anything.
		i.engine.SetInput(helpText())
	case NamePersona:
		i.engine.SetInput(personaText())
	case NameNetrunner, NameCorporate, NameStreet:
		i.engine.SetInput("")
		i.sessions.SetPersona(persona.Parse(strings.TrimPrefix(string(name), "/")))
		i.cues.Play(cue.Command)
	default:
		return false
	}

	return true
}

func helpText() string {
	var b strings.Builder
	for idx, name := range All() {
		if idx > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s - %s", name, name.Description())
	}
	return b.String()
}

func personaText() string {
	return `Available personas:
/netrunner - Hacker with deep technical knowledge
/corporate - Professional corporate AI
/street - Street-smart AI with attitude
Choose one to continue...`
}
