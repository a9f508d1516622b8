// Package cue defines the audio-cue capability as an injected collaborator.
// The backend never plays audio itself; the cue points exist so the delivery
// layer can forward them and tests can observe them.
package cue

// Event names a UI cue emitted by the core.
type Event string

const (
	Send    Event = "send"    // user turn submitted
	Message Event = "message" // assistant turn completed
	Error   Event = "error"   // submission failed
	Command Event = "command" // slash command executed
)

// Player consumes cue events.
type Player interface {
	Play(Event)
}

// Nop discards all cues. It is the default when no delivery layer cares.
type Nop struct{}

// Play implements Player.
func (Nop) Play(Event) {}
