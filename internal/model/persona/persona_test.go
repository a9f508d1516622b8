package persona_test

import (
	"testing"

	"github.com/hexlay/cyberchat/internal/model/persona"
)

func TestParseFallsBackToDefault(t *testing.T) {
	for _, raw := range []string{"", "glitch", "NETRUNNER", "Default"} {
		if got := persona.Parse(raw); got != persona.KeyDefault {
			t.Fatalf("Parse(%q) = %q, want default", raw, got)
		}
	}
}

func TestParseKnownKeys(t *testing.T) {
	for _, key := range persona.All() {
		if got := persona.Parse(string(key)); got != key {
			t.Fatalf("Parse(%q) = %q", key, got)
		}
	}
}

func TestEveryKeyResolvesToAPrompt(t *testing.T) {
	for _, key := range persona.All() {
		if !key.Valid() {
			t.Fatalf("key %q reported invalid", key)
		}
		if key.Prompt() == "" {
			t.Fatalf("key %q has no system prompt", key)
		}
		if key.Description() == "" {
			t.Fatalf("key %q has no description", key)
		}
	}
}
