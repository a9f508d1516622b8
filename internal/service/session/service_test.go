package session_test

import (
	"encoding/json"
	"testing"

	"github.com/hexlay/cyberchat/internal/model/chat"
	"github.com/hexlay/cyberchat/internal/model/persona"
	"github.com/hexlay/cyberchat/internal/service/session"
	"github.com/hexlay/cyberchat/internal/storage"
)

func newLoaded(t *testing.T) (*session.Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := session.NewService(store)
	svc.Load()
	return svc, store
}

func TestLoadEmptyState(t *testing.T) {
	svc, _ := newLoaded(t)

	if got := svc.ActiveID(); got != "" {
		t.Fatalf("expected no active session, got %q", got)
	}
	if got := svc.Messages(); got != nil {
		t.Fatalf("expected nil messages, got %v", got)
	}
	if got := svc.Persona(); got != persona.KeyDefault {
		t.Fatalf("expected default persona, got %q", got)
	}
}

func TestAppendOverwritesTrailingAssistant(t *testing.T) {
	svc, _ := newLoaded(t)
	svc.Create()

	svc.Append(chat.RoleUser, "hi")
	svc.Append(chat.RoleAssistant, "hello")
	svc.Append(chat.RoleAssistant, "hello there")

	messages := svc.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[1].Role != chat.RoleAssistant || messages[1].Content != "hello there" {
		t.Fatalf("unexpected trailing message: %+v", messages[1])
	}
}

func TestAppendWithoutActiveSession(t *testing.T) {
	svc, store := newLoaded(t)

	svc.Append(chat.RoleUser, "hi")

	if got := svc.Messages(); got != nil {
		t.Fatalf("expected no messages, got %v", got)
	}
	if _, ok, _ := store.Get("cyberchat-sessions"); ok {
		t.Fatal("append without a session must not persist anything")
	}
}

func TestCreateLoadRoundTrip(t *testing.T) {
	svc, store := newLoaded(t)
	created := svc.Create()
	svc.Append(chat.RoleUser, "hi")
	svc.Append(chat.RoleAssistant, "hello there")

	reloaded := session.NewService(store)
	reloaded.Load()

	if got := reloaded.ActiveID(); got != created.ID {
		t.Fatalf("active id not restored: got %q want %q", got, created.ID)
	}
	messages := reloaded.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after reload, got %d", len(messages))
	}
	if messages[0].Content != "hi" || messages[1].Content != "hello there" {
		t.Fatalf("transcript not restored: %+v", messages)
	}
}

func TestSwitchMissingSessionIsNoOp(t *testing.T) {
	svc, _ := newLoaded(t)
	created := svc.Create()
	svc.Append(chat.RoleUser, "hi")

	if svc.Switch("missing") {
		t.Fatal("switch to a missing id must report false")
	}
	if got := svc.ActiveID(); got != created.ID {
		t.Fatalf("active id changed: got %q want %q", got, created.ID)
	}
	if got := len(svc.Messages()); got != 1 {
		t.Fatalf("messages changed: got %d", got)
	}
}

func TestSwitchUpdatesVisibleStateAndPersists(t *testing.T) {
	svc, store := newLoaded(t)
	sessionA := svc.Create()
	svc.Append(chat.RoleUser, "one")
	svc.Append(chat.RoleAssistant, "two")
	svc.Append(chat.RoleUser, "three")
	sessionB := svc.Create()

	if !svc.Switch(sessionA.ID) {
		t.Fatal("switch to session A failed")
	}
	if got := len(svc.Messages()); got != 3 {
		t.Fatalf("expected 3 messages in session A, got %d", got)
	}

	if !svc.Switch(sessionB.ID) {
		t.Fatal("switch to session B failed")
	}
	if got := len(svc.Messages()); got != 0 {
		t.Fatalf("expected empty transcript in session B, got %d", got)
	}

	active, ok, _ := store.Get("cyberchat-active")
	if !ok || active != sessionB.ID {
		t.Fatalf("active id not persisted: got %q want %q", active, sessionB.ID)
	}
}

func TestDanglingActiveFallsBackToFirst(t *testing.T) {
	store := storage.NewMemoryStore()
	sessions := []*chat.Session{{ID: "s1", Messages: []chat.Message{}}}
	encoded, err := json.Marshal(sessions)
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	store.Set("cyberchat-sessions", string(encoded))
	store.Set("cyberchat-active", "missing")

	svc := session.NewService(store)
	svc.Load()

	if got := svc.ActiveID(); got != "s1" {
		t.Fatalf("expected fallback to first session, got %q", got)
	}
}

func TestCorruptStoredStateTreatedAsEmpty(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set("cyberchat-sessions", "{not json")

	svc := session.NewService(store)
	svc.Load()

	if got := len(svc.Sessions()); got != 0 {
		t.Fatalf("expected empty collection, got %d sessions", got)
	}
}

func TestMalformedSessionEntriesDiscardedOnLoad(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set("cyberchat-sessions", `[null,{"id":"s1","messages":[{"role":"user","content":"hi"}]},{"messages":[]}]`)
	store.Set("cyberchat-active", "s1")

	svc := session.NewService(store)
	svc.Load()

	summaries := svc.Sessions()
	if len(summaries) != 1 || summaries[0].ID != "s1" {
		t.Fatalf("expected only the well-formed session, got %+v", summaries)
	}
	if got := svc.ActiveID(); got != "s1" {
		t.Fatalf("active id lost: %q", got)
	}
	if got := len(svc.Messages()); got != 1 {
		t.Fatalf("transcript lost: %d messages", got)
	}
}

func TestAllNullSessionEntriesTreatedAsEmpty(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set("cyberchat-sessions", "[null]")

	svc := session.NewService(store)
	svc.Load()

	if got := len(svc.Sessions()); got != 0 {
		t.Fatalf("expected empty collection, got %d sessions", got)
	}
	if got := svc.ActiveID(); got != "" {
		t.Fatalf("expected no active session, got %q", got)
	}
}

func TestLegacyHistoryMigration(t *testing.T) {
	store := storage.NewMemoryStore()
	history := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello there"},
	}
	encoded, err := json.Marshal(history)
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	store.Set("cyberchat-history", string(encoded))

	svc := session.NewService(store)
	svc.Load()

	summaries := svc.Sessions()
	if len(summaries) != 1 {
		t.Fatalf("expected 1 migrated session, got %d", len(summaries))
	}
	if summaries[0].Title != "hi" {
		t.Fatalf("unexpected migrated title: %q", summaries[0].Title)
	}
	if got := len(svc.Messages()); got != 2 {
		t.Fatalf("expected 2 migrated messages, got %d", got)
	}
	if _, ok, _ := store.Get("cyberchat-history"); ok {
		t.Fatal("legacy history key must be consumed by migration")
	}
}

func TestLegacyHistoryIgnoredWhenCollectionExists(t *testing.T) {
	store := storage.NewMemoryStore()
	sessions := []*chat.Session{{ID: "s1", Messages: []chat.Message{{Role: chat.RoleUser, Content: "kept"}}}}
	encodedSessions, _ := json.Marshal(sessions)
	store.Set("cyberchat-sessions", string(encodedSessions))
	encodedHistory, _ := json.Marshal([]chat.Message{{Role: chat.RoleUser, Content: "old"}})
	store.Set("cyberchat-history", string(encodedHistory))

	svc := session.NewService(store)
	svc.Load()

	if got := len(svc.Sessions()); got != 1 {
		t.Fatalf("expected collection untouched, got %d sessions", got)
	}
	if got := svc.Messages()[0].Content; got != "kept" {
		t.Fatalf("collection overwritten by legacy history: %q", got)
	}
	if _, ok, _ := store.Get("cyberchat-history"); ok {
		t.Fatal("legacy history key must be removed")
	}
}

func TestClearEmptiesActiveTranscript(t *testing.T) {
	svc, store := newLoaded(t)
	store.Set("cyberchat-history", "[]")
	svc.Create()
	svc.Append(chat.RoleUser, "hi")

	svc.Clear()

	if got := len(svc.Messages()); got != 0 {
		t.Fatalf("expected empty transcript, got %d messages", got)
	}
	if _, ok, _ := store.Get("cyberchat-history"); ok {
		t.Fatal("legacy history key must be removed by clear")
	}
}

func TestDeleteActiveSessionActivatesNext(t *testing.T) {
	svc, _ := newLoaded(t)
	first := svc.Create()
	second := svc.Create()

	if !svc.Delete(second.ID) {
		t.Fatal("delete of active session failed")
	}
	if got := svc.ActiveID(); got != first.ID {
		t.Fatalf("expected first session active, got %q", got)
	}

	if !svc.Delete(first.ID) {
		t.Fatal("delete of last session failed")
	}
	if got := svc.ActiveID(); got != "" {
		t.Fatalf("expected no active session, got %q", got)
	}
	if svc.Delete("missing") {
		t.Fatal("delete of missing session must report false")
	}
}

func TestPersonaPersistsAcrossLoad(t *testing.T) {
	svc, store := newLoaded(t)
	svc.SetPersona(persona.KeyNetrunner)

	value, ok, _ := store.Get("cyberchat-persona")
	if !ok || value != "netrunner" {
		t.Fatalf("persona not persisted: %q", value)
	}

	reloaded := session.NewService(store)
	reloaded.Load()
	if got := reloaded.Persona(); got != persona.KeyNetrunner {
		t.Fatalf("persona not restored: got %q", got)
	}
}

func TestStoredPersonaFallsBackToDefault(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set("cyberchat-persona", "glitch")

	svc := session.NewService(store)
	svc.Load()

	if got := svc.Persona(); got != persona.KeyDefault {
		t.Fatalf("expected default persona fallback, got %q", got)
	}
}

func TestNoPersistenceBeforeLoad(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := session.NewService(store)

	svc.SetPersona(persona.KeyStreet)

	if _, ok, _ := store.Get("cyberchat-persona"); ok {
		t.Fatal("writes must not fire before Load")
	}
}

// countingStore wraps MemoryStore to observe write-through traffic.
type countingStore struct {
	*storage.MemoryStore
	sets int
}

func (s *countingStore) Set(key, value string) error {
	s.sets++
	return s.MemoryStore.Set(key, value)
}

func TestRedundantWritesSuppressed(t *testing.T) {
	store := &countingStore{MemoryStore: storage.NewMemoryStore()}
	svc := session.NewService(store)
	svc.Load()
	created := svc.Create()

	before := store.sets
	svc.Switch(created.ID)
	svc.Switch(created.ID)

	if store.sets != before {
		t.Fatalf("expected no writes for unchanged state, got %d", store.sets-before)
	}
}

func TestFirstUserTurnTitlesSession(t *testing.T) {
	svc, _ := newLoaded(t)
	svc.Create()

	long := "this prompt is much longer than the forty-eight rune title limit allows"
	svc.Append(chat.RoleUser, long)

	title := svc.Sessions()[0].Title
	if len([]rune(title)) != 48 {
		t.Fatalf("expected 48-rune title, got %d runes", len([]rune(title)))
	}
	if title != string([]rune(long)[:48]) {
		t.Fatalf("unexpected title: %q", title)
	}
}
