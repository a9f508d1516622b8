// Package session owns the chat session collection, the active-session
// pointer, and persona selection, and keeps them synchronized with the
// durable store. Storage failures degrade to in-memory operation; they are
// logged and never surfaced to callers.
package session

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hexlay/cyberchat/internal/model/chat"
	"github.com/hexlay/cyberchat/internal/model/persona"
	"github.com/hexlay/cyberchat/internal/storage"
)

// Durable store keys. keyHistory is the legacy single-session transcript,
// read once at load and migrated into the session collection.
const (
	keySessions = "cyberchat-sessions"
	keyActive   = "cyberchat-active"
	keyHistory  = "cyberchat-history"
	keyPersona  = "cyberchat-persona"
)

const titleLimit = 48

// Service encapsulates session-collection state management.
type Service struct {
	mu       sync.RWMutex
	store    storage.Store
	sessions []*chat.Session
	activeID string
	persona  persona.Key

	// loaded gates persistence so an early mutation can never clobber
	// not-yet-read durable state with empty defaults.
	loaded       bool
	lastSessions string
	lastActive   string
}

// NewService wraps the given durable store. Call Load before first use.
func NewService(store storage.Store) *Service {
	return &Service{store: store, persona: persona.KeyDefault}
}

// Load reads prior state from the durable store. It never fails: unreadable
// or unparsable state is treated as no prior state.
func (s *Service) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return
	}

	if raw, ok := s.get(keyPersona); ok {
		s.persona = persona.Parse(raw)
	}

	if raw, ok := s.get(keySessions); ok {
		var sessions []*chat.Session
		if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
			log.Printf("[session] discarding unreadable session collection: %v", err)
		} else {
			// null array elements and id-less entries are valid JSON but not
			// valid sessions; keep only what the rest of the service can hold.
			for _, sess := range sessions {
				if sess == nil || sess.ID == "" {
					log.Printf("[session] discarding malformed stored session entry")
					continue
				}
				s.sessions = append(s.sessions, sess)
			}
		}
	}

	if raw, ok := s.get(keyActive); ok {
		s.activeID = raw
	}
	if s.findLocked(s.activeID) == nil {
		// Stored active id is stale; fall back deterministically.
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		} else {
			s.activeID = ""
		}
	}

	s.loaded = true
	s.migrateLegacyLocked()
}

// migrateLegacyLocked folds a pre-multi-session flat history into the
// collection and consumes the legacy key.
func (s *Service) migrateLegacyLocked() {
	raw, ok := s.get(keyHistory)
	if !ok {
		return
	}

	if len(s.sessions) == 0 {
		var messages []chat.Message
		if err := json.Unmarshal([]byte(raw), &messages); err != nil {
			log.Printf("[session] discarding unreadable legacy history: %v", err)
		} else if len(messages) > 0 {
			migrated := &chat.Session{
				ID:        uuid.NewString(),
				Messages:  messages,
				CreatedAt: time.Now().UTC(),
				Persona:   s.persona,
			}
			for _, msg := range messages {
				if msg.Role == chat.RoleUser {
					migrated.Title = truncateTitle(msg.Content)
					break
				}
			}
			s.sessions = []*chat.Session{migrated}
			s.activeID = migrated.ID
			s.persistLocked()
		}
	}

	if err := s.store.Remove(keyHistory); err != nil {
		log.Printf("[session] failed to remove legacy history: %v", err)
	}
}

// Append adds a message to the active session's transcript. If both the
// trailing message and the new one are assistant turns, the trailing content
// is overwritten instead, so an in-flight streamed response stays a single
// message. Without an active session this is a no-op.
func (s *Service) Append(role chat.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.findLocked(s.activeID)
	if active == nil {
		return
	}

	if n := len(active.Messages); n > 0 && role == chat.RoleAssistant && active.Messages[n-1].Role == chat.RoleAssistant {
		active.Messages[n-1].Content = content
	} else {
		active.Messages = append(active.Messages, chat.Message{Role: role, Content: content})
	}

	if role == chat.RoleUser && active.Title == "" {
		active.Title = truncateTitle(content)
	}

	s.persistLocked()
}

// Create allocates a fresh session bound to the current persona selection,
// inserts it at the front of the collection, and makes it active.
func (s *Service) Create() chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := &chat.Session{
		ID:        uuid.NewString(),
		Messages:  []chat.Message{},
		CreatedAt: time.Now().UTC(),
		Persona:   s.persona,
	}

	s.sessions = append([]*chat.Session{created}, s.sessions...)
	s.activeID = created.ID
	s.persistLocked()

	return cloneSession(created)
}

// Switch activates the session with the given id. An absent id is a silent
// no-op and triggers no persistence write.
func (s *Service) Switch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return false
	}

	s.activeID = id
	s.persistLocked()
	return true
}

// Delete removes the session with the given id. Deleting the active session
// activates the first remaining session, or none.
func (s *Service) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, sess := range s.sessions {
		if sess.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	if s.activeID == id {
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		} else {
			s.activeID = ""
		}
	}

	s.persistLocked()
	return true
}

// Clear empties the active session's transcript and drops any legacy
// single-session history that may still be stored.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if active := s.findLocked(s.activeID); active != nil {
		active.Messages = []chat.Message{}
		active.Title = ""
		s.persistLocked()
	}

	if err := s.store.Remove(keyHistory); err != nil {
		log.Printf("[session] failed to remove legacy history: %v", err)
	}
}

// Persona returns the current persona selection.
func (s *Service) Persona() persona.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persona
}

// SetPersona changes the persona selection and persists it. The change only
// affects the system prompt of subsequent submissions.
func (s *Service) SetPersona(key persona.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.persona = persona.Parse(string(key))
	if !s.loaded {
		return
	}
	if err := s.store.Set(keyPersona, string(s.persona)); err != nil {
		log.Printf("[session] failed to persist persona: %v", err)
	}
}

// ActiveID returns the active session id, or "" when none is active.
func (s *Service) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Messages returns a copy of the active session's transcript.
func (s *Service) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.findLocked(s.activeID)
	if active == nil {
		return nil
	}

	copied := make([]chat.Message, len(active.Messages))
	copy(copied, active.Messages)
	return copied
}

// LastUserMessage scans the active transcript backward for the most recent
// user turn, for retry.
func (s *Service) LastUserMessage() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.findLocked(s.activeID)
	if active == nil {
		return "", false
	}

	for i := len(active.Messages) - 1; i >= 0; i-- {
		if active.Messages[i].Role == chat.RoleUser {
			return active.Messages[i].Content, true
		}
	}
	return "", false
}

// Sessions lists the collection as summaries, newest first.
func (s *Service) Sessions() []chat.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]chat.Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		summaries = append(summaries, sess.Summarize())
	}
	return summaries
}

// persistLocked writes the collection and active pointer through to the
// durable store, skipping writes whose payload has not changed. Callers hold
// the write lock.
func (s *Service) persistLocked() {
	if !s.loaded {
		return
	}

	encoded, err := json.Marshal(s.sessions)
	if err != nil {
		log.Printf("[session] failed to encode session collection: %v", err)
		return
	}

	if snapshot := string(encoded); snapshot != s.lastSessions {
		if err := s.store.Set(keySessions, snapshot); err != nil {
			log.Printf("[session] failed to persist session collection: %v", err)
		} else {
			s.lastSessions = snapshot
		}
	}

	if s.activeID != s.lastActive {
		if err := s.store.Set(keyActive, s.activeID); err != nil {
			log.Printf("[session] failed to persist active session: %v", err)
		} else {
			s.lastActive = s.activeID
		}
	}
}

func (s *Service) get(key string) (string, bool) {
	value, ok, err := s.store.Get(key)
	if err != nil {
		log.Printf("[session] failed to read %q: %v", key, err)
		return "", false
	}
	return value, ok
}

func (s *Service) findLocked(id string) *chat.Session {
	if id == "" {
		return nil
	}
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func cloneSession(sess *chat.Session) chat.Session {
	copied := *sess
	copied.Messages = make([]chat.Message, len(sess.Messages))
	copy(copied.Messages, sess.Messages)
	return copied
}

func truncateTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit])
}
