// Package session provides in-memory conversation state keyed by session id.
package session

import (
	"sync"
	"time"

	. "github.com/seqchat/seqchat/internal/logging"
	"github.com/seqchat/seqchat/internal/types"
)

// Store is the session storage contract the router depends on. It is an
// injected dependency so the in-memory implementation can be swapped for a
// bounded or externally-backed one without touching the router.
type Store interface {
	// GetOrCreate returns the session for id, creating it on first contact.
	GetOrCreate(id string) *Session

	// AppendMessage appends msg to the session's history, creating the
	// session if needed. File attachments on the message accumulate into
	// the session's file set.
	AppendMessage(id string, msg types.Message)

	// RecentContext returns a copy of the last n messages, oldest first.
	RecentContext(id string, n int) []types.Message

	// Files returns the uploaded files accumulated across the session's turns.
	Files(id string) []types.FileRef
}

// Session is one conversation's server-side record. Messages are append-only
// and only ever truncated through read-only recency views.
type Session struct {
	ID             string
	CreatedAt      time.Time
	LastActivityAt time.Time

	mu       sync.Mutex
	messages []types.Message
	files    []types.FileRef
}

// MemoryStore keeps sessions in a process-lifetime map. Distinct sessions
// are fully independent; operations on one session are serialized by a
// per-session mutex so a duplicate client retry cannot interleave an append
// into another request's context snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it lazily.
func (s *MemoryStore) GetOrCreate(id string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	now := time.Now()
	sess = &Session{ID: id, CreatedAt: now, LastActivityAt: now}
	s.sessions[id] = sess
	L_debug("session: created", "id", id)
	return sess
}

// AppendMessage appends msg to the session's history.
func (s *MemoryStore) AppendMessage(id string, msg types.Message) {
	sess := s.GetOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.messages = append(sess.messages, msg)
	if len(msg.Files) > 0 {
		sess.files = append(sess.files, msg.Files...)
	}
	sess.LastActivityAt = time.Now()
}

// RecentContext returns a copy of the last n messages, oldest first.
// The returned slice is a snapshot: mutating it does not touch the session.
func (s *MemoryStore) RecentContext(id string, n int) []types.Message {
	sess := s.GetOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	start := len(sess.messages) - n
	if n <= 0 || start < 0 {
		start = 0
	}
	out := make([]types.Message, len(sess.messages)-start)
	copy(out, sess.messages[start:])
	return out
}

// Files returns a copy of the session's accumulated file references.
func (s *MemoryStore) Files(id string) []types.FileRef {
	sess := s.GetOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]types.FileRef, len(sess.files))
	copy(out, sess.files)
	return out
}

// Len returns the number of live sessions. Used for status reporting.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
