// Package session keeps per-conversation message history in memory.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTTL is the inactivity window after which a session is pruned.
const DefaultTTL = 24 * time.Hour

// Message is one turn of a conversation. SQL is recorded only for
// privileged responses.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	SQL       string    `json:"sql,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is an ordered message list with a last-activity stamp.
type Session struct {
	ID         string
	Messages   []Message
	LastActive time.Time
}

// Manager is a concurrency-safe session map with lazy TTL pruning.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	window   int
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager builds a manager. window is the number of trailing messages
// History returns; ttl <= 0 uses DefaultTTL.
func NewManager(window int, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		window:   window,
		logger:   logger.Named("session"),
		now:      time.Now,
	}
}

// GetOrCreate returns the session for id, creating one (with a fresh uuid)
// when id is empty or unknown/expired. Expired sessions are pruned on the
// way in.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			s.LastActive = m.now()
			return s
		}
	}
	s := &Session{ID: uuid.NewString(), LastActive: m.now()}
	m.sessions[s.ID] = s
	return s
}

// Append adds a message to the session.
func (m *Manager) Append(id string, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now()
	}
	s.Messages = append(s.Messages, msg)
	s.LastActive = m.now()
}

// History returns a copy of the last window messages of the session.
func (m *Manager) History(id string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	msgs := s.Messages
	if m.window > 0 && len(msgs) > m.window {
		msgs = msgs[len(msgs)-m.window:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) pruneLocked() {
	cutoff := m.now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.LastActive.Before(cutoff) {
			delete(m.sessions, id)
			m.logger.Debug("session expired", zap.String("session_id", id))
		}
	}
}
