package memory

import (
	"context"
	"sync"

	"quiz-guard-service/internal/app"
	"quiz-guard-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
	live     map[string]string // user|quiz -> session id
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
		live:     make(map[string]string),
	}
}

func (s *SessionStore) Claim(_ context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := liveKey(session)
	if _, ok := s.live[key]; ok {
		return domain.ErrSessionActive
	}
	s.live[key] = session.ID()
	s.sessions[session.ID()] = session
	return nil
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Release(_ context.Context, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID()]; !ok {
		return
	}
	delete(s.sessions, session.ID())
	key := liveKey(session)
	if s.live[key] == session.ID() {
		delete(s.live, key)
	}
}

func liveKey(session *app.Session) string {
	return session.UserID() + "|" + session.QuizID()
}
