package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quiz-guard-service/internal/app"
	"quiz-guard-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions live in a local map because their timers and subscribers are
// process-bound; Redis holds the live-play marker so that a user cannot run
// the same quiz on two instances at once:
//
//	SET quiz:play:{quizID}:{userID} {sessionID} NX EX ttl
//
// While a session is claimed the marker is refreshed every ttl/3, so it
// outlives untimed quizzes and still lapses soon after an instance dies.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger

	mu       sync.RWMutex
	sessions map[string]*app.Session
	stops    map[string]chan struct{}
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *SessionStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log,
		sessions: make(map[string]*app.Session),
		stops:    make(map[string]chan struct{}),
	}
}

func (s *SessionStore) Claim(ctx context.Context, session *app.Session) error {
	ok, err := s.client.SetNX(ctx, s.key(session), session.ID(), s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionActive
	}
	stop := make(chan struct{})
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.stops[session.ID()] = stop
	s.mu.Unlock()

	if s.ttl > 0 {
		go s.keepAlive(session, stop)
	}
	return nil
}

// refreshScript extends the marker only while it still names this session.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

func (s *SessionStore) keepAlive(session *app.Session, stop <-chan struct{}) {
	ticker := time.NewTicker(s.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-session.Done():
			return
		case <-ticker.C:
			ok, err := refreshScript.Run(context.Background(), s.client, []string{s.key(session)}, session.ID(), s.ttl.Milliseconds()).Int()
			if err != nil {
				s.log.WithError(err).WithField("session_id", session.ID()).Warn("could not refresh live-play marker")
				continue
			}
			if ok == 0 {
				return
			}
		}
	}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

// releaseScript deletes the marker only while it still names this session.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (s *SessionStore) Release(ctx context.Context, session *app.Session) {
	s.mu.Lock()
	delete(s.sessions, session.ID())
	if stop, ok := s.stops[session.ID()]; ok {
		close(stop)
		delete(s.stops, session.ID())
	}
	s.mu.Unlock()

	if err := releaseScript.Run(ctx, s.client, []string{s.key(session)}, session.ID()).Err(); err != nil && err != redis.Nil {
		s.log.WithError(err).WithField("session_id", session.ID()).Warn("could not release live-play marker")
	}
}

func (s *SessionStore) key(session *app.Session) string {
	return "quiz:play:" + session.QuizID() + ":" + session.UserID()
}
