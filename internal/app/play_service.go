package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quiz-guard-service/internal/clock"
	"quiz-guard-service/internal/domain"
	"quiz-guard-service/internal/integrity"
	"quiz-guard-service/internal/logging"
)

// Options configures a PlayService.
type Options struct {
	Clock     clock.Clock
	Rand      *rand.Rand
	Session   SessionOptions
	Integrity integrity.Config
	// Detectors overrides the default detector set; used by tests.
	Detectors func() []integrity.Detector
	Logger    logrus.FieldLogger
}

// PlayService contains the quiz-play use cases: starting a session after the
// precondition checks and tearing it down.
type PlayService struct {
	sessions  SessionRepository
	quizzes   QuizRepository
	attempts  AttemptChecker
	assembler *Assembler
	opts      Options

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewPlayService(sessions SessionRepository, quizzes QuizRepository, attempts AttemptChecker, assembler *Assembler, opts Options) *PlayService {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Session == (SessionOptions{}) {
		opts.Session = DefaultSessionOptions()
	}
	if opts.Integrity == (integrity.Config{}) {
		opts.Integrity = integrity.DefaultConfig()
	}
	if opts.Detectors == nil {
		cfg := opts.Integrity
		opts.Detectors = func() []integrity.Detector { return integrity.DefaultDetectors(cfg) }
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &PlayService{
		sessions:  sessions,
		quizzes:   quizzes,
		attempts:  attempts,
		assembler: assembler,
		opts:      opts,
		rnd:       opts.Rand,
	}
}

// Begin loads and validates the quiz, checks for a prior attempt and returns a
// Ready session with its question and option order shuffled once.
func (s *PlayService) Begin(ctx context.Context, quizID, userID string) (*Session, error) {
	log := logging.FromContext(ctx, s.opts.Logger).WithFields(logrus.Fields{"quiz_id": quizID, "user_id": userID})

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		log.WithError(err).Warn("could not load quiz")
		return nil, err
	}
	if quiz.Status != domain.QuizActive {
		log.WithField("status", quiz.Status).Info("quiz not active")
		return nil, fmt.Errorf("%w: status %s", domain.ErrQuizNotActive, quiz.Status)
	}
	if err := validateQuiz(quiz); err != nil {
		log.WithError(err).Warn("quiz not playable")
		return nil, err
	}

	status, err := s.attempts.GetAttempt(ctx, quizID)
	if err != nil {
		log.WithError(err).Warn("could not check prior attempt")
		return nil, err
	}
	if status.HasAttempted {
		log.Info("quiz already attempted")
		return nil, domain.ErrAlreadyAttempted
	}
	parked, err := s.assembler.Parked(ctx, quizID, userID)
	if err != nil {
		log.WithError(err).Warn("could not check parked submissions")
		return nil, err
	}
	if parked {
		log.Info("quiz attempt parked in outbox")
		return nil, domain.ErrAlreadyAttempted
	}

	session := newSession(uuid.NewString(), userID, s.shuffle(quiz), s.opts.Clock, s.opts.Session, s.opts.Detectors(), s.assembler, log)
	if err := s.sessions.Claim(ctx, session); err != nil {
		log.WithError(err).Info("could not claim live session")
		return nil, err
	}
	return session, nil
}

// End closes the session and releases its live-session claim.
func (s *PlayService) End(ctx context.Context, session *Session) {
	session.Close()
	s.sessions.Release(ctx, session)
}

// shuffle returns a deep copy with the question order and each question's
// option order permuted independently.
func (s *PlayService) shuffle(quiz domain.Quiz) domain.Quiz {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()

	out := quiz
	out.Questions = make([]domain.Question, len(quiz.Questions))
	for i, j := range s.rnd.Perm(len(quiz.Questions)) {
		q := quiz.Questions[j]
		opts := make([]domain.Option, len(q.Options))
		for k, m := range s.rnd.Perm(len(q.Options)) {
			opts[k] = q.Options[m]
		}
		q.Options = opts
		out.Questions[i] = q
	}
	return out
}

func validateQuiz(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: no questions", domain.ErrInvalidQuiz)
	}
	for _, q := range quiz.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %s has %d options", domain.ErrInvalidQuiz, q.ID, len(q.Options))
		}
	}
	return nil
}

// NewSession is exported for infrastructure layers and tests that need a bare
// session. It has no detectors and no submitter.
func NewSession(id, userID string, quiz domain.Quiz) *Session {
	return newSession(id, userID, quiz, clock.Real(), DefaultSessionOptions(), nil, NewAssembler(nil, nil, DefaultRetryPolicy(), nil), logrus.StandardLogger())
}
