package app

import (
	"context"

	"quiz-guard-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptChecker reports whether the caller already attempted a quiz.
type AttemptChecker interface {
	GetAttempt(ctx context.Context, quizID string) (domain.AttemptStatus, error)
}

// Submitter delivers a finished attempt to the backend.
type Submitter interface {
	SubmitQuiz(ctx context.Context, quizID, idempotencyKey string, req domain.SubmitRequest) (domain.SubmitResult, error)
}

// Outbox durably parks submissions that could not be delivered.
type Outbox interface {
	Enqueue(ctx context.Context, p domain.PendingSubmission) error
	Pending(ctx context.Context) ([]domain.PendingSubmission, error)
	Remove(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, lastErr string) error
	// PendingFor reports whether a submission for this user and quiz is still parked.
	PendingFor(ctx context.Context, quizID, userID string) (bool, error)
}

// SessionRepository tracks live play sessions, one per user and quiz.
type SessionRepository interface {
	// Claim registers s, failing with domain.ErrSessionActive when the user already plays this quiz.
	Claim(ctx context.Context, s *Session) error
	Get(sessionID string) (*Session, bool)
	Release(ctx context.Context, s *Session)
}
