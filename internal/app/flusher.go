package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-guard-service/internal/backend"
)

// OutboxFlusher redelivers parked submissions. Each one keeps its session id
// as idempotency key, so a submission the backend already accepted is not scored twice.
type OutboxFlusher struct {
	outbox    Outbox
	submitter Submitter
	log       logrus.FieldLogger
	// prepare decorates the request context, e.g. with the service token.
	prepare func(ctx context.Context, userID string) context.Context
}

func NewOutboxFlusher(outbox Outbox, submitter Submitter, prepare func(ctx context.Context, userID string) context.Context, log logrus.FieldLogger) *OutboxFlusher {
	if prepare == nil {
		prepare = func(ctx context.Context, _ string) context.Context { return ctx }
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OutboxFlusher{outbox: outbox, submitter: submitter, prepare: prepare, log: log}
}

// Flush tries every pending submission once. It returns how many were delivered.
func (f *OutboxFlusher) Flush(ctx context.Context) (int, error) {
	pending, err := f.outbox.Pending(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, p := range pending {
		log := f.log.WithFields(logrus.Fields{"session_id": p.ID, "quiz_id": p.QuizID, "user_id": p.UserID})

		res, err := f.submitter.SubmitQuiz(f.prepare(ctx, p.UserID), p.QuizID, p.ID, p.Request)
		switch {
		case err == nil:
			if rerr := f.outbox.Remove(ctx, p.ID); rerr != nil {
				return delivered, rerr
			}
			delivered++
			log.WithFields(logrus.Fields{"total_score": res.TotalScore, "rank": res.Rank}).Info("parked submission delivered")
		case backend.IsPermanent(err):
			if rerr := f.outbox.Remove(ctx, p.ID); rerr != nil {
				return delivered, rerr
			}
			log.WithError(err).Error("parked submission rejected by backend, dropping")
		default:
			if merr := f.outbox.MarkFailed(ctx, p.ID, err.Error()); merr != nil {
				return delivered, merr
			}
			log.WithError(err).Warn("parked submission still failing")
		}
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
	}
	return delivered, nil
}

// Run flushes on every interval until ctx is done.
func (f *OutboxFlusher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := f.Flush(ctx); err != nil && ctx.Err() == nil {
				f.log.WithError(err).Error("outbox flush failed")
			}
		}
	}
}
