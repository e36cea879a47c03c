package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"quiz-guard-service/internal/backend"
	"quiz-guard-service/internal/domain"
)

// RetryPolicy bounds how hard a submission is retried before giving up.
type RetryPolicy struct {
	ManualRetries   uint64
	AutoRetries     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ManualRetries:   1,
		AutoRetries:     4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Delivery is one assembled submission.
type Delivery struct {
	SessionID  string
	QuizID     string
	UserID     string
	Request    domain.SubmitRequest
	AutoSubmit bool
}

// Assembler delivers finished attempts. Auto-submissions that exhaust their
// retries are parked in the outbox instead of being lost.
type Assembler struct {
	submitter Submitter
	outbox    Outbox
	policy    RetryPolicy
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewAssembler(submitter Submitter, outbox Outbox, policy RetryPolicy, log logrus.FieldLogger) *Assembler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Assembler{submitter: submitter, outbox: outbox, policy: policy, log: log, now: time.Now}
}

// Deliver sends d to the backend. queued reports whether a failed auto-submission was written to the outbox.
func (a *Assembler) Deliver(ctx context.Context, d Delivery) (res domain.SubmitResult, queued bool, err error) {
	log := a.log.WithFields(logrus.Fields{
		"session_id":  d.SessionID,
		"quiz_id":     d.QuizID,
		"user_id":     d.UserID,
		"auto_submit": d.AutoSubmit,
		"answers":     len(d.Request.Answers),
	})

	retries := a.policy.ManualRetries
	if d.AutoSubmit {
		retries = a.policy.AutoRetries
	}

	attempts := 0
	op := func() error {
		attempts++
		r, err := a.submitter.SubmitQuiz(ctx, d.QuizID, d.SessionID, d.Request)
		if err != nil {
			if backend.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		res = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait).Warn("submission failed, retrying")
	}

	err = backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(a.newBackOff(), retries), ctx), notify)
	if err == nil {
		log.WithFields(logrus.Fields{"total_score": res.TotalScore, "rank": res.Rank}).Info("quiz submitted")
		return res, false, nil
	}

	log.WithError(err).WithField("attempts", attempts).Error("submission failed")
	if !d.AutoSubmit || backend.IsPermanent(err) || a.outbox == nil {
		return domain.SubmitResult{}, false, fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
	}

	pending := domain.PendingSubmission{
		ID:         d.SessionID,
		QuizID:     d.QuizID,
		UserID:     d.UserID,
		Request:    d.Request,
		AutoSubmit: true,
		Attempts:   attempts,
		LastError:  err.Error(),
		CreatedAt:  a.now(),
	}
	if qerr := a.outbox.Enqueue(context.WithoutCancel(ctx), pending); qerr != nil {
		log.WithError(qerr).Error("could not park submission in outbox")
		return domain.SubmitResult{}, false, fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, errors.Join(err, qerr))
	}
	log.Warn("submission parked in outbox")
	return domain.SubmitResult{}, true, fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
}

// Parked reports whether an earlier attempt by userID on quizID is waiting in
// the outbox. The backend does not know about such an attempt yet.
func (a *Assembler) Parked(ctx context.Context, quizID, userID string) (bool, error) {
	if a.outbox == nil {
		return false, nil
	}
	return a.outbox.PendingFor(ctx, quizID, userID)
}

func (a *Assembler) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if a.policy.InitialInterval > 0 {
		b.InitialInterval = a.policy.InitialInterval
	}
	if a.policy.MaxInterval > 0 {
		b.MaxInterval = a.policy.MaxInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
