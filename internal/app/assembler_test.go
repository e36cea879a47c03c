package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-guard-service/internal/app"
	"quiz-guard-service/internal/backend"
	"quiz-guard-service/internal/domain"
	"quiz-guard-service/internal/infra/memory"
	"quiz-guard-service/internal/logging"
)

func fastPolicy() app.RetryPolicy {
	return app.RetryPolicy{ManualRetries: 1, AutoRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDeliverRetriesTransientErrors(t *testing.T) {
	sub := &fakeSubmitter{
		errs:   []error{&backend.APIError{Status: 503}, &backend.APIError{Status: 429}},
		result: domain.SubmitResult{TotalScore: 5, Rank: 2},
	}
	a := app.NewAssembler(sub, memory.NewOutbox(), fastPolicy(), logging.Discard())

	res, queued, err := a.Deliver(context.Background(), app.Delivery{SessionID: "s1", QuizID: "quiz-1", AutoSubmit: true})
	if err != nil || queued {
		t.Fatalf("expected delivery, got queued=%v err=%v", queued, err)
	}
	if res.TotalScore != 5 || len(sub.Calls()) != 3 {
		t.Fatalf("unexpected result %+v after %d calls", res, len(sub.Calls()))
	}
}

func TestDeliverManualGivesUpAfterOneRetry(t *testing.T) {
	sub := &fakeSubmitter{errs: []error{&backend.APIError{Status: 503}, &backend.APIError{Status: 503}, nil}}
	box := memory.NewOutbox()
	a := app.NewAssembler(sub, box, fastPolicy(), logging.Discard())

	_, queued, err := a.Deliver(context.Background(), app.Delivery{SessionID: "s1", QuizID: "quiz-1"})
	if !errors.Is(err, domain.ErrSubmissionFailed) || queued {
		t.Fatalf("expected failure without queueing, got queued=%v err=%v", queued, err)
	}
	if len(sub.Calls()) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(sub.Calls()))
	}
	if pending, _ := box.Pending(context.Background()); len(pending) != 0 {
		t.Fatalf("manual submission parked")
	}
}

func TestDeliverDoesNotRetryRejections(t *testing.T) {
	sub := &fakeSubmitter{errs: []error{&backend.APIError{Status: 400, Message: "bad answers"}}}
	a := app.NewAssembler(sub, memory.NewOutbox(), fastPolicy(), logging.Discard())

	_, queued, err := a.Deliver(context.Background(), app.Delivery{SessionID: "s1", QuizID: "quiz-1", AutoSubmit: true})
	if err == nil || queued || !backend.IsPermanent(err) {
		t.Fatalf("expected permanent failure, got queued=%v err=%v", queued, err)
	}
	if len(sub.Calls()) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(sub.Calls()))
	}
}

func TestDeliverParksExhaustedAutoSubmission(t *testing.T) {
	down := errors.New("connection refused")
	sub := &fakeSubmitter{errs: []error{down, down, down, down}}
	box := memory.NewOutbox()
	a := app.NewAssembler(sub, box, fastPolicy(), logging.Discard())

	req := domain.SubmitRequest{Answers: []domain.AnswerRecord{{QuestionID: "q1", SelectedOptionID: "q1-b"}}, TabSwitchCount: 1}
	_, queued, err := a.Deliver(context.Background(), app.Delivery{SessionID: "s1", QuizID: "quiz-1", UserID: "u1", Request: req, AutoSubmit: true})
	if !queued || !errors.Is(err, domain.ErrSubmissionFailed) {
		t.Fatalf("expected queued failure, got queued=%v err=%v", queued, err)
	}
	pending, _ := box.Pending(context.Background())
	if len(pending) != 1 {
		t.Fatalf("expected one parked submission, got %d", len(pending))
	}
	p := pending[0]
	if p.ID != "s1" || p.UserID != "u1" || !p.AutoSubmit || p.Attempts != 4 || p.Request.TabSwitchCount != 1 || p.LastError == "" {
		t.Fatalf("unexpected parked submission %+v", p)
	}
}
