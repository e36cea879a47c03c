package app_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"quiz-guard-service/internal/app"
	"quiz-guard-service/internal/clock"
	"quiz-guard-service/internal/domain"
	"quiz-guard-service/internal/infra/memory"
	"quiz-guard-service/internal/logging"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type submitCall struct {
	quizID string
	key    string
	userID string
	req    domain.SubmitRequest
}

// fakeSubmitter fails call n with errs[n] when set and succeeds otherwise.
type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []submitCall
	errs   []error
	result domain.SubmitResult
}

type userKey struct{}

func (f *fakeSubmitter) SubmitQuiz(ctx context.Context, quizID, key string, req domain.SubmitRequest) (domain.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, _ := ctx.Value(userKey{}).(string)
	f.calls = append(f.calls, submitCall{quizID: quizID, key: key, userID: userID, req: req})
	if n := len(f.calls) - 1; n < len(f.errs) && f.errs[n] != nil {
		return domain.SubmitResult{}, f.errs[n]
	}
	return f.result, nil
}

func (f *fakeSubmitter) Calls() []submitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submitCall{}, f.calls...)
}

type fakeAttempts struct {
	attempted bool
}

func (f fakeAttempts) GetAttempt(context.Context, string) (domain.AttemptStatus, error) {
	return domain.AttemptStatus{HasAttempted: f.attempted}, nil
}

type harness struct {
	clk       *clock.Manual
	submitter *fakeSubmitter
	outbox    *memory.Outbox
	sessions  *memory.SessionStore
	quizzes   *memory.StaticQuizLoader
	service   *app.PlayService
}

func newHarness(t *testing.T, quiz domain.Quiz, mutate func(*app.Options)) *harness {
	t.Helper()
	h := &harness{
		clk:       clock.NewManual(t0),
		submitter: &fakeSubmitter{result: domain.SubmitResult{TotalScore: 3, Rank: 1}},
		outbox:    memory.NewOutbox(),
		sessions:  memory.NewSessionStore(),
		quizzes:   memory.NewStaticQuizLoader(map[string]domain.Quiz{quiz.ID: quiz}),
	}
	assembler := app.NewAssembler(h.submitter, h.outbox, app.RetryPolicy{
		ManualRetries:   1,
		AutoRetries:     2,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, logging.Discard())

	opts := app.Options{
		Clock:   h.clk,
		Rand:    rand.New(rand.NewSource(7)),
		Session: app.DefaultSessionOptions(),
		Logger:  logging.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.service = app.NewPlayService(h.sessions, h.quizzes, fakeAttempts{}, assembler, opts)
	return h
}

func (h *harness) begin(t *testing.T) *app.Session {
	t.Helper()
	s, err := h.service.Begin(context.Background(), "quiz-1", "u1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return s
}

// quizOf builds an ACTIVE quiz with n questions; option b is correct everywhere.
func quizOf(n, limitSeconds int) domain.Quiz {
	quiz := domain.Quiz{
		ID:               "quiz-1",
		Title:            "General knowledge",
		TimeLimitSeconds: limitSeconds,
		Status:           domain.QuizActive,
	}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("q%d", i)
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:     id,
			Text:   "Question " + id,
			Points: 1,
			Options: []domain.Option{
				{ID: id + "-a", Text: id + " wrong A"},
				{ID: id + "-b", Text: id + " right", IsCorrect: true},
				{ID: id + "-c", Text: id + " wrong C"},
			},
		})
	}
	return quiz
}

func selectCorrect(t *testing.T, s *app.Session) {
	t.Helper()
	q := s.Quiz().Questions[s.CurrentIndex()]
	opt, _ := q.CorrectOption()
	if !s.SelectOption(opt.ID) {
		t.Fatalf("select %s rejected", opt.ID)
	}
}

func selectWrong(t *testing.T, s *app.Session) domain.Option {
	t.Helper()
	q := s.Quiz().Questions[s.CurrentIndex()]
	for _, opt := range q.Options {
		if !opt.IsCorrect {
			if !s.SelectOption(opt.ID) {
				t.Fatalf("select %s rejected", opt.ID)
			}
			correct, _ := q.CorrectOption()
			return correct
		}
	}
	t.Fatalf("no wrong option")
	return domain.Option{}
}

// drain returns every notice currently buffered.
func drain(ch <-chan domain.Notice) []domain.Notice {
	var out []domain.Notice
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, n)
		default:
			return out
		}
	}
}

func find(notices []domain.Notice, typ domain.NoticeType) (domain.Notice, bool) {
	for _, n := range notices {
		if n.Type == typ {
			return n, true
		}
	}
	return domain.Notice{}, false
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
