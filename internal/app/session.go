package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-guard-service/internal/clock"
	"quiz-guard-service/internal/domain"
	"quiz-guard-service/internal/integrity"
)

// FeedbackMode controls what the player sees after confirming a non-final answer.
type FeedbackMode string

const (
	// FeedbackLocal reveals correctness (and the correct option when wrong) for a fixed delay.
	FeedbackLocal FeedbackMode = "local"
	// FeedbackNone advances straight to the next question.
	FeedbackNone FeedbackMode = "none"
)

// SessionOptions are the timing knobs of a play session.
type SessionOptions struct {
	FeedbackMode     FeedbackMode
	FeedbackDelay    time.Duration
	TickInterval     time.Duration
	LowTimeThreshold time.Duration
}

func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		FeedbackMode:     FeedbackLocal,
		FeedbackDelay:    1500 * time.Millisecond,
		TickInterval:     100 * time.Millisecond,
		LowTimeThreshold: 30 * time.Second,
	}
}

// Session is one play-through of a quiz by one user. It owns the shuffled
// quiz, the answers, the countdown and the integrity monitor, and releases
// every timer and detector on each exit path.
type Session struct {
	id        string
	userID    string
	quiz      domain.Quiz
	clk       clock.Clock
	opts      SessionOptions
	monitor   *integrity.Monitor
	assembler *Assembler
	log       logrus.FieldLogger

	index atomic.Int64

	mu            sync.Mutex
	ctx           context.Context
	state         domain.SessionState
	selected      string
	questionStart time.Time
	answers       []domain.AnswerRecord
	deadline      time.Time
	remaining     time.Duration
	lastSecond    int64
	lowTime       bool
	submitting    bool
	closed        bool
	stopTimer     func()
	stopFeedback  func()
	result        *domain.SubmitResult
	done          chan struct{}

	subMu       sync.Mutex
	subscribers map[chan domain.Notice]struct{}
}

func newSession(id, userID string, quiz domain.Quiz, clk clock.Clock, opts SessionOptions, detectors []integrity.Detector, assembler *Assembler, log logrus.FieldLogger) *Session {
	s := &Session{
		id:          id,
		userID:      userID,
		quiz:        quiz,
		clk:         clk,
		opts:        opts,
		assembler:   assembler,
		log:         log.WithFields(logrus.Fields{"session_id": id, "quiz_id": quiz.ID, "user_id": userID}),
		state:       domain.StateReady,
		remaining:   time.Duration(quiz.TimeLimitSeconds) * time.Second,
		lastSecond:  -1,
		done:        make(chan struct{}),
		subscribers: make(map[chan domain.Notice]struct{}),
	}
	s.monitor = integrity.NewMonitor(integrity.NewCounters(), s.onFinding, detectors...)
	return s
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }
func (s *Session) QuizID() string { return s.quiz.ID }

// Quiz returns the session's shuffled copy of the quiz.
func (s *Session) Quiz() domain.Quiz { return s.quiz }

// CurrentIndex is the position of the current question in the shuffled order.
func (s *Session) CurrentIndex() int { return int(s.index.Load()) }

// Done is closed once the session reaches Done or Abandoned.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Answers returns a copy of the confirmed answers.
func (s *Session) Answers() []domain.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AnswerRecord{}, s.answers...)
}

// Remaining is the countdown value; zero for untimed quizzes once started.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Result is the backend's score once the session is Done.
func (s *Session) Result() (domain.SubmitResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.SubmitResult{}, false
	}
	return *s.result, true
}

// Integrity returns the current integrity counters.
func (s *Session) Integrity() domain.IntegrityReport {
	return s.monitor.Counters().Snapshot()
}

func (s *Session) timed() bool { return s.quiz.TimeLimitSeconds > 0 }

// Start moves Ready → AnsweringQuestion(0) and starts the countdown and the
// detectors. ctx supplies request-scoped values for the eventual submission;
// its cancellation does not abort a submission already in flight.
func (s *Session) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != domain.StateReady || s.closed {
		s.mu.Unlock()
		return false
	}
	now := s.clk.Now()
	s.ctx = context.WithoutCancel(ctx)
	s.state = domain.StateAnsweringQuestion
	s.questionStart = now
	if s.timed() {
		s.deadline = now.Add(s.remaining)
		s.stopTimer = s.clk.Every(s.opts.TickInterval, s.tick)
	}
	policy := s.monitor.Policy()
	s.emit(domain.Notice{Type: domain.NoticeState, State: s.state, Policy: &policy})
	s.emitQuestionLocked()
	if s.timed() {
		s.emitTimerLocked(true)
	}
	s.mu.Unlock()

	s.monitor.Start(s.clk, s.CurrentIndex)
	s.log.WithField("questions", len(s.quiz.Questions)).Info("quiz session started")
	return true
}

// SelectOption stores a tentative selection for the current question.
func (s *Session) SelectOption(optionID string) bool {
	s.mu.Lock()
	if s.state != domain.StateAnsweringQuestion || !s.hasOptionLocked(optionID) {
		s.mu.Unlock()
		return false
	}
	s.selected = optionID
	s.mu.Unlock()

	s.monitor.Observe(integrity.Signal{Kind: integrity.SignalClick})
	return true
}

// ConfirmAnswer records the selection. The final question submits right away;
// other questions show feedback and then advance.
func (s *Session) ConfirmAnswer() bool {
	s.mu.Lock()
	if s.state != domain.StateAnsweringQuestion || s.selected == "" {
		s.mu.Unlock()
		return false
	}
	rec := s.recordLocked()
	idx := s.CurrentIndex()

	if idx == len(s.quiz.Questions)-1 {
		s.submitLocked(false, &rec)
		return true
	}

	s.answers = append(s.answers, rec)
	question := s.quiz.Questions[idx]
	s.selected = ""
	if s.opts.FeedbackMode == FeedbackNone {
		s.advanceLocked()
		s.mu.Unlock()
		s.monitor.Observe(integrity.Signal{Kind: integrity.SignalClick})
		return true
	}

	fb := domain.Feedback{QuestionID: question.ID}
	correct, hasCorrect := question.CorrectOption()
	fb.Correct = hasCorrect && correct.ID == rec.SelectedOptionID
	if !fb.Correct && hasCorrect {
		fb.CorrectOptionText = correct.Text
	}
	s.state = domain.StateShowingFeedback
	s.emit(domain.Notice{Type: domain.NoticeFeedback, State: s.state, Feedback: &fb})
	s.stopFeedback = s.clk.After(s.opts.FeedbackDelay, s.endFeedback)
	s.mu.Unlock()

	s.monitor.Observe(integrity.Signal{Kind: integrity.SignalClick})
	return true
}

// Submit delivers the attempt. It runs at most once per session; a second
// call, or a call while a submission is in flight, is a no-op. A manual
// submit is only accepted on the final question and includes the pending
// selection; an auto submit sends confirmed answers only.
func (s *Session) Submit(autoSubmit bool) bool {
	if autoSubmit {
		return s.submit(true, nil)
	}
	s.mu.Lock()
	if s.state != domain.StateAnsweringQuestion || s.selected == "" || s.CurrentIndex() != len(s.quiz.Questions)-1 {
		s.mu.Unlock()
		return false
	}
	rec := s.recordLocked()
	return s.submitLocked(false, &rec)
}

// Signal forwards a UI signal to the integrity monitor.
func (s *Session) Signal(sig integrity.Signal) integrity.Verdict {
	return s.monitor.Observe(sig)
}

// Close tears the session down without submitting. Safe to call more than
// once and after completion.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimersLocked()
	state := s.state
	s.mu.Unlock()

	s.monitor.Stop()
	if state != domain.StateDone && state != domain.StateAbandoned && state != domain.StateSubmitting {
		s.log.WithField("state", state).Info("quiz session closed before submission")
	}
}

func (s *Session) submit(autoSubmit bool, pending *domain.AnswerRecord) bool {
	s.mu.Lock()
	return s.submitLocked(autoSubmit, pending)
}

// submitLocked must be called with s.mu held and releases it. Recording the
// final answer and entering Submitting happen under the same lock, so an
// expiring countdown cannot slip in between and drop that answer.
func (s *Session) submitLocked(autoSubmit bool, pending *domain.AnswerRecord) bool {
	if s.submitting || s.closed || (s.state != domain.StateAnsweringQuestion && s.state != domain.StateShowingFeedback) {
		s.mu.Unlock()
		return false
	}
	s.submitting = true
	s.state = domain.StateSubmitting
	s.stopTimersLocked()

	answers := append([]domain.AnswerRecord{}, s.answers...)
	if !autoSubmit && pending != nil {
		answers = append(answers, *pending)
	}
	ctx := s.ctx
	s.emit(domain.Notice{Type: domain.NoticeState, State: s.state})
	s.mu.Unlock()

	s.monitor.Stop()
	report := s.monitor.Counters().Snapshot()
	req := domain.SubmitRequest{
		Answers:              answers,
		TabSwitchCount:       report.TabSwitchCount,
		AFKIncidents:         report.AFKIncidents,
		InactivityPeriods:    report.InactivityPeriods,
		ScreenshotAttempts:   report.ScreenshotAttempts,
		SuspiciousExtensions: report.SuspiciousExtensions,
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, queued, err := s.assembler.Deliver(ctx, Delivery{
		SessionID:  s.id,
		QuizID:     s.quiz.ID,
		UserID:     s.userID,
		Request:    req,
		AutoSubmit: autoSubmit,
	})

	s.mu.Lock()
	switch {
	case err == nil:
		s.answers = answers
		s.result = &res
		s.state = domain.StateDone
		s.emit(domain.Notice{Type: domain.NoticeState, State: s.state})
		s.emit(domain.Notice{
			Type:     domain.NoticeResult,
			Result:   &res,
			Redirect: fmt.Sprintf("/quizzes/%s/leaderboard", s.quiz.ID),
		})
		close(s.done)
		s.mu.Unlock()
		return true

	case autoSubmit:
		s.state = domain.StateAbandoned
		msg := "Time is up, but your answers could not be submitted."
		if queued {
			msg = "Time is up. Your answers were saved and will be submitted automatically."
		}
		s.emit(domain.Notice{Type: domain.NoticeState, State: s.state})
		s.emit(domain.Notice{Type: domain.NoticeError, Message: msg})
		close(s.done)
		s.mu.Unlock()
		return true

	default:
		// only the final-question path submits manually, so resume there
		s.submitting = false
		s.state = domain.StateAnsweringQuestion
		if s.closed {
			s.mu.Unlock()
			return true
		}
		if s.timed() {
			s.stopTimer = s.clk.Every(s.opts.TickInterval, s.tick)
		}
		s.emit(domain.Notice{Type: domain.NoticeError, Message: "Submission failed. Please try again."})
		s.emit(domain.Notice{Type: domain.NoticeState, State: s.state})
		s.mu.Unlock()

		s.monitor.Start(s.clk, s.CurrentIndex)
		return true
	}
}

// tick runs on the countdown interval.
func (s *Session) tick() {
	s.mu.Lock()
	if s.submitting || s.closed || (s.state != domain.StateAnsweringQuestion && s.state != domain.StateShowingFeedback) {
		s.mu.Unlock()
		return
	}
	left := s.deadline.Sub(s.clk.Now())
	if left < 0 {
		left = 0
	}
	if left < s.remaining {
		s.remaining = left
	}
	s.emitTimerLocked(false)
	if !s.lowTime && s.remaining < s.opts.LowTimeThreshold {
		s.lowTime = true
		rem := s.remaining.Milliseconds()
		s.emit(domain.Notice{Type: domain.NoticeLowTime, RemainingMs: &rem})
	}
	expired := s.remaining == 0
	if expired && s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.mu.Unlock()

	if expired {
		s.log.Info("time limit reached, auto-submitting")
		s.submit(true, nil)
	}
}

func (s *Session) endFeedback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateShowingFeedback || s.closed {
		return
	}
	s.stopFeedback = nil
	s.advanceLocked()
}

func (s *Session) advanceLocked() {
	s.index.Add(1)
	s.selected = ""
	s.questionStart = s.clk.Now()
	s.state = domain.StateAnsweringQuestion
	s.emitQuestionLocked()
}

func (s *Session) recordLocked() domain.AnswerRecord {
	return domain.AnswerRecord{
		QuestionID:       s.quiz.Questions[s.CurrentIndex()].ID,
		SelectedOptionID: s.selected,
		TimeSpentMs:      s.clk.Now().Sub(s.questionStart).Milliseconds(),
	}
}

func (s *Session) hasOptionLocked(optionID string) bool {
	for _, opt := range s.quiz.Questions[s.CurrentIndex()].Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

func (s *Session) stopTimersLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	if s.stopFeedback != nil {
		s.stopFeedback()
		s.stopFeedback = nil
	}
}

func (s *Session) onFinding(f integrity.Finding) {
	s.log.WithFields(logrus.Fields{
		"finding":        f.Kind,
		"detail":         f.Detail,
		"question_index": s.CurrentIndex(),
	}).Info("integrity finding")
	if f.Message != "" {
		s.emit(domain.Notice{Type: domain.NoticeToast, Message: f.Message})
	}
}

func (s *Session) emitQuestionLocked() {
	idx := s.CurrentIndex()
	q := s.quiz.Questions[idx]
	pq := domain.PublicQuestion{
		Index:   idx,
		Total:   len(s.quiz.Questions),
		ID:      q.ID,
		Text:    q.Text,
		Points:  q.Points,
		Options: make([]domain.PublicOption, 0, len(q.Options)),
	}
	for _, opt := range q.Options {
		pq.Options = append(pq.Options, domain.PublicOption{ID: opt.ID, Text: opt.Text})
	}
	s.emit(domain.Notice{Type: domain.NoticeQuestion, State: s.state, Question: &pq})
}

// emitTimerLocked publishes the countdown when its whole-second value changes.
func (s *Session) emitTimerLocked(force bool) {
	sec := int64((s.remaining + time.Second - 1) / time.Second)
	if !force && sec == s.lastSecond {
		return
	}
	s.lastSecond = sec
	rem := s.remaining.Milliseconds()
	s.emit(domain.Notice{Type: domain.NoticeTimer, RemainingMs: &rem})
}

// Subscribe returns a channel of notices for this session. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.Notice, func()) {
	ch := make(chan domain.Notice, 32)

	s.mu.Lock()
	ch <- domain.Notice{Type: domain.NoticeState, State: s.state}
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()
	s.mu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Session) emit(n domain.Notice) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			// slow consumer: drop the oldest notice rather than block the session
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- n:
			default:
			}
		}
	}
}
