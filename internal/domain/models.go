package domain

import "time"

// QuizStatus is the lifecycle status reported by the backend.
type QuizStatus string

const (
	QuizUpcoming QuizStatus = "UPCOMING"
	QuizActive   QuizStatus = "ACTIVE"
	QuizClosed   QuizStatus = "CLOSED"
)

// Option represents a possible answer for a question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Points  int      `json:"points"`
	Options []Option `json:"options"`
}

// CorrectOption returns the first option flagged correct.
func (q Question) CorrectOption() (Option, bool) {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt, true
		}
	}
	return Option{}, false
}

// Quiz is the immutable quiz content fetched for a play session.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	StartAt          time.Time  `json:"startAt"`
	EndAt            time.Time  `json:"endAt"`
	Status           QuizStatus `json:"status"`
	Questions        []Question `json:"questions"`
}

// AnswerRecord is one confirmed response. Records are append-only.
type AnswerRecord struct {
	QuestionID       string `json:"questionId"`
	SelectedOptionID string `json:"selectedOptionId"`
	TimeSpentMs      int64  `json:"timeSpentMs"`
}

// InactivityPeriod is one detected AFK stretch.
type InactivityPeriod struct {
	QuestionIndex int   `json:"questionIndex"`
	DurationMs    int64 `json:"durationMs"`
}

// IntegrityReport is a point-in-time copy of the session's integrity counters.
type IntegrityReport struct {
	TabSwitchCount       int                `json:"tabSwitchCount"`
	AFKIncidents         int                `json:"afkIncidents"`
	InactivityPeriods    []InactivityPeriod `json:"inactivityPeriods"`
	ScreenshotAttempts   int                `json:"screenshotAttempts"`
	SuspiciousExtensions []string           `json:"suspiciousExtensions"`
}

// SubmitRequest is the body of POST /quizzes/:id/submit.
type SubmitRequest struct {
	Answers              []AnswerRecord     `json:"answers"`
	TabSwitchCount       int                `json:"tabSwitchCount"`
	AFKIncidents         int                `json:"afkIncidents"`
	InactivityPeriods    []InactivityPeriod `json:"inactivityPeriods"`
	ScreenshotAttempts   int                `json:"screenshotAttempts"`
	SuspiciousExtensions []string           `json:"suspiciousExtensions"`
}

// SubmitResult is the backend's scoring response.
type SubmitResult struct {
	TotalScore int `json:"totalScore"`
	Rank       int `json:"rank"`
}

// Attempt is a prior attempt summary as returned by the backend.
type Attempt struct {
	ID          string    `json:"id,omitempty"`
	TotalScore  int       `json:"totalScore"`
	Rank        int       `json:"rank,omitempty"`
	SubmittedAt time.Time `json:"submittedAt,omitempty"`
}

// AttemptStatus answers GET /quizzes/:id/attempt.
type AttemptStatus struct {
	HasAttempted bool     `json:"hasAttempted"`
	Attempt      *Attempt `json:"attempt,omitempty"`
}

// PendingSubmission is a submission parked in the outbox after delivery failed.
// ID doubles as the idempotency key sent to the backend.
type PendingSubmission struct {
	ID         string        `json:"id"`
	QuizID     string        `json:"quizId"`
	UserID     string        `json:"userId"`
	Request    SubmitRequest `json:"request"`
	AutoSubmit bool          `json:"autoSubmit"`
	Attempts   int           `json:"attempts"`
	LastError  string        `json:"lastError,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}
