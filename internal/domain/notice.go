package domain

// SessionState is the sequencer state of a play session.
type SessionState string

const (
	StateLoading           SessionState = "loading"
	StateReady             SessionState = "ready"
	StateAnsweringQuestion SessionState = "answering"
	StateShowingFeedback   SessionState = "feedback"
	StateSubmitting        SessionState = "submitting"
	StateDone              SessionState = "done"
	// StateAbandoned means auto-submission exhausted its retries and the attempt was parked in the outbox.
	StateAbandoned SessionState = "abandoned"
)

// NoticeType names the outbound events a session emits toward the UI layer.
type NoticeType string

const (
	NoticeState    NoticeType = "state"
	NoticeQuestion NoticeType = "question"
	NoticeFeedback NoticeType = "feedback"
	NoticeTimer    NoticeType = "timer"
	NoticeLowTime  NoticeType = "lowTime"
	NoticeToast    NoticeType = "toast"
	NoticeResult   NoticeType = "result"
	NoticeError    NoticeType = "error"
)

// PublicOption is an option as shown to the player. The correctness flag is never included.
type PublicOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PublicQuestion is the current question as shown to the player.
type PublicQuestion struct {
	Index   int            `json:"index"`
	Total   int            `json:"total"`
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Points  int            `json:"points"`
	Options []PublicOption `json:"options"`
}

// Feedback reveals correctness for a confirmed non-final answer.
type Feedback struct {
	QuestionID        string `json:"questionId"`
	Correct           bool   `json:"correct"`
	CorrectOptionText string `json:"correctOptionText,omitempty"`
}

// BlockPolicy tells the presentation layer which inputs to suppress locally.
type BlockPolicy struct {
	Shortcuts        []string `json:"shortcuts"`
	BlockCopy        bool     `json:"blockCopy"`
	BlockContextMenu bool     `json:"blockContextMenu"`
}

// Notice is one outbound event. Only the fields relevant to Type are set.
type Notice struct {
	Type        NoticeType      `json:"type"`
	State       SessionState    `json:"state,omitempty"`
	Question    *PublicQuestion `json:"question,omitempty"`
	Feedback    *Feedback       `json:"feedback,omitempty"`
	RemainingMs *int64          `json:"remainingMs,omitempty"`
	Message     string          `json:"message,omitempty"`
	Result      *SubmitResult   `json:"result,omitempty"`
	Redirect    string          `json:"redirect,omitempty"`
	Policy      *BlockPolicy    `json:"policy,omitempty"`
}
