package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizNotActive is returned when a play session is requested for a quiz that is not ACTIVE.
	ErrQuizNotActive = errors.New("quiz is not active")
	// ErrAlreadyAttempted is returned when the user already has an attempt for the quiz.
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrInvalidQuiz indicates quiz content that cannot be played (no questions, too few options).
	ErrInvalidQuiz = errors.New("quiz content is not playable")
	// ErrSessionActive is returned when the user already has a live session for the quiz.
	ErrSessionActive = errors.New("a play session is already live for this quiz")
	// ErrSubmissionFailed wraps delivery failures surfaced to the player.
	ErrSubmissionFailed = errors.New("quiz submission failed")
)
