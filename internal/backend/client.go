package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quiz-guard-service/internal/domain"
)

type (
	tokenKey    struct{}
	onBehalfKey struct{}
)

// WithToken attaches the caller's bearer token; the client forwards it unchanged.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// WithOnBehalfOf marks a request made with a service token for the given user.
func WithOnBehalfOf(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, onBehalfKey{}, userID)
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying the request could succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

// IsPermanent reports whether err is a backend rejection that retrying will not fix.
func IsPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && !apiErr.Temporary()
}

// Client talks to the quiz REST backend.
type Client struct {
	baseURL string
	http    *http.Client
}

type Config struct {
	BaseURL string
	// Timeout bounds every request, including reading the body.
	Timeout time.Duration
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GetQuiz fetches GET /quizzes/:id.
func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.do(ctx, http.MethodGet, c.quizPath(quizID), nil, "", &quiz)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return domain.Quiz{}, fmt.Errorf("get quiz %s: %w", quizID, domain.ErrQuizNotFound)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("get quiz %s: %w", quizID, err)
	}
	return quiz, nil
}

// LoadQuiz lets the client act as the quiz cache's backing loader.
func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return c.GetQuiz(ctx, quizID)
}

// GetAttempt fetches GET /quizzes/:id/attempt for the caller.
func (c *Client) GetAttempt(ctx context.Context, quizID string) (domain.AttemptStatus, error) {
	var status domain.AttemptStatus
	if err := c.do(ctx, http.MethodGet, c.quizPath(quizID)+"/attempt", nil, "", &status); err != nil {
		return domain.AttemptStatus{}, fmt.Errorf("get attempt %s: %w", quizID, err)
	}
	return status, nil
}

// SubmitQuiz posts the final answers and integrity counters. idempotencyKey
// identifies the play session so redelivery cannot double-score.
func (c *Client) SubmitQuiz(ctx context.Context, quizID, idempotencyKey string, req domain.SubmitRequest) (domain.SubmitResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("encode submission: %w", err)
	}
	var res domain.SubmitResult
	if err := c.do(ctx, http.MethodPost, c.quizPath(quizID)+"/submit", body, idempotencyKey, &res); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("submit quiz %s: %w", quizID, err)
	}
	return res, nil
}

func (c *Client) quizPath(quizID string) string {
	return c.baseURL + "/quizzes/" + url.PathEscape(quizID)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, idempotencyKey string, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := tokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if userID, _ := ctx.Value(onBehalfKey{}).(string); userID != "" {
		req.Header.Set("X-On-Behalf-Of", userID)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return &APIError{Status: res.StatusCode, Message: errorMessage(res.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"message"} or {"error"} from an error body, falling back to raw text.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
