package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-guard-service/internal/domain"
)

// Outbox keeps parked submissions in process memory. It does not survive a
// restart; use the Redis or Postgres outbox where that matters.
type Outbox struct {
	mu      sync.Mutex
	pending map[string]domain.PendingSubmission
}

func NewOutbox() *Outbox {
	return &Outbox{pending: make(map[string]domain.PendingSubmission)}
}

func (o *Outbox) Enqueue(_ context.Context, p domain.PendingSubmission) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[p.ID] = p
	return nil
}

// Pending returns parked submissions oldest first.
func (o *Outbox) Pending(_ context.Context) ([]domain.PendingSubmission, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.PendingSubmission, 0, len(o.pending))
	for _, p := range o.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (o *Outbox) PendingFor(_ context.Context, quizID, userID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, p := range o.pending {
		if p.QuizID == quizID && p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (o *Outbox) Remove(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pending, id)
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id, lastErr string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.pending[id]
	if !ok {
		return nil
	}
	p.Attempts++
	p.LastError = lastErr
	o.pending[id] = p
	return nil
}
