package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-guard-service/internal/domain"
)

// Outbox stores parked submissions in the pending_submissions table.
type Outbox struct {
	pool *pgxpool.Pool
}

func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

// Enqueue inserts the submission; a second enqueue for the same session is ignored.
func (o *Outbox) Enqueue(ctx context.Context, p domain.PendingSubmission) error {
	payload, err := json.Marshal(p.Request)
	if err != nil {
		return fmt.Errorf("marshal submit request: %w", err)
	}
	_, err = o.pool.Exec(ctx, `
		INSERT INTO pending_submissions (id, quiz_id, user_id, payload, auto_submit, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.QuizID, p.UserID, payload, p.AutoSubmit, p.Attempts, p.LastError, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue submission: %w", err)
	}
	return nil
}

func (o *Outbox) Pending(ctx context.Context) ([]domain.PendingSubmission, error) {
	rows, err := o.pool.Query(ctx, `
		SELECT id, quiz_id, user_id, payload, auto_submit, attempts, last_error, created_at
		FROM pending_submissions
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query pending submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingSubmission
	for rows.Next() {
		var (
			p   domain.PendingSubmission
			raw []byte
		)
		if err := rows.Scan(&p.ID, &p.QuizID, &p.UserID, &raw, &p.AutoSubmit, &p.Attempts, &p.LastError, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending submission: %w", err)
		}
		if err := json.Unmarshal(raw, &p.Request); err != nil {
			return nil, fmt.Errorf("unmarshal submission %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (o *Outbox) PendingFor(ctx context.Context, quizID, userID string) (bool, error) {
	var exists bool
	err := o.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM pending_submissions WHERE quiz_id=$1 AND user_id=$2)`,
		quizID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending submission: %w", err)
	}
	return exists, nil
}

func (o *Outbox) Remove(ctx context.Context, id string) error {
	_, err := o.pool.Exec(ctx, `DELETE FROM pending_submissions WHERE id=$1`, id)
	return err
}

func (o *Outbox) MarkFailed(ctx context.Context, id, lastErr string) error {
	_, err := o.pool.Exec(ctx, `UPDATE pending_submissions SET attempts = attempts + 1, last_error = $2 WHERE id=$1`, id, lastErr)
	return err
}
