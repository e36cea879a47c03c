package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"quiz-guard-service/internal/domain"
)

const outboxKey = "quiz:outbox"

// Outbox parks submissions that could not be delivered in a Redis hash, with
// a per-player index so a parked attempt still blocks a retake:
//
//	HSET quiz:outbox {sessionID} {json}
//	SET  quiz:outbox:play:{quizID}:{userID} {sessionID}
type Outbox struct {
	client *redis.Client
}

func NewOutbox(client *redis.Client) *Outbox {
	return &Outbox{client: client}
}

func (o *Outbox) Enqueue(ctx context.Context, p domain.PendingSubmission) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending submission: %w", err)
	}
	_, err = o.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, outboxKey, p.ID, raw)
		pipe.Set(ctx, playKey(p.QuizID, p.UserID), p.ID, 0)
		return nil
	})
	return err
}

// Pending returns parked submissions oldest first.
func (o *Outbox) Pending(ctx context.Context) ([]domain.PendingSubmission, error) {
	all, err := o.client.HGetAll(ctx, outboxKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.PendingSubmission, 0, len(all))
	for id, raw := range all {
		var p domain.PendingSubmission
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode pending submission %s: %w", id, err)
		}
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

func (o *Outbox) PendingFor(ctx context.Context, quizID, userID string) (bool, error) {
	id, err := o.client.Get(ctx, playKey(quizID, userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return o.client.HExists(ctx, outboxKey, id).Result()
}

func (o *Outbox) Remove(ctx context.Context, id string) error {
	raw, err := o.client.HGet(ctx, outboxKey, id).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	var p domain.PendingSubmission
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode pending submission %s: %w", id, err)
	}
	if err := o.client.HDel(ctx, outboxKey, id).Err(); err != nil {
		return err
	}
	return releaseScript.Run(ctx, o.client, []string{playKey(p.QuizID, p.UserID)}, id).Err()
}

func playKey(quizID, userID string) string {
	return "quiz:outbox:play:" + quizID + ":" + userID
}

func (o *Outbox) MarkFailed(ctx context.Context, id, lastErr string) error {
	raw, err := o.client.HGet(ctx, outboxKey, id).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	var p domain.PendingSubmission
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode pending submission %s: %w", id, err)
	}
	p.Attempts++
	p.LastError = lastErr
	return o.Enqueue(ctx, p)
}
