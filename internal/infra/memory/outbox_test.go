package memory

import (
	"context"
	"testing"
	"time"

	"quiz-guard-service/internal/domain"
)

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	box := NewOutbox()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = box.Enqueue(ctx, domain.PendingSubmission{ID: "b", QuizID: "quiz-1", CreatedAt: base.Add(time.Second)})
	_ = box.Enqueue(ctx, domain.PendingSubmission{ID: "a", QuizID: "quiz-1", CreatedAt: base, Attempts: 5})

	pending, _ := box.Pending(ctx)
	if len(pending) != 2 || pending[0].ID != "a" || pending[1].ID != "b" {
		t.Fatalf("expected oldest first, got %+v", pending)
	}

	if err := box.MarkFailed(ctx, "a", "502"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, _ = box.Pending(ctx)
	if pending[0].Attempts != 6 || pending[0].LastError != "502" {
		t.Fatalf("expected attempt bookkeeping, got %+v", pending[0])
	}

	_ = box.Remove(ctx, "a")
	pending, _ = box.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Fatalf("expected only b left, got %+v", pending)
	}
}

func TestOutboxPendingFor(t *testing.T) {
	ctx := context.Background()
	box := NewOutbox()
	_ = box.Enqueue(ctx, domain.PendingSubmission{ID: "s1", QuizID: "quiz-1", UserID: "u1"})

	if ok, _ := box.PendingFor(ctx, "quiz-1", "u1"); !ok {
		t.Fatalf("expected parked attempt for u1")
	}
	if ok, _ := box.PendingFor(ctx, "quiz-1", "u2"); ok {
		t.Fatalf("unexpected parked attempt for u2")
	}
	if ok, _ := box.PendingFor(ctx, "quiz-2", "u1"); ok {
		t.Fatalf("unexpected parked attempt on quiz-2")
	}

	_ = box.Remove(ctx, "s1")
	if ok, _ := box.PendingFor(ctx, "quiz-1", "u1"); ok {
		t.Fatalf("expected nothing parked after remove")
	}
}
