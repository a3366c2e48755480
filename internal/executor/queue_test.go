package executor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisQueueEnqueueDequeueAck(t *testing.T) {
	client := newTestRedis(t)
	queue := NewRedisQueue(client)
	ctx := context.Background()

	submission := Submission{ExecutionID: "exec-1", Files: []SourceFile{{Path: "main.tf", Contents: []byte("x")}}}
	if err := queue.Enqueue(ctx, submission); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := queue.Dequeue(ctx, "worker-1", time.Second)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got == nil {
		t.Fatal("expected a submission")
	}
	if got.ExecutionID != "exec-1" {
		t.Fatalf("expected exec-1, got %s", got.ExecutionID)
	}

	if err := queue.Ack(ctx, "worker-1", *got); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	remaining, err := client.LLen(ctx, processingKeyFor("worker-1")).Result()
	if err != nil {
		t.Fatalf("LLen: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected the processing list to be empty after Ack, got %d entries", remaining)
	}
}

func TestRedisQueueDequeueTimesOutWithNilSubmission(t *testing.T) {
	client := newTestRedis(t)
	queue := NewRedisQueue(client)

	got, err := queue.Dequeue(context.Background(), "worker-1", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil submission on timeout, got %+v", got)
	}
}

func TestRedisStorePutGetAndCancel(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	if err := store.Put(ctx, Record{ExecutionID: "exec-2", Status: StatusPending}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	record, err := store.Get(ctx, "exec-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", record.Status)
	}

	cancel, err := store.CancelRequested(ctx, "exec-2")
	if err != nil {
		t.Fatalf("CancelRequested: %v", err)
	}
	if cancel {
		t.Fatal("expected no cancellation yet")
	}

	if err := store.RequestCancel(ctx, "exec-2"); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	cancel, err = store.CancelRequested(ctx, "exec-2")
	if err != nil {
		t.Fatalf("CancelRequested: %v", err)
	}
	if !cancel {
		t.Fatal("expected cancellation to be flagged")
	}
}

func TestRedisStoreGetMissingIsNotFound(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisStore(client)

	if _, err := store.Get(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected an error for a missing execution")
	}
}
