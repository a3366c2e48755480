package executor

import (
	"context"
	"testing"
)

func TestServiceSubmitThenStatusIsPending(t *testing.T) {
	client := newTestRedis(t)
	svc := NewService(NewRedisQueue(client), NewRedisStore(client))
	ctx := context.Background()

	id, err := svc.Submit(ctx, []SourceFile{{Path: "main.tf", Contents: []byte("x")}}, nil, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty execution id")
	}

	record, err := svc.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", record.Status)
	}
}

func TestServiceResultRejectsNonTerminalExecution(t *testing.T) {
	client := newTestRedis(t)
	svc := NewService(NewRedisQueue(client), NewRedisStore(client))
	ctx := context.Background()

	id, err := svc.Submit(ctx, nil, nil, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := svc.Result(ctx, id); err == nil {
		t.Fatal("expected an error reading the result of a still-pending execution")
	}
}

func TestServiceCancelPendingExecutionMarksKilled(t *testing.T) {
	client := newTestRedis(t)
	svc := NewService(NewRedisQueue(client), NewRedisStore(client))
	ctx := context.Background()

	id, err := svc.Submit(ctx, nil, nil, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := svc.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	record, err := svc.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != StatusKilled {
		t.Fatalf("expected KILLED, got %s", record.Status)
	}

	result, err := svc.Result(ctx, id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if result.Status != StatusKilled {
		t.Fatalf("expected terminal result KILLED, got %s", result.Status)
	}
}

func TestServiceCancelingTerminalExecutionIsNoOp(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisStore(client)
	svc := NewService(NewRedisQueue(client), store)
	ctx := context.Background()

	id, err := svc.Submit(ctx, nil, nil, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := store.Put(ctx, Record{ExecutionID: id, Status: StatusCompleted}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := svc.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel on a completed execution should be a no-op, got: %v", err)
	}

	record, err := svc.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != StatusCompleted {
		t.Fatalf("expected status to remain COMPLETED, got %s", record.Status)
	}
}
