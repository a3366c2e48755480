package executor

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func testWorker(t *testing.T, client *redis.Client) (*Worker, Store) {
	t.Helper()
	store := NewRedisStore(client)
	config := DefaultWorkerConfig("worker-test", t.TempDir())
	config.TerraformPath = "terraform-never-invoked"
	return NewWorker(config, NewRedisQueue(client), store, nil), store
}

func TestWorkerRejectsDisallowedProvisionerBeforeRunningTerraform(t *testing.T) {
	client := newTestRedis(t)
	worker, store := testWorker(t, client)
	ctx := context.Background()

	submission := Submission{
		ExecutionID: "exec-scan-fail",
		Files: []SourceFile{
			{Path: "main.tf", Contents: []byte(`
resource "null_resource" "bad" {
  provisioner "local-exec" {
    command = "echo hi"
  }
}
`)},
		},
	}
	if err := store.Put(ctx, Record{ExecutionID: submission.ExecutionID, Status: StatusPending}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	worker.process(ctx, submission)

	record, err := store.Get(ctx, submission.ExecutionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", record.Status)
	}
	if record.ErrorReason != FailureSecurityViolation {
		t.Fatalf("expected security_violation, got %s", record.ErrorReason)
	}
}

func TestWorkerRejectsOversizedWorkspace(t *testing.T) {
	client := newTestRedis(t)
	worker, store := testWorker(t, client)
	worker.config.MaxWorkspaceBytes = 10
	ctx := context.Background()

	submission := Submission{
		ExecutionID: "exec-too-big",
		Files:       []SourceFile{{Path: "main.tf", Contents: make([]byte, 1024)}},
	}
	if err := store.Put(ctx, Record{ExecutionID: submission.ExecutionID, Status: StatusPending}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	worker.process(ctx, submission)

	record, err := store.Get(ctx, submission.ExecutionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", record.Status)
	}
	if record.ErrorReason != FailureValidation {
		t.Fatalf("expected validation_failure, got %s", record.ErrorReason)
	}
}

func TestWorkerHonorsCancelRequestedBeforeProcessing(t *testing.T) {
	client := newTestRedis(t)
	worker, store := testWorker(t, client)
	ctx := context.Background()

	submission := Submission{ExecutionID: "exec-canceled", Files: nil}
	if err := store.Put(ctx, Record{ExecutionID: submission.ExecutionID, Status: StatusPending}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.RequestCancel(ctx, submission.ExecutionID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	worker.process(ctx, submission)

	record, err := store.Get(ctx, submission.ExecutionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != StatusKilled {
		t.Fatalf("expected KILLED, got %s", record.Status)
	}
}

func TestWorkerRejectsCredentialReferenceWithNoResolverConfigured(t *testing.T) {
	client := newTestRedis(t)
	worker, store := testWorker(t, client)
	ctx := context.Background()

	submission := Submission{
		ExecutionID:         "exec-no-resolver",
		Files:               []SourceFile{{Path: "main.tf", Contents: []byte(`resource "null_resource" "x" {}`)}},
		CredentialReference: "assume-role:some-role",
	}
	if err := store.Put(ctx, Record{ExecutionID: submission.ExecutionID, Status: StatusPending}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	worker.process(ctx, submission)

	record, err := store.Get(ctx, submission.ExecutionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", record.Status)
	}
	if record.ErrorReason != FailureSecurityViolation {
		t.Fatalf("expected security_violation, got %s", record.ErrorReason)
	}
}
