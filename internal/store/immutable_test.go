package store

import (
	"context"
	"testing"
	"time"

	"cloudcost/core/types"
	"cloudcost/internal/errors"
)

var _ Store = (*ImmutableResultStore)(nil)
var _ Store = (*PostgresStore)(nil)

func newTestStore(t *testing.T) *ImmutableResultStore {
	t.Helper()
	s, err := NewImmutableResultStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewImmutableResultStore: %v", err)
	}
	return s
}

func sampleResult(resultID, jobID, projectID string) types.ImmutableCostResult {
	return types.ImmutableCostResult{
		ResultID:  resultID,
		JobID:     jobID,
		ProjectID: projectID,
		InputHash: "hash-" + resultID,
		FCM:       *fcmWithExpected(42, types.ConfidenceHigh),
		CreatedAt: time.Now().UTC(),
	}
}

func TestImmutableStoreCreateThenGetByIDAndJobID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	result := sampleResult("result-1", "job-1", "proj-1")

	if err := s.Create(ctx, result); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byID, err := s.GetByID(ctx, "result-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.JobID != "job-1" {
		t.Fatalf("expected job-1, got %s", byID.JobID)
	}

	byJob, err := s.GetByJobID(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetByJobID: %v", err)
	}
	if byJob.ResultID != "result-1" {
		t.Fatalf("expected result-1, got %s", byJob.ResultID)
	}
}

func TestImmutableStoreCreateDuplicateResultIDIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	result := sampleResult("result-dup", "job-a", "proj-1")

	if err := s.Create(ctx, result); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(ctx, result)
	if err == nil || !errors.IsType(err, errors.TypeConflict) {
		t.Fatalf("expected a conflict error for a duplicate result_id, got %v", err)
	}
}

func TestImmutableStoreCreateDuplicateJobIDIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, sampleResult("result-1", "job-shared", "proj-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(ctx, sampleResult("result-2", "job-shared", "proj-1"))
	if err == nil || !errors.IsType(err, errors.TypeConflict) {
		t.Fatalf("expected a conflict error for a duplicate job_id, got %v", err)
	}
}

func TestImmutableStoreUpdateAndDeleteAreAlwaysImmutabilityViolations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	result := sampleResult("result-1", "job-1", "proj-1")
	if err := s.Create(ctx, result); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Update(ctx, result); err == nil || !errors.IsType(err, errors.TypeImmutabilityViolation) {
		t.Fatalf("expected Update to fail with an immutability violation, got %v", err)
	}
	if err := s.Delete(ctx, "result-1"); err == nil || !errors.IsType(err, errors.TypeImmutabilityViolation) {
		t.Fatalf("expected Delete to fail with an immutability violation, got %v", err)
	}

	if _, err := s.GetByID(ctx, "result-1"); err != nil {
		t.Fatalf("expected the result to still be readable after the rejected mutations, got %v", err)
	}
}

func TestImmutableStoreListByProjectOrdersNewestFirstAndPaginates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := sampleResult(
			[]string{"result-a", "result-b", "result-c"}[i],
			[]string{"job-a", "job-b", "job-c"}[i],
			"proj-shared",
		)
		result.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := s.Create(ctx, result); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page, err := s.ListByProject(ctx, "proj-shared", 2, 0)
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 results, got %d", len(page))
	}
	if page[0].ResultID != "result-c" {
		t.Fatalf("expected newest result first, got %s", page[0].ResultID)
	}

	rest, err := s.ListByProject(ctx, "proj-shared", 2, 2)
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(rest) != 1 || rest[0].ResultID != "result-a" {
		t.Fatalf("expected one remaining result (result-a), got %v", rest)
	}
}

func TestImmutableStoreCreateAppendsAuditEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, sampleResult("result-1", "job-1", "proj-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	entries, err := s.AuditLog(ctx, "job-1")
	if err != nil {
		t.Fatalf("AuditLog: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "create" {
		t.Fatalf("expected one create audit entry, got %v", entries)
	}

	all, err := s.AuditLog(ctx, "")
	if err != nil {
		t.Fatalf("AuditLog: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected the unfiltered log to also have one entry, got %d", len(all))
	}
}

func TestEvaluateGateAppendsAnAuditEntryRegardlessOfVerdict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	result := sampleResult("result-1", "job-1", "proj-1")
	if err := s.Create(ctx, result); err != nil {
		t.Fatalf("Create: %v", err)
	}

	gate := NewGate(&ThresholdRule{Max: 1})
	verdict, err := EvaluateGate(ctx, s, gate, result, "test-actor")
	if err != nil {
		t.Fatalf("EvaluateGate: %v", err)
	}
	if verdict.Passed {
		t.Fatal("expected the gate to fail for a result above the threshold")
	}

	entries, err := s.AuditLog(ctx, "job-1")
	if err != nil {
		t.Fatalf("AuditLog: %v", err)
	}
	var sawGateEntry bool
	for _, e := range entries {
		if e.Action == "gate_evaluate" {
			sawGateEntry = true
		}
	}
	if !sawGateEntry {
		t.Fatalf("expected a gate_evaluate audit entry, got %v", entries)
	}
}
