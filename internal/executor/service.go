package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cloudcost/internal/errors"
)

// Service implements the async submit/status/result/cancel contract a
// gateway or orchestrator stage calls against, backed by a Queue a fleet of
// Workers drains and a Store those Workers report progress into.
type Service struct {
	queue Queue
	store Store
}

// NewService builds a Service over queue and store.
func NewService(queue Queue, store Store) *Service {
	return &Service{queue: queue, store: store}
}

// Submit accepts a set of workspace files, variables, and an optional
// credential reference, enqueues them as one execution, and returns its
// execution_id immediately with status PENDING.
func (s *Service) Submit(ctx context.Context, files []SourceFile, variables map[string]string, credentialReference string) (string, error) {
	executionID := uuid.NewString()
	submission := Submission{
		ExecutionID:         executionID,
		Files:               files,
		Variables:           variables,
		CredentialReference: credentialReference,
		SubmittedAt:         time.Now(),
	}

	if err := s.store.Put(ctx, Record{ExecutionID: executionID, Status: StatusPending}); err != nil {
		return "", err
	}
	if err := s.queue.Enqueue(ctx, submission); err != nil {
		return "", err
	}
	return executionID, nil
}

// Status returns the current Record for executionID.
func (s *Service) Status(ctx context.Context, executionID string) (*Record, error) {
	return s.store.Get(ctx, executionID)
}

// Result returns the terminal Result for executionID, erroring if the
// execution hasn't reached a terminal status yet.
func (s *Service) Result(ctx context.Context, executionID string) (*Result, error) {
	record, err := s.store.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if !record.Status.IsTerminal() {
		return nil, errors.Newf(errors.TypeConflict, "execution %s has not reached a terminal state (currently %s)", executionID, record.Status)
	}
	return &Result{
		Status:       record.Status,
		PlanDocument: record.PlanDocument,
		ErrorMessage: record.ErrorMessage,
	}, nil
}

// Cancel marks executionID KILLED and flags it so a worker that has
// already claimed it terminates at its next checkpoint. Canceling an
// execution that has already reached a terminal state is a no-op.
func (s *Service) Cancel(ctx context.Context, executionID string) error {
	record, err := s.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if record.Status.IsTerminal() {
		return nil
	}
	if err := s.store.RequestCancel(ctx, executionID); err != nil {
		return err
	}
	if record.Status == StatusPending {
		now := time.Now()
		record.Status = StatusKilled
		record.CompletedAt = &now
		return s.store.Put(ctx, *record)
	}
	return nil
}
