package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"cloudcost/core/types"
	"cloudcost/internal/errors"
)

// MemStore is an in-process JobStore, used by tests and by the local
// single-instance runner where a Postgres deployment hasn't been stood up.
// Beyond the JobStore contract it also indexes jobs by idempotency key and
// can list every job still short of a terminal state, which is what lets a
// gateway satisfy create_job's dedup guarantee and an orchestrator poll for
// work without either needing a real database.
type MemStore struct {
	mu         sync.Mutex
	jobs       map[string]*types.Job
	byIdemKey  map[string]string // idempotency key -> job id
	execs      []types.StageExecution
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		jobs:      make(map[string]*types.Job),
		byIdemKey: make(map[string]string),
	}
}

// Put seeds the store with a job, for test setup.
func (s *MemStore) Put(job *types.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.JobID] = &cp
	if job.IdempotencyKey != "" {
		s.byIdemKey[job.IdempotencyKey] = job.JobID
	}
}

// CreateJob inserts a brand new job. If job.IdempotencyKey matches a job
// already on file, CreateJob leaves the store untouched and returns the
// existing job instead of the one passed in, so a retried create_job call
// produces exactly one job row no matter how many times it is retried.
func (s *MemStore) CreateJob(ctx context.Context, job *types.Job) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.IdempotencyKey != "" {
		if existingID, ok := s.byIdemKey[job.IdempotencyKey]; ok {
			cp := *s.jobs[existingID]
			return &cp, nil
		}
	}

	if _, exists := s.jobs[job.JobID]; exists {
		return nil, errors.Conflict(fmt.Sprintf("job %s already exists", job.JobID))
	}

	cp := *job
	s.jobs[job.JobID] = &cp
	if job.IdempotencyKey != "" {
		s.byIdemKey[job.IdempotencyKey] = job.JobID
	}
	out := cp
	return &out, nil
}

// FindByIdempotencyKey returns the job created for key, if any.
func (s *MemStore) FindByIdempotencyKey(ctx context.Context, key string) (*types.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byIdemKey[key]
	if !ok {
		return nil, false
	}
	cp := *s.jobs[id]
	return &cp, true
}

// ListPending returns every job whose CurrentState is not yet terminal, in
// no particular order. An orchestrator polling loop uses this to discover
// jobs that need their next stage run.
func (s *MemStore) ListPending(ctx context.Context) ([]*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.CurrentState.IsTerminal() {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out, nil
}

// GetJob returns a copy of the job so callers never mutate store state
// without going through SaveJob.
func (s *MemStore) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("orchestrator: job %s not found", jobID)
	}
	cp := *job
	return &cp, nil
}

// SaveJob replaces the stored job state.
func (s *MemStore) SaveJob(ctx context.Context, job *types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

// RecordStageExecution appends the attempt to an in-memory log.
func (s *MemStore) RecordStageExecution(ctx context.Context, exec types.StageExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = append(s.execs, exec)
	return nil
}

// Executions returns every recorded stage execution, for test assertions.
func (s *MemStore) Executions() []types.StageExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.StageExecution, len(s.execs))
	copy(out, s.execs)
	return out
}
