// Package orchestrator drives a job through its pipeline stages
// (PLANNING -> PARSING -> ENRICHING -> COSTING) as a persisted state
// machine: every transition is guarded so a stage can only ever move the
// job forward, and every attempt is durably recorded before and after it
// runs, so a crashed orchestrator can resume an in-flight job instead of
// restarting its whole pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cloudcost/core/types"
)

// StageFunc runs one stage's work against a job, returning an error if the
// stage should be retried (or failed, once retries are exhausted).
type StageFunc func(ctx context.Context, job *types.Job) error

// JobStore persists jobs and stage execution attempts. A Postgres-backed
// implementation is expected to satisfy this by wrapping both the job row
// update and the stage execution insert in one transaction, so a reader
// never observes a job in a new state without the matching attempt record.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*types.Job, error)
	SaveJob(ctx context.Context, job *types.Job) error
	RecordStageExecution(ctx context.Context, exec types.StageExecution) error
}

// Machine advances jobs through the pipeline, one stage at a time, with a
// distributed lock protecting each stage attempt from concurrent
// orchestrator instances.
type Machine struct {
	store    JobStore
	redis    *redis.Client
	policies map[types.StageName]types.StagePolicy
	stages   map[types.StageName]StageFunc
}

// New creates a Machine. policies must have an entry for every StageName
// the registered StageFuncs cover; RunStage panics if one is missing,
// since a stage with no timeout/retry policy is a configuration bug, not
// a runtime condition to recover from.
func New(store JobStore, client *redis.Client, policies []types.StagePolicy) *Machine {
	m := &Machine{
		store:    store,
		redis:    client,
		policies: make(map[types.StageName]types.StagePolicy, len(policies)),
		stages:   make(map[types.StageName]StageFunc),
	}
	for _, p := range policies {
		m.policies[p.Stage] = p
	}
	return m
}

// RegisterStage wires a stage's work function in. Call once per StageName
// before RunStage is ever invoked for it.
func (m *Machine) RegisterStage(stage types.StageName, fn StageFunc) {
	m.stages[stage] = fn
}

func (m *Machine) stateForStage(stage types.StageName) types.JobState {
	switch stage {
	case types.StagePlanning:
		return types.JobStatePlanning
	case types.StageParsing:
		return types.JobStateParsing
	case types.StageEnriching:
		return types.JobStateEnriching
	case types.StageCosting:
		return types.JobStateCosting
	default:
		return types.JobStateFailed
	}
}

// nextStateForStage is the state a job advances to once stage completes
// successfully.
func (m *Machine) nextStateForStage(stage types.StageName) types.JobState {
	switch stage {
	case types.StagePlanning:
		return types.JobStateParsing
	case types.StageParsing:
		return types.JobStateEnriching
	case types.StageEnriching:
		return types.JobStateCosting
	case types.StageCosting:
		return types.JobStateCompleted
	default:
		return types.JobStateFailed
	}
}

// RunStage runs one stage for jobID under its distributed lock, enforcing
// that the job is currently in the state this stage expects (the
// forward-only phase guard), retrying the stage's work per its policy, and
// recording a StageExecution both before the attempt starts and after it
// settles.
func (m *Machine) RunStage(ctx context.Context, jobID string, stage types.StageName) error {
	policy, ok := m.policies[stage]
	if !ok {
		panic(fmt.Sprintf("orchestrator: no StagePolicy registered for stage %s", stage))
	}
	fn, ok := m.stages[stage]
	if !ok {
		panic(fmt.Sprintf("orchestrator: no StageFunc registered for stage %s", stage))
	}

	lockKey := StageLock(jobID, string(stage))
	lock, err := Acquire(ctx, m.redis, lockKey, policy.LockTTL)
	if err != nil {
		return err
	}
	defer lock.Release(context.Background())

	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	expected := m.stateForStage(stage)
	if job.CurrentState != expected {
		return fmt.Errorf("orchestrator: job %s is in state %s, stage %s expects %s",
			jobID, job.CurrentState, stage, expected)
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		exec := types.StageExecution{
			JobID:     jobID,
			Stage:     stage,
			Attempt:   attempt,
			StartedAt: time.Now(),
		}
		if err := m.store.RecordStageExecution(ctx, exec); err != nil {
			return err
		}

		stageCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		lastErr = fn(stageCtx, job)
		cancel()

		completedAt := time.Now()
		exec.CompletedAt = &completedAt
		exec.Succeeded = lastErr == nil
		if lastErr != nil {
			exec.Error = lastErr.Error()
		}
		if err := m.store.RecordStageExecution(ctx, exec); err != nil {
			return err
		}

		if lastErr == nil {
			break
		}

		if attempt <= policy.MaxRetries {
			delay := backoffDelay(policy.BaseDelay, policy.MaxDelay, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if lastErr != nil {
		job.PreviousState = job.CurrentState
		job.CurrentState = types.JobStateFailed
		job.ErrorMessage = lastErr.Error()
		job.RefreshProgress()
		if err := m.store.SaveJob(ctx, job); err != nil {
			return err
		}
		return lastErr
	}

	next := m.nextStateForStage(stage)
	if !job.CurrentState.CanTransitionTo(next) {
		return fmt.Errorf("orchestrator: illegal transition %s -> %s for job %s", job.CurrentState, next, jobID)
	}
	job.PreviousState = job.CurrentState
	job.CurrentState = next
	now := time.Now()
	if next == types.JobStateCompleted {
		job.CompletedAt = &now
	}
	job.RefreshProgress()
	return m.store.SaveJob(ctx, job)
}

// backoffDelay computes an exponential delay capped at maxDelay, doubling
// from base on each successive attempt.
func backoffDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

// DefaultPolicies returns a stage policy table. It is data, not code, so a
// test can assert each stage's timeout/retry/lock bounds directly instead
// of exercising them indirectly through a live run.
//
// PLANNING and PARSING never retry: PLANNING wraps a non-idempotent
// Terraform subprocess (a second attempt can collide with the first's
// partial state) and PARSING is a pure deterministic transform whose
// failure will not change between attempts. ENRICHING and COSTING call
// downstream services that do fail transiently (throttling, 5xx), so a
// bounded retry is worth it there.
func DefaultPolicies() []types.StagePolicy {
	return []types.StagePolicy{
		{Stage: types.StagePlanning, Timeout: 300 * time.Second, MaxRetries: 0, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, LockTTL: 6 * time.Minute},
		{Stage: types.StageParsing, Timeout: 120 * time.Second, MaxRetries: 0, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, LockTTL: 3 * time.Minute},
		{Stage: types.StageEnriching, Timeout: 180 * time.Second, MaxRetries: 2, BaseDelay: 1 * time.Second, MaxDelay: 20 * time.Second, LockTTL: 4 * time.Minute},
		{Stage: types.StageCosting, Timeout: 60 * time.Second, MaxRetries: 2, BaseDelay: 1 * time.Second, MaxDelay: 15 * time.Second, LockTTL: 2 * time.Minute},
	}
}
