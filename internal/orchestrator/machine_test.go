package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"cloudcost/core/types"
)

func newTestMachine(t *testing.T) (*Machine, *MemStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewMemStore()
	policies := DefaultPolicies()
	for i := range policies {
		policies[i].LockTTL = 200 * time.Millisecond
		policies[i].Timeout = 2 * time.Second
		policies[i].BaseDelay = time.Millisecond
		policies[i].MaxDelay = 5 * time.Millisecond
	}
	m := New(store, client, policies)
	return m, store
}

func TestDefaultPoliciesMatchStageTable(t *testing.T) {
	policies := make(map[types.StageName]types.StagePolicy)
	for _, p := range DefaultPolicies() {
		policies[p.Stage] = p
	}

	cases := []struct {
		stage      types.StageName
		timeout    time.Duration
		maxRetries int
	}{
		{types.StagePlanning, 300 * time.Second, 0},
		{types.StageParsing, 120 * time.Second, 0},
		{types.StageEnriching, 180 * time.Second, 2},
		{types.StageCosting, 60 * time.Second, 2},
	}
	for _, c := range cases {
		p, ok := policies[c.stage]
		if !ok {
			t.Fatalf("no default policy for stage %s", c.stage)
		}
		if p.Timeout != c.timeout {
			t.Errorf("stage %s: expected timeout %s, got %s", c.stage, c.timeout, p.Timeout)
		}
		if p.MaxRetries != c.maxRetries {
			t.Errorf("stage %s: expected max retries %d, got %d", c.stage, c.maxRetries, p.MaxRetries)
		}
	}
}

func TestRunStageAdvancesJobState(t *testing.T) {
	m, store := newTestMachine(t)
	store.Put(&types.Job{JobID: "job-1", CurrentState: types.JobStatePlanning})

	m.RegisterStage(types.StagePlanning, func(ctx context.Context, job *types.Job) error {
		return nil
	})

	if err := m.RunStage(context.Background(), "job-1", types.StagePlanning); err != nil {
		t.Fatalf("RunStage: %v", err)
	}

	job, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.CurrentState != types.JobStateParsing {
		t.Fatalf("expected job to advance to PARSING, got %s", job.CurrentState)
	}
	if job.PreviousState != types.JobStatePlanning {
		t.Fatalf("expected PreviousState PLANNING, got %s", job.PreviousState)
	}
}

func TestRunStageRejectsWrongState(t *testing.T) {
	m, store := newTestMachine(t)
	store.Put(&types.Job{JobID: "job-2", CurrentState: types.JobStateUploaded})

	m.RegisterStage(types.StageParsing, func(ctx context.Context, job *types.Job) error {
		return nil
	})

	err := m.RunStage(context.Background(), "job-2", types.StageParsing)
	if err == nil {
		t.Fatal("expected an error for a stage run against a job in the wrong state")
	}
}

func TestRunStageRetriesThenFails(t *testing.T) {
	m, store := newTestMachine(t)
	store.Put(&types.Job{JobID: "job-3", CurrentState: types.JobStateEnriching})

	attempts := 0
	m.RegisterStage(types.StageEnriching, func(ctx context.Context, job *types.Job) error {
		attempts++
		return errors.New("upstream unavailable")
	})

	err := m.RunStage(context.Background(), "job-3", types.StageEnriching)
	if err == nil {
		t.Fatal("expected RunStage to return the final error")
	}

	policy := m.policies[types.StageEnriching]
	if attempts != policy.MaxRetries+1 {
		t.Fatalf("expected %d attempts, got %d", policy.MaxRetries+1, attempts)
	}

	job, err := store.GetJob(context.Background(), "job-3")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.CurrentState != types.JobStateFailed {
		t.Fatalf("expected job to be FAILED, got %s", job.CurrentState)
	}
}

func TestStageLockPreventsConcurrentRun(t *testing.T) {
	m, store := newTestMachine(t)
	store.Put(&types.Job{JobID: "job-4", CurrentState: types.JobStatePlanning})

	release := make(chan struct{})
	started := make(chan struct{})
	m.RegisterStage(types.StagePlanning, func(ctx context.Context, job *types.Job) error {
		close(started)
		<-release
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.RunStage(context.Background(), "job-4", types.StagePlanning)
	}()

	<-started
	lockKey := StageLock("job-4", string(types.StagePlanning))
	_, err := Acquire(context.Background(), m.redis, lockKey, time.Second)
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld while stage is running, got %v", err)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("RunStage: %v", err)
	}
}
