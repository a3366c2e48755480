// Package types - Job and stage execution types
package types

import "time"

// JobState is a job's position in the orchestration state machine. The only
// legal transitions are UPLOADED -> PLANNING -> PARSING -> ENRICHING ->
// COSTING -> COMPLETED, with any non-terminal state able to transition to
// FAILED.
type JobState string

const (
	JobStateUploaded  JobState = "UPLOADED"
	JobStatePlanning  JobState = "PLANNING"
	JobStateParsing   JobState = "PARSING"
	JobStateEnriching JobState = "ENRICHING"
	JobStateCosting   JobState = "COSTING"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
)

// String returns the string representation
func (s JobState) String() string {
	return string(s)
}

// IsTerminal reports whether a job in this state will never transition again.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// jobTransitions enumerates the legal forward edges of the state machine.
var jobTransitions = map[JobState][]JobState{
	JobStateUploaded:  {JobStatePlanning, JobStateFailed},
	JobStatePlanning:  {JobStateParsing, JobStateFailed},
	JobStateParsing:   {JobStateEnriching, JobStateFailed},
	JobStateEnriching: {JobStateCosting, JobStateFailed},
	JobStateCosting:   {JobStateCompleted, JobStateFailed},
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s JobState) CanTransitionTo(next JobState) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Job is the durable record of one cost estimation run, identified by
// JobID and advanced by the orchestrator one stage at a time.
type Job struct {
	JobID      string `json:"job_id"`
	UploadID   string `json:"upload_id"`
	UserID     string `json:"user_id,omitempty"`
	Name       string `json:"name,omitempty"`

	CurrentState  JobState `json:"current_state"`
	PreviousState JobState `json:"previous_state,omitempty"`

	// IdempotencyKey lets a retried submission reuse an existing job
	// instead of starting a duplicate pipeline.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	RetryCount   int    `json:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty"`

	// PlanReference points to the plan document produced by the executor.
	PlanReference string `json:"plan_reference,omitempty"`

	// ResultReference points to the ImmutableCostResult once COSTING
	// completes.
	ResultReference string `json:"result_reference,omitempty"`

	// ProgressPercent gives callers a coarse sense of how far along a
	// running job is, derived from CurrentState.
	ProgressPercent int `json:"progress_percent"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// jobStateProgress maps each state to the progress percentage reported on
// entry to that state. Ranges per state (UPLOADED 0-10, PLANNING 10-20,
// PARSING 20-40, ENRICHING 40-60, COSTING 60-95, COMPLETED 100) are
// collapsed to their lower bound here since RefreshProgress is only called
// on state transitions, not mid-stage; progress is still monotonically
// non-decreasing across the pipeline. FAILED keeps whatever percent the job
// had reached in its previous state rather than jumping to 100, since a
// failed job did not finish.
var jobStateProgress = map[JobState]int{
	JobStateUploaded:  0,
	JobStatePlanning:  10,
	JobStateParsing:   20,
	JobStateEnriching: 40,
	JobStateCosting:   60,
	JobStateCompleted: 100,
}

// RefreshProgress sets ProgressPercent from CurrentState. FAILED is handled
// specially: it leaves ProgressPercent wherever it was, since the job's
// progress toward completion didn't advance by failing.
func (j *Job) RefreshProgress() {
	if j.CurrentState == JobStateFailed {
		return
	}
	j.ProgressPercent = jobStateProgress[j.CurrentState]
}

// StageName identifies one of the four pipeline stages an orchestrator runs.
type StageName string

const (
	StagePlanning  StageName = "PLANNING"
	StageParsing   StageName = "PARSING"
	StageEnriching StageName = "ENRICHING"
	StageCosting   StageName = "COSTING"
)

// StageExecution is the durable record of one attempt at one stage of one
// job, kept so a crashed orchestrator can resume instead of restarting the
// whole pipeline.
type StageExecution struct {
	JobID   string    `json:"job_id"`
	Stage   StageName `json:"stage"`
	Attempt int       `json:"attempt"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`

	// CorrelationID threads through logs for this single stage attempt.
	CorrelationID string `json:"correlation_id"`

	// LockHolder identifies the orchestrator instance that held the
	// distributed lock while this stage ran.
	LockHolder string `json:"lock_holder,omitempty"`
}

// StagePolicy configures timeout, retry, and locking behavior for one stage.
// The orchestrator holds one of these per StageName, sourced from config.
type StagePolicy struct {
	Stage StageName `json:"stage"`

	Timeout time.Duration `json:"timeout"`

	MaxRetries int           `json:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay"`

	LockTTL time.Duration `json:"lock_ttl"`
}
