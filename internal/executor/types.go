package executor

import (
	"time"

	"cloudcost/core/types"
)

// Status is an execution's position in the async submit/status/result/cancel
// contract. The only legal transitions are PENDING -> RUNNING -> one of
// {COMPLETED, FAILED, TIMEOUT, KILLED}; KILLED can also be forced directly
// from PENDING if a cancel arrives before a worker picks the job up.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusTimeout   Status = "TIMEOUT"
	StatusKilled    Status = "KILLED"
)

// IsTerminal reports whether s will never change again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusKilled:
		return true
	default:
		return false
	}
}

// FailureReason is the taxonomy of ways an execution can fail, reported in
// Record.ErrorReason so a caller can distinguish a bad submission from a
// sandbox problem from an infrastructure problem.
type FailureReason string

const (
	FailureSecurityViolation FailureReason = "security_violation"
	FailureValidation        FailureReason = "validation_failure"
	FailureTimeout           FailureReason = "timeout"
	FailureSubprocess        FailureReason = "subprocess_failure"
	FailureInternal          FailureReason = "internal_error"
)

// SourceFile is one file copied into a workspace at submission time, keyed
// by its path relative to the workspace root.
type SourceFile struct {
	Path     string `json:"path" validate:"required"`
	Contents []byte `json:"contents"`
}

// Submission is everything a worker needs to run one execution to
// completion, queued as a single unit of work.
type Submission struct {
	ExecutionID         string            `json:"execution_id"`
	Files               []SourceFile      `json:"files"`
	Variables           map[string]string `json:"variables,omitempty"`
	CredentialReference string            `json:"credential_reference,omitempty"`
	SubmittedAt         time.Time         `json:"submitted_at"`
}

// Record is the durable state of one execution, the thing status/result
// read back. PlanDocument is only populated once Status is COMPLETED.
type Record struct {
	ExecutionID string `json:"execution_id"`
	Status      Status `json:"status"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`

	ErrorReason  FailureReason `json:"error_reason,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`

	PlanDocument *types.PlanDocument `json:"plan_document,omitempty"`
}

// Result is the caller-facing view of a terminal execution, returned by
// Service.Result. It is only meaningful once Status.IsTerminal().
type Result struct {
	Status       Status              `json:"status"`
	PlanDocument *types.PlanDocument `json:"plan_document,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
}
