package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cloudcost/core/types"
	"cloudcost/internal/errors"
)

// Store is the result store's full contract: a write-once record per
// result_id, read back by job, by id, or by project, with update/delete
// permanently closed off and every mutation audited. PostgresStore is the
// production implementation; ImmutableResultStore is a flat-file
// implementation of the same contract for local development and tests that
// don't want a live Postgres.
type Store interface {
	// Create persists result. A duplicate ResultID, or a duplicate JobID,
	// fails with errors.TypeConflict rather than overwriting anything.
	Create(ctx context.Context, result types.ImmutableCostResult) error

	// Update always fails with errors.TypeImmutabilityViolation: there is
	// no code path, SQL or otherwise, that can mutate a stored result.
	Update(ctx context.Context, result types.ImmutableCostResult) error

	// Delete always fails with errors.TypeImmutabilityViolation, for the
	// same reason as Update.
	Delete(ctx context.Context, resultID string) error

	GetByJobID(ctx context.Context, jobID string) (*types.ImmutableCostResult, error)
	GetByID(ctx context.Context, resultID string) (*types.ImmutableCostResult, error)
	ListByProject(ctx context.Context, projectID string, limit, offset int) ([]types.ImmutableCostResult, error)

	AppendAudit(ctx context.Context, entry types.AuditLogEntry) error
	AuditLog(ctx context.Context, jobID string) ([]types.AuditLogEntry, error)
}

// EvaluateGate runs gate against result's FCM, appends an audit entry
// recording the verdict, and returns the verdict. Every gate evaluation
// must go through here rather than calling gate.Evaluate directly, so the
// audit trail stays complete regardless of caller.
func EvaluateGate(ctx context.Context, s Store, gate *Gate, result types.ImmutableCostResult, actor string) (*types.PolicyVerdict, error) {
	verdict, err := gate.Evaluate(ctx, &result.FCM)
	if err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "policy gate evaluation failed", err)
	}

	severity := types.AuditSeverityInfo
	detail := "policy gate passed"
	if !verdict.Passed {
		severity = types.AuditSeverityWarning
		detail = "policy gate failed: " + joinViolations(verdict.Violations)
	}

	_ = s.AppendAudit(ctx, types.AuditLogEntry{
		EntryID:  uuid.NewString(),
		JobID:    result.JobID,
		ResultID: result.ResultID,
		Action:   "gate_evaluate",
		Actor:    actor,
		Severity:  severity,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})

	return verdict, nil
}

func joinViolations(violations []string) string {
	out := ""
	for i, v := range violations {
		if i > 0 {
			out += "; "
		}
		out += v
	}
	return out
}
