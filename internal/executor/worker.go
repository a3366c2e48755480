package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"cloudcost/internal/errors"
)

// WorkerConfig configures one Worker process.
type WorkerConfig struct {
	ID string

	WorkspaceRoot     string
	MaxWorkspaceBytes int64
	PluginCacheDir    string
	TerraformPath     string

	StageTimeout     time.Duration
	WallClockTimeout time.Duration

	// PollTimeout bounds each BRPOPLPUSH call so the worker loop can
	// observe ctx cancellation between polls instead of blocking forever.
	PollTimeout time.Duration
}

// DefaultWorkerConfig returns conservative defaults for a single worker.
func DefaultWorkerConfig(id, workspaceRoot string) *WorkerConfig {
	return &WorkerConfig{
		ID:                id,
		WorkspaceRoot:     workspaceRoot,
		MaxWorkspaceBytes: 64 << 20,
		TerraformPath:     "terraform",
		StageTimeout:      5 * time.Minute,
		WallClockTimeout:  10 * time.Minute,
		PollTimeout:       5 * time.Second,
	}
}

// Worker drains the shared queue one submission at a time, running each
// through an isolated, scanned, credentialed, wall-clock-bounded Terraform
// invocation and recording the result back to the Store.
type Worker struct {
	config      *WorkerConfig
	queue       Queue
	store       Store
	scanner     *SecurityScanner
	credentials *CredentialResolver
}

// NewWorker builds a Worker. credentials may be nil if no submission this
// worker processes ever carries a credential_reference.
func NewWorker(config *WorkerConfig, queue Queue, store Store, credentials *CredentialResolver) *Worker {
	return &Worker{
		config:      config,
		queue:       queue,
		store:       store,
		scanner:     NewSecurityScanner(),
		credentials: credentials,
	}
}

// Run drains the queue until ctx is canceled, processing one submission to
// completion at a time.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		submission, err := w.queue.Dequeue(ctx, w.config.ID, w.config.PollTimeout)
		if err != nil {
			return err
		}
		if submission == nil {
			continue
		}

		w.process(ctx, *submission)
		_ = w.queue.Ack(ctx, w.config.ID, *submission)
	}
}

// process runs a single submission end to end, never returning an error
// directly: every failure mode is captured into the submission's Record so
// Service.Status/Result can report it, and the workspace is always
// destroyed on the way out, including if a stage panics.
func (w *Worker) process(parent context.Context, submission Submission) {
	executionID := submission.ExecutionID

	if cancel, err := w.store.CancelRequested(parent, executionID); err == nil && cancel {
		w.finish(parent, executionID, nil, StatusKilled, "", "canceled before execution began")
		return
	}

	startedAt := time.Now()
	if err := w.store.Put(parent, Record{ExecutionID: executionID, Status: StatusRunning, StartedAt: &startedAt}); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(parent, w.config.WallClockTimeout)
	defer cancel()

	var workspace *Workspace
	defer func() {
		if r := recover(); r != nil {
			workspace.Close()
			w.finish(parent, executionID, &startedAt, StatusFailed, FailureInternal, fmt.Sprintf("panic during execution: %v", r))
		}
	}()

	workspace, err := NewWorkspace(w.config.WorkspaceRoot, executionID)
	if err != nil {
		w.finish(parent, executionID, &startedAt, StatusFailed, FailureInternal, err.Error())
		return
	}
	defer workspace.Close()

	if err := workspace.WriteFiles(submission.Files); err != nil {
		w.finish(parent, executionID, &startedAt, StatusFailed, reasonFor(err), err.Error())
		return
	}

	if err := workspace.EnforceSizeCeiling(w.config.MaxWorkspaceBytes); err != nil {
		w.finish(parent, executionID, &startedAt, StatusFailed, FailureValidation, err.Error())
		return
	}

	report, err := w.scanner.Scan(workspace.Dir())
	if err != nil {
		w.finish(parent, executionID, &startedAt, StatusFailed, FailureSecurityViolation, err.Error())
		return
	}
	if !report.Clean() {
		w.finish(parent, executionID, &startedAt, StatusFailed, FailureSecurityViolation, describeViolations(report))
		return
	}

	env, err := w.resolveCredentials(ctx, submission.CredentialReference)
	if err != nil {
		w.finish(parent, executionID, &startedAt, StatusFailed, FailureSecurityViolation, err.Error())
		return
	}

	runnerConfig := &RunnerConfig{
		TerraformPath:  w.config.TerraformPath,
		WorkDir:        workspace.Dir(),
		PluginCacheDir: w.config.PluginCacheDir,
		Vars:           submission.Variables,
		ExtraEnv:       env,
		StageTimeout:   w.config.StageTimeout,
	}
	runner, err := NewRunner(runnerConfig)
	if err != nil {
		w.finish(parent, executionID, &startedAt, StatusFailed, FailureInternal, err.Error())
		return
	}

	if err := w.runStages(ctx, runner, workspace.Dir()); err != nil {
		if cancel, cerr := w.store.CancelRequested(parent, executionID); cerr == nil && cancel {
			w.finish(parent, executionID, &startedAt, StatusKilled, "", "canceled during execution")
			return
		}
		if ctx.Err() != nil {
			w.finish(parent, executionID, &startedAt, StatusTimeout, FailureTimeout, "execution exceeded wall-clock timeout")
			return
		}
		w.finish(parent, executionID, &startedAt, StatusFailed, FailureSubprocess, err.Error())
		return
	}

	planFile := filepath.Join(workspace.Dir(), "tfplan")
	doc, err := runner.ShowPlanJSON(ctx, planFile)
	if err != nil {
		w.finish(parent, executionID, &startedAt, StatusFailed, FailureSubprocess, err.Error())
		return
	}

	completedAt := time.Now()
	_ = w.store.Put(parent, Record{
		ExecutionID:  executionID,
		Status:       StatusCompleted,
		StartedAt:    &startedAt,
		CompletedAt:  &completedAt,
		DurationMS:   completedAt.Sub(startedAt).Milliseconds(),
		PlanDocument: doc,
	})
}

// runStages drives init, validate, and plan in sequence, stopping at the
// first failure; show is run separately by the caller since its output
// becomes the Record's PlanDocument rather than a pass/fail signal.
func (w *Worker) runStages(ctx context.Context, runner *Runner, workDir string) error {
	if err := runner.Init(ctx); err != nil {
		return err
	}
	if err := runner.Validate(ctx); err != nil {
		return err
	}
	return runner.Plan(ctx, filepath.Join(workDir, "tfplan"))
}

func (w *Worker) resolveCredentials(ctx context.Context, ref string) ([]string, error) {
	if ref == "" {
		return nil, nil
	}
	if w.credentials == nil {
		return nil, errors.Security("execution requested a credential_reference but this worker has no credential resolver configured")
	}
	return w.credentials.Env(ctx, ref)
}

func (w *Worker) finish(ctx context.Context, executionID string, startedAt *time.Time, status Status, reason FailureReason, message string) {
	completedAt := time.Now()
	record := Record{
		ExecutionID:  executionID,
		Status:       status,
		StartedAt:    startedAt,
		CompletedAt:  &completedAt,
		ErrorReason:  reason,
		ErrorMessage: message,
	}
	if startedAt != nil {
		record.DurationMS = completedAt.Sub(*startedAt).Milliseconds()
	}
	_ = w.store.Put(ctx, record)
}

// reasonFor classifies an error surfaced from workspace copy-in: a rejected
// path is a security violation, anything else is internal.
func reasonFor(err error) FailureReason {
	if errors.IsType(err, errors.TypeSecurityViolation) {
		return FailureSecurityViolation
	}
	return FailureInternal
}

func describeViolations(report *ScanReport) string {
	msg := ""
	for i, v := range report.Violations {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s:%d %s: %s", v.File, v.Line, v.Rule, v.Message)
	}
	return msg
}
