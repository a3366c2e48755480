package httpapi

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cloudcost/core/types"
	"cloudcost/internal/errors"
	"cloudcost/internal/executor"
	"cloudcost/internal/pipeline"
	"cloudcost/internal/store"
)

// JobStore is the subset of orchestrator.MemStore's contract the gateway
// needs: create a job (idempotently) and read one back. *orchestrator.
// MemStore satisfies this without any adapter.
type JobStore interface {
	CreateJob(ctx context.Context, job *types.Job) (*types.Job, error)
	GetJob(ctx context.Context, jobID string) (*types.Job, error)
}

// JobService implements the create_job/get_job/get_result contract of
// spec §6, independent of any particular HTTP framing so it can be unit
// tested without a server.
type JobService struct {
	jobs    JobStore
	uploads *pipeline.UploadStore
	results store.Store
}

// NewJobService wires the gateway's domain logic to its backing stores.
func NewJobService(jobs JobStore, uploads *pipeline.UploadStore, results store.Store) *JobService {
	return &JobService{jobs: jobs, uploads: uploads, results: results}
}

// CreateJobRequest is create_job's input.
type CreateJobRequest struct {
	UploadReference string `json:"upload_reference" validate:"required"`
	Region          string `json:"region" validate:"required"`
	UsageProfile    string `json:"usage_profile" validate:"required"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

// CreateJob creates a new job for req, or returns the job already created
// for req.IdempotencyKey if one exists. The upload reference must already
// have been accepted via UploadFiles; CreateJob does not validate its
// contents, only that a job record can be created against it.
func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (*types.Job, error) {
	now := time.Now().UTC()
	job := &types.Job{
		JobID:          uuid.NewString(),
		UploadID:       req.UploadReference,
		IdempotencyKey: req.IdempotencyKey,
		CurrentState:   types.JobStateUploaded,
		CreatedAt:      now,
		UpdatedAt:      now,
		Metadata: map[string]string{
			"region":        req.Region,
			"usage_profile": req.UsageProfile,
		},
	}
	job.RefreshProgress()
	return s.jobs.CreateJob(ctx, job)
}

// GetJobResponse is get_job's output.
type GetJobResponse struct {
	JobID           string     `json:"job_id"`
	State           string     `json:"state"`
	ProgressPercent int        `json:"progress_percent"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ResultReference string     `json:"result_reference,omitempty"`
}

// GetJob returns job status in get_job's response shape.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*GetJobResponse, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, errors.NotFound("job", jobID)
	}
	return &GetJobResponse{
		JobID:           job.JobID,
		State:           job.CurrentState.String(),
		ProgressPercent: job.ProgressPercent,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		ResultReference: job.ResultReference,
	}, nil
}

// GetResult returns the FCM stored for jobID. Per spec §7, a job that has
// not completed (including FAILED) has no result to return and this is a
// 404, not a conflict: the result genuinely does not exist.
func (s *JobService) GetResult(ctx context.Context, jobID string) (*types.FCM, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, errors.NotFound("job", jobID)
	}
	if job.CurrentState != types.JobStateCompleted {
		return nil, errors.NotFound("cost_result", jobID)
	}
	result, err := s.results.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &result.FCM, nil
}

// UploadFiles accepts a set of Terraform source files ahead of create_job
// and returns the upload reference create_job's request expects. The
// literal external interfaces in spec §6 start from an already-uploaded
// reference; this is the ingestion step that produces one.
func (s *JobService) UploadFiles(ctx context.Context, files []executor.SourceFile) (string, error) {
	uploadReference := uuid.NewString()
	if err := s.uploads.Put(ctx, uploadReference, files); err != nil {
		return "", err
	}
	return uploadReference, nil
}
