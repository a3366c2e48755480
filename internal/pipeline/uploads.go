package pipeline

import (
	"context"
	"encoding/json"

	"cloudcost/internal/cache"
	"cloudcost/internal/errors"
	"cloudcost/internal/executor"
)

// uploadTTLSeconds bounds how long a gateway-accepted upload waits for the
// orchestrator to hand it to the plan executor. A job that never leaves
// UPLOADED within this window loses its source files from the cache, same
// as any other stale intermediate artifact.
const uploadTTLSeconds = 86400

// UploadStore holds the raw Terraform source files a create_job call
// accepted, keyed by upload reference, so the gateway process that
// receives an upload and the orchestrator process that later runs PLANNING
// against it can share them without a direct call between processes.
type UploadStore struct {
	cache cache.Cache
}

// NewUploadStore wraps c as an upload-scoped file store.
func NewUploadStore(c cache.Cache) *UploadStore {
	return &UploadStore{cache: c}
}

func uploadKey(uploadReference string) string {
	return "pipeline/upload/" + uploadReference
}

// Put stores files under uploadReference.
func (s *UploadStore) Put(ctx context.Context, uploadReference string, files []executor.SourceFile) error {
	data, err := json.Marshal(files)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "encode uploaded source files", err)
	}
	return s.cache.Set(ctx, uploadKey(uploadReference), data, uploadTTLSeconds)
}

// Get returns the files stored under uploadReference.
func (s *UploadStore) Get(ctx context.Context, uploadReference string) ([]executor.SourceFile, error) {
	data, ok, err := s.cache.Get(ctx, uploadKey(uploadReference))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NotFound("upload", uploadReference)
	}
	var files []executor.SourceFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "decode uploaded source files", err)
	}
	return files, nil
}
