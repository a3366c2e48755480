// Package pipeline assembles the plan interpreter, metadata resolver,
// usage modeler, and cost engine into the four stage functions the
// orchestrator state machine drives a job through. A StageFunc only
// carries a *types.Job, so the graph each stage hands to the next
// (NRG -> ERG -> UARG) is not passed in memory: it is marshaled and put in
// the same layered cache C1 already built for pricing/metadata lookups,
// keyed by job ID and stage, and picked back up by the next stage.
package pipeline

import (
	"context"
	"encoding/json"

	"cloudcost/internal/cache"
	"cloudcost/internal/errors"
)

// artifactTTLSeconds bounds how long an intermediate graph survives in the
// cache. A job that stalls between stages for longer than this loses its
// artifact and fails the next stage with a not-found error rather than
// hanging forever on a key that will never be written to again.
const artifactTTLSeconds = 3600

// ArtifactStore persists the JSON-encoded intermediate graph between two
// sequential stage invocations of one job's pipeline.
type ArtifactStore struct {
	cache cache.Cache
}

// NewArtifactStore wraps c as a job-scoped artifact store.
func NewArtifactStore(c cache.Cache) *ArtifactStore {
	return &ArtifactStore{cache: c}
}

func artifactKey(jobID, stage string) string {
	return "pipeline/artifact/" + jobID + "/" + stage
}

// Put marshals v and stores it under jobID/stage.
func (s *ArtifactStore) Put(ctx context.Context, jobID, stage string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "encode pipeline artifact", err)
	}
	return s.cache.Set(ctx, artifactKey(jobID, stage), data, artifactTTLSeconds)
}

// Get unmarshals the artifact stored under jobID/stage into v. A missing
// artifact is reported as errors.TypeNotFound so a stage func can tell a
// genuinely absent predecessor apart from a decode failure.
func (s *ArtifactStore) Get(ctx context.Context, jobID, stage string, v interface{}) error {
	data, ok, err := s.cache.Get(ctx, artifactKey(jobID, stage))
	if err != nil {
		return err
	}
	if !ok {
		return errors.NotFound("pipeline_artifact", jobID+"/"+stage)
	}
	return json.Unmarshal(data, v)
}

// Delete removes the artifact stored under jobID/stage, if any.
func (s *ArtifactStore) Delete(ctx context.Context, jobID, stage string) error {
	return s.cache.Delete(ctx, artifactKey(jobID, stage))
}
