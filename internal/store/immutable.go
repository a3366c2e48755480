// Package store provides the write-once result store and append-only audit
// log. Once a cost result is written, it can NEVER be overwritten: a second
// write with the same ResultID is rejected rather than silently merged.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cloudcost/core/types"
	"cloudcost/internal/errors"
)

// ImmutableResultStore is a flat-file implementation of Store, for local
// development and tests that don't want a live Postgres. Results are
// content-hashed and written read-only; the audit log is append-only and
// never rewritten in place.
type ImmutableResultStore struct {
	mu       sync.RWMutex
	basePath string

	index     map[string]*resultMetadata
	byJob     map[string][]string
	byProject map[string][]string
	auditPath string
}

type resultMetadata struct {
	ResultID    string    `json:"result_id"`
	JobID       string    `json:"job_id"`
	ProjectID   string    `json:"project_id"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	FilePath    string    `json:"file_path"`
}

// NewImmutableResultStore creates a store rooted at basePath, creating the
// results and audit-log directories if they don't exist.
func NewImmutableResultStore(basePath string) (*ImmutableResultStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create result store directory: %w", err)
	}

	s := &ImmutableResultStore{
		basePath:  basePath,
		index:     make(map[string]*resultMetadata),
		byJob:     make(map[string][]string),
		byProject: make(map[string][]string),
		auditPath: filepath.Join(basePath, "audit.jsonl"),
	}

	if err := s.loadIndex(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load result index: %w", err)
	}
	if s.byProject == nil {
		s.byProject = make(map[string][]string)
	}

	return s, nil
}

// Create writes a result. It fails with errors.TypeConflict if a result
// with the same ResultID, or the same JobID, already exists.
func (s *ImmutableResultStore) Create(ctx context.Context, result types.ImmutableCostResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[result.ResultID]; exists {
		return errors.Conflict("a result with this result_id already exists")
	}
	if existing := s.byJob[result.JobID]; len(existing) > 0 {
		return errors.Conflict("a result for this job_id already exists")
	}

	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cost result: %w", err)
	}

	sum := sha256.Sum256(data)
	hashStr := hex.EncodeToString(sum[:])

	filename := fmt.Sprintf("%s_%s.json", result.ResultID, hashStr[:8])
	filePath := filepath.Join(s.basePath, filename)

	if _, err := os.Stat(filePath); err == nil {
		return errors.Conflict("a result with this result_id already exists")
	}

	if err := os.WriteFile(filePath, data, 0444); err != nil {
		return fmt.Errorf("write cost result: %w", err)
	}

	meta := &resultMetadata{
		ResultID:    result.ResultID,
		JobID:       result.JobID,
		ProjectID:   result.ProjectID,
		ContentHash: hashStr,
		CreatedAt:   result.CreatedAt,
		FilePath:    filePath,
	}
	s.index[result.ResultID] = meta
	s.byJob[result.JobID] = append(s.byJob[result.JobID], result.ResultID)
	s.byProject[result.ProjectID] = append(s.byProject[result.ProjectID], result.ResultID)

	if err := s.saveIndex(); err != nil {
		return err
	}

	return s.appendAuditLocked(types.AuditLogEntry{
		EntryID:   uuid.NewString(),
		JobID:     result.JobID,
		ResultID:  result.ResultID,
		Action:    "create",
		Severity:  types.AuditSeverityInfo,
		Detail:    "cost result created",
		Timestamp: result.CreatedAt,
	})
}

// Update always fails: this store never overwrites a result file once
// written.
func (s *ImmutableResultStore) Update(ctx context.Context, result types.ImmutableCostResult) error {
	return errors.New(errors.TypeImmutabilityViolation, "cost results cannot be updated once created")
}

// Delete always fails: this store never removes a result file once
// written.
func (s *ImmutableResultStore) Delete(ctx context.Context, resultID string) error {
	return errors.New(errors.TypeImmutabilityViolation, "cost results cannot be deleted once created")
}

// GetByJobID returns the one result created for jobID, if any.
func (s *ImmutableResultStore) GetByJobID(ctx context.Context, jobID string) (*types.ImmutableCostResult, error) {
	s.mu.RLock()
	ids := s.byJob[jobID]
	s.mu.RUnlock()
	if len(ids) == 0 {
		return nil, errors.NotFound("cost_result", jobID)
	}
	return s.GetByID(ctx, ids[len(ids)-1])
}

// ListByProject returns up to limit results for projectID, newest first,
// starting after offset.
func (s *ImmutableResultStore) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]types.ImmutableCostResult, error) {
	s.mu.RLock()
	ids := make([]string, len(s.byProject[projectID]))
	copy(ids, s.byProject[projectID])
	metaByID := make(map[string]*resultMetadata, len(ids))
	for _, id := range ids {
		metaByID[id] = s.index[id]
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		return metaByID[ids[i]].CreatedAt.After(metaByID[ids[j]].CreatedAt)
	})

	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	out := make([]types.ImmutableCostResult, 0, len(ids))
	for _, id := range ids {
		result, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *result)
	}
	return out, nil
}

// GetByID retrieves a result by ID, verifying its content hash first.
func (s *ImmutableResultStore) GetByID(ctx context.Context, resultID string) (*types.ImmutableCostResult, error) {
	s.mu.RLock()
	meta, ok := s.index[resultID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("cost_result", resultID)
	}

	data, err := os.ReadFile(meta.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read cost result: %w", err)
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != meta.ContentHash {
		return nil, errors.Newf(errors.TypeInternal, "cost result %s hash mismatch: data may be corrupted", resultID)
	}

	var result types.ImmutableCostResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal cost result: %w", err)
	}
	return &result, nil
}

// ResultsForJob lists result IDs recorded against a job, in write order.
func (s *ImmutableResultStore) ResultsForJob(jobID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.byJob[jobID]))
	copy(out, s.byJob[jobID])
	return out
}

// VerifyIntegrity recomputes every stored result's hash and reports any
// mismatch or missing file.
func (s *ImmutableResultStore) VerifyIntegrity() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var corrupted []string
	for id, meta := range s.index {
		data, err := os.ReadFile(meta.FilePath)
		if err != nil {
			corrupted = append(corrupted, fmt.Sprintf("%s: file missing", id))
			continue
		}
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != meta.ContentHash {
			corrupted = append(corrupted, fmt.Sprintf("%s: hash mismatch", id))
		}
	}
	return corrupted, nil
}

// AppendAudit appends an entry to the audit log. Audit log entries are
// never edited or removed, only appended, one JSON object per line.
func (s *ImmutableResultStore) AppendAudit(ctx context.Context, entry types.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendAuditLocked(entry)
}

func (s *ImmutableResultStore) appendAuditLocked(entry types.AuditLogEntry) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(s.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// AuditLog reads the append-only audit log in write order. An empty jobID
// returns every entry; otherwise only entries recorded against that job.
func (s *ImmutableResultStore) AuditLog(ctx context.Context, jobID string) ([]types.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.auditPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	var entries []types.AuditLogEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var e types.AuditLogEntry
		err := dec.Decode(&e)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode audit log: %w", err)
		}
		if jobID != "" && e.JobID != jobID {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *ImmutableResultStore) loadIndex() error {
	indexPath := filepath.Join(s.basePath, "index.json")
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return err
	}

	var idx struct {
		Results   map[string]*resultMetadata `json:"results"`
		ByJob     map[string][]string        `json:"by_job"`
		ByProject map[string][]string        `json:"by_project"`
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return err
	}

	s.index = idx.Results
	s.byJob = idx.ByJob
	s.byProject = idx.ByProject
	if s.index == nil {
		s.index = make(map[string]*resultMetadata)
	}
	if s.byJob == nil {
		s.byJob = make(map[string][]string)
	}
	if s.byProject == nil {
		s.byProject = make(map[string][]string)
	}
	return nil
}

func (s *ImmutableResultStore) saveIndex() error {
	indexPath := filepath.Join(s.basePath, "index.json")

	idx := struct {
		Results   map[string]*resultMetadata `json:"results"`
		ByJob     map[string][]string        `json:"by_job"`
		ByProject map[string][]string        `json:"by_project"`
		UpdatedAt time.Time                  `json:"updated_at"`
	}{
		Results:   s.index,
		ByJob:     s.byJob,
		ByProject: s.byProject,
		UpdatedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}

	tempPath := indexPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, indexPath)
}
