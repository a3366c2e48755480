package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"cloudcost/internal/errors"
)

// recordTTL bounds how long a terminal execution's record is kept around
// for callers to poll; executions are not meant to be a permanent archive,
// the plan document they produce is handed off to the interpreter well
// before this expires.
const recordTTL = 24 * time.Hour

func recordKey(executionID string) string {
	return "cloudcost:executor:record:" + executionID
}

func cancelKey(executionID string) string {
	return "cloudcost:executor:cancel:" + executionID
}

// Store is the durable home for execution Records, polled by Service.Status
// and Service.Result and written by the Worker as an execution progresses.
type Store interface {
	Put(ctx context.Context, record Record) error
	Get(ctx context.Context, executionID string) (*Record, error)
	RequestCancel(ctx context.Context, executionID string) error
	CancelRequested(ctx context.Context, executionID string) (bool, error)
}

// RedisStore implements Store as one JSON blob per execution, plus a
// separate cancellation flag key a running worker polls between stages.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client as a Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put writes (or overwrites) executionID's Record.
func (s *RedisStore) Put(ctx context.Context, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "marshal execution record", err)
	}
	if err := s.client.Set(ctx, recordKey(record.ExecutionID), payload, recordTTL).Err(); err != nil {
		return errors.Wrap(errors.TypeUpstreamUnavailable, "store execution record", err)
	}
	return nil
}

// Get reads back executionID's Record, or errors.TypeNotFound if no
// submission by that ID has ever been recorded.
func (s *RedisStore) Get(ctx context.Context, executionID string) (*Record, error) {
	payload, err := s.client.Get(ctx, recordKey(executionID)).Result()
	if err == redis.Nil {
		return nil, errors.NotFound("execution", executionID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.TypeUpstreamUnavailable, "fetch execution record", err)
	}
	var record Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "unmarshal execution record", err)
	}
	return &record, nil
}

// RequestCancel flags executionID for cancellation. A worker already
// running it observes this between stages and kills the subprocess tree; a
// worker that hasn't claimed it yet sees it before starting and exits
// straight to KILLED.
func (s *RedisStore) RequestCancel(ctx context.Context, executionID string) error {
	if err := s.client.Set(ctx, cancelKey(executionID), "1", recordTTL).Err(); err != nil {
		return errors.Wrap(errors.TypeUpstreamUnavailable, "request cancellation", err)
	}
	return nil
}

// CancelRequested reports whether RequestCancel has been called for
// executionID.
func (s *RedisStore) CancelRequested(ctx context.Context, executionID string) (bool, error) {
	n, err := s.client.Exists(ctx, cancelKey(executionID)).Result()
	if err != nil {
		return false, errors.Wrap(errors.TypeUpstreamUnavailable, "check cancellation", err)
	}
	return n > 0, nil
}
