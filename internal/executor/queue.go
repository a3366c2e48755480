package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"cloudcost/internal/errors"
)

// queueKey is the Redis list workers BRPOPLPUSH against.
const queueKey = "cloudcost:executor:queue"

// processingKeyFor is the per-worker "in flight" list BRPOPLPUSH moves an
// item into atomically, so a worker that dies mid-execution leaves its
// claimed submission recoverable rather than silently dropped.
func processingKeyFor(workerID string) string {
	return "cloudcost:executor:processing:" + workerID
}

// Queue is the FIFO a Service enqueues submissions onto and a Worker
// consumes from, one execution at a time, in submission order.
type Queue interface {
	Enqueue(ctx context.Context, submission Submission) error
	Dequeue(ctx context.Context, workerID string, block time.Duration) (*Submission, error)
	Ack(ctx context.Context, workerID string, submission Submission) error
}

// RedisQueue implements Queue as a single Redis list, consumed with
// BRPOPLPUSH so a crashed worker's claimed-but-unfinished submission stays
// visible on its processing list instead of vanishing.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue wraps client as a Queue.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Enqueue pushes submission onto the tail of the shared queue.
func (q *RedisQueue) Enqueue(ctx context.Context, submission Submission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "marshal submission", err)
	}
	if err := q.client.LPush(ctx, queueKey, payload).Err(); err != nil {
		return errors.Wrap(errors.TypeUpstreamUnavailable, "enqueue submission", err)
	}
	return nil
}

// Dequeue blocks up to block (0 means indefinitely) for a submission,
// atomically moving it onto workerID's processing list. It returns (nil,
// nil) on a timeout with nothing available, not an error.
func (q *RedisQueue) Dequeue(ctx context.Context, workerID string, block time.Duration) (*Submission, error) {
	payload, err := q.client.BRPopLPush(ctx, queueKey, processingKeyFor(workerID), block).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.TypeUpstreamUnavailable, "dequeue submission", err)
	}
	var submission Submission
	if err := json.Unmarshal([]byte(payload), &submission); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "unmarshal submission", err)
	}
	return &submission, nil
}

// Ack removes submission from workerID's processing list once it has
// reached a terminal state, so a restarted worker never replays it.
func (q *RedisQueue) Ack(ctx context.Context, workerID string, submission Submission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "marshal submission", err)
	}
	if err := q.client.LRem(ctx, processingKeyFor(workerID), 1, payload).Err(); err != nil {
		return errors.Wrap(errors.TypeUpstreamUnavailable, "ack submission", err)
	}
	return nil
}
