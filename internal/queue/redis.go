package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisQueue stores entries in a Redis list: LPUSH on enqueue, RPOP on dequeue.
type RedisQueue struct {
	rdb    *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedisQueue creates a queue on the given list key
func NewRedisQueue(rdb *redis.Client, key string, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{
		rdb:    rdb,
		key:    key,
		logger: logger,
	}
}

// Enqueue appends an entry at the tail of the queue
func (q *RedisQueue) Enqueue(ctx context.Context, entry *domain.QueueEntry) error {
	body, err := encode(entry)
	if err != nil {
		return err
	}

	if err := q.rdb.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("%w: failed to push entry: %w", domain.ErrQueue, err)
	}

	q.logger.Debug("Entry enqueued",
		slog.String("queue", q.key),
		slog.String("request_id", entry.RequestID),
	)
	return nil
}

// Dequeue pops the oldest entry
func (q *RedisQueue) Dequeue(ctx context.Context) (*domain.QueueEntry, error) {
	body, err := q.rdb.RPop(ctx, q.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to pop entry: %w", domain.ErrQueue, err)
	}

	return decode(body)
}

// Len returns the number of entries waiting
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read queue length: %w", domain.ErrQueue, err)
	}
	return n, nil
}

// Close is a no-op; the Redis client is owned by the caller
func (q *RedisQueue) Close() error {
	return nil
}
