package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
)

// rabbitClient is the subset of the shared RabbitMQ client used by the queue
type rabbitClient interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
	Get() (body []byte, ok bool, err error)
	Close() error
}

// RabbitMQQueue publishes persistent messages and pulls them with basic.get
// in auto-ack mode, so a popped entry is never redelivered.
type RabbitMQQueue struct {
	client rabbitClient
	logger *slog.Logger
}

// NewRabbitMQQueue wraps a connected RabbitMQ client
func NewRabbitMQQueue(client rabbitClient, logger *slog.Logger) *RabbitMQQueue {
	return &RabbitMQQueue{
		client: client,
		logger: logger,
	}
}

// Enqueue publishes an entry
func (q *RabbitMQQueue) Enqueue(ctx context.Context, entry *domain.QueueEntry) error {
	body, err := encode(entry)
	if err != nil {
		return err
	}

	if err := q.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrQueue, err)
	}

	q.logger.Debug("Entry published",
		slog.String("request_id", entry.RequestID),
	)
	return nil
}

// Dequeue fetches the next entry if one is waiting
func (q *RabbitMQQueue) Dequeue(ctx context.Context) (*domain.QueueEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, ok, err := q.client.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueue, err)
	}
	if !ok {
		return nil, nil
	}

	return decode(body)
}

// Close closes the underlying connection
func (q *RabbitMQQueue) Close() error {
	return q.client.Close()
}
