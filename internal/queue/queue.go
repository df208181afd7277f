// Package queue holds the durable FIFO of dispatch entries between the API
// and the worker. Entries are consumed at most once.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
)

// Queue is an ordered, durable FIFO of QueueEntry values.
// Dequeue does not block and returns (nil, nil) when the queue is empty.
type Queue interface {
	Enqueue(ctx context.Context, entry *domain.QueueEntry) error
	Dequeue(ctx context.Context) (*domain.QueueEntry, error)
	Close() error
}

func encode(entry *domain.QueueEntry) ([]byte, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal queue entry: %w", err)
	}
	return body, nil
}

func decode(body []byte) (*domain.QueueEntry, error) {
	var entry domain.QueueEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}
	return &entry, nil
}
