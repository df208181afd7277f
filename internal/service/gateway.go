// Package service holds the request-side logic of the API: job submission,
// status queries and vendor webhook correlation.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/cuongbtq/vendor-jobs/internal/metrics"
	"github.com/google/uuid"
)

// Listing limits
const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit within int
	MaxPage = math.MaxInt / MaxLimit
)

// queueFailureMessage is recorded on jobs whose queue entry could not be written
const queueFailureMessage = "failed to queue job"

// JobStore is the persistence used by the gateway
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, requestID string) (*domain.Job, error)
	List(ctx context.Context, filter domain.JobFilter) (*domain.JobPage, error)
	Fail(ctx context.Context, requestID, errMsg string) error
}

// Enqueuer accepts dispatch entries
type Enqueuer interface {
	Enqueue(ctx context.Context, entry *domain.QueueEntry) error
}

// Gateway validates, records and enqueues new jobs
type Gateway struct {
	store    JobStore
	queue    Enqueuer
	selector VendorSelector
	logger   *slog.Logger
}

// NewGateway creates a new Gateway
func NewGateway(store JobStore, queue Enqueuer, selector VendorSelector, logger *slog.Logger) *Gateway {
	if selector == nil {
		selector = RandomSelector{}
	}
	return &Gateway{
		store:    store,
		queue:    queue,
		selector: selector,
		logger:   logger,
	}
}

// Submit persists a pending job for payload and enqueues it for dispatch.
// When the enqueue fails the job is marked failed so it never lingers in pending.
func (g *Gateway) Submit(ctx context.Context, payload json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return "", domain.ErrPayloadRequired
	}

	job := &domain.Job{
		RequestID: uuid.New().String(),
		Payload:   payload,
		Vendor:    g.selector.Select(),
		Status:    domain.JobStatusPending,
	}

	if err := g.store.Create(ctx, job); err != nil {
		g.logger.Error("Failed to create job",
			slog.String("request_id", job.RequestID),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	entry := &domain.QueueEntry{
		RequestID: job.RequestID,
		Payload:   payload,
		Vendor:    job.Vendor,
	}

	if err := g.queue.Enqueue(ctx, entry); err != nil {
		g.logger.Error("Failed to enqueue job",
			slog.String("request_id", job.RequestID),
			slog.String("error", err.Error()),
		)

		if failErr := g.store.Fail(ctx, job.RequestID, queueFailureMessage); failErr != nil {
			g.logger.Error("Failed to mark unqueued job as failed",
				slog.String("request_id", job.RequestID),
				slog.String("error", failErr.Error()),
			)
		}

		if errors.Is(err, domain.ErrQueue) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrQueue, err)
	}

	metrics.JobsSubmittedTotal.WithLabelValues(job.Vendor).Inc()

	g.logger.Info("Job submitted",
		slog.String("request_id", job.RequestID),
		slog.String("vendor", job.Vendor),
	)

	return job.RequestID, nil
}

// GetStatus returns the job identified by requestID
func (g *Gateway) GetStatus(ctx context.Context, requestID string) (*domain.Job, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, domain.ErrInvalidRequestID
	}

	return g.store.GetByID(ctx, requestID)
}

// ListJobs returns one page of jobs. Limit defaults to DefaultLimit and is
// capped at MaxLimit; page defaults to 1 and is capped at MaxPage.
func (g *Gateway) ListJobs(ctx context.Context, filter domain.JobFilter) (*domain.JobPage, error) {
	if filter.Status != "" && !domain.IsValidStatus(filter.Status) {
		return nil, domain.ErrInvalidStatus
	}
	if filter.Vendor != "" && !domain.IsValidVendor(filter.Vendor) {
		return nil, domain.ErrInvalidVendor
	}

	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Page > MaxPage {
		filter.Page = MaxPage
	}

	return g.store.List(ctx, filter)
}
