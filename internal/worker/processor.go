package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/cuongbtq/vendor-jobs/internal/metrics"
	"github.com/cuongbtq/vendor-jobs/internal/vendors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// processEntry takes one queue entry through claim, rate limit, vendor call
// and status update. Failures are recorded on the job and never returned.
func (d *Dispatcher) processEntry(ctx context.Context, entry *domain.QueueEntry) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.Process", trace.WithAttributes(
		attribute.String("request_id", entry.RequestID),
		attribute.String("vendor", entry.Vendor),
	))
	defer span.End()

	logger := d.logger.With(
		slog.String("request_id", entry.RequestID),
		slog.String("vendor", entry.Vendor),
	)
	logger.Info("Processing job")

	// Step 1: Claim job (pending → processing)
	job, err := d.store.MarkProcessing(ctx, entry.RequestID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotInState) {
			logger.Warn("Job missing or not pending, dropping entry")
			metrics.JobsDispatchedTotal.WithLabelValues(entry.Vendor, metrics.OutcomeDropped).Inc()
			return
		}
		d.fail(ctx, span, logger, entry, fmt.Errorf("failed to claim job: %w", err))
		return
	}

	// Step 2: Wait for a rate limit slot
	if err := d.limiter.AwaitAcquire(ctx, entry.Vendor); err != nil {
		d.fail(ctx, span, logger, entry, err)
		return
	}

	// Step 3: Call the vendor
	adapter, err := d.adapters.Get(entry.Vendor)
	if err != nil {
		d.fail(ctx, span, logger, entry, err)
		return
	}

	payload := entry.Payload
	if len(payload) == 0 {
		payload = job.Payload
	}

	callCtx, cancel := context.WithTimeout(ctx, d.vendorTimeout)
	result, err := adapter.Call(callCtx, entry.RequestID, payload)
	cancel()
	if err != nil {
		d.fail(ctx, span, logger, entry, err)
		return
	}

	// Step 4: Record the outcome
	switch {
	case result.Final != nil:
		normalized, err := json.Marshal(vendors.Normalize(result.Final))
		if err != nil {
			d.fail(ctx, span, logger, entry, fmt.Errorf("failed to marshal result: %w", err))
			return
		}

		if err := d.store.Complete(ctx, entry.RequestID, normalized); err != nil {
			if errors.Is(err, domain.ErrJobNotInState) {
				logger.Warn("Job left processing before its result was recorded")
				span.RecordError(err)
				return
			}
			d.fail(ctx, span, logger, entry, fmt.Errorf("failed to record result: %w", err))
			return
		}

		metrics.JobsDispatchedTotal.WithLabelValues(entry.Vendor, metrics.OutcomeComplete).Inc()
		logger.Info("Job completed")

	case result.Ack != nil:
		logger.Info("Vendor acknowledged job",
			slog.String("vendor_job_id", result.Ack.JobID),
			slog.String("ack_status", result.Ack.Status),
			slog.String("estimated_completion", result.Ack.EstimatedCompletion),
		)

		if result.Ack.JobID != "" {
			if err := d.store.SetVendorRef(ctx, entry.RequestID, result.Ack.JobID); err != nil {
				logger.Warn("Failed to store vendor reference",
					slog.String("error", err.Error()),
				)
			}
		}

		metrics.JobsDispatchedTotal.WithLabelValues(entry.Vendor, metrics.OutcomeAcknowledged).Inc()

	default:
		d.fail(ctx, span, logger, entry, errors.New("vendor returned no result"))
	}
}

// fail marks the job failed with the error text
func (d *Dispatcher) fail(ctx context.Context, span trace.Span, logger *slog.Logger, entry *domain.QueueEntry, cause error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	logger.Error("Job processing failed",
		slog.String("error", cause.Error()),
	)

	metrics.JobsDispatchedTotal.WithLabelValues(entry.Vendor, metrics.OutcomeFailed).Inc()

	if err := d.store.Fail(ctx, entry.RequestID, cause.Error()); err != nil {
		logger.Error("Failed to update job status to failed",
			slog.String("error", err.Error()),
		)
	}
}
