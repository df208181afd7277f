package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/cuongbtq/vendor-jobs/internal/metrics"
	"github.com/cuongbtq/vendor-jobs/internal/vendors"
)

// WebhookStore completes in-flight jobs from vendor callbacks
type WebhookStore interface {
	CompleteProcessingForVendor(ctx context.Context, vendor, ref string, result []byte) (*domain.Job, error)
}

// Correlator matches delayed vendor callbacks to processing jobs
type Correlator struct {
	store  WebhookStore
	logger *slog.Logger
}

// NewCorrelator creates a new Correlator
func NewCorrelator(store WebhookStore, logger *slog.Logger) *Correlator {
	return &Correlator{
		store:  store,
		logger: logger,
	}
}

// HandleWebhook normalizes a callback and completes one processing job of the
// vendor with it. The job whose vendor_ref equals the callback id is preferred.
func (c *Correlator) HandleWebhook(ctx context.Context, vendorID string, raw map[string]any) (*domain.Job, error) {
	if !domain.IsValidVendor(vendorID) {
		metrics.WebhooksTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, domain.ErrInvalidVendor
	}

	normalized := vendors.Normalize(raw)

	var result []byte
	if normalized != nil {
		var err error
		if result, err = json.Marshal(normalized); err != nil {
			return nil, fmt.Errorf("failed to marshal normalized result: %w", err)
		}
	}

	ref, _ := normalized["id"].(string)

	job, err := c.store.CompleteProcessingForVendor(ctx, vendorID, ref, result)
	if err != nil {
		if errors.Is(err, domain.ErrNoMatchingJob) {
			metrics.WebhooksTotal.WithLabelValues(vendorID, "unmatched").Inc()
			c.logger.Warn("No processing job found for vendor",
				slog.String("vendor", vendorID),
				slog.String("vendor_ref", ref),
			)
		}
		return nil, err
	}

	metrics.WebhooksTotal.WithLabelValues(vendorID, "matched").Inc()

	c.logger.Info("Webhook processed",
		slog.String("vendor", vendorID),
		slog.String("request_id", job.RequestID),
		slog.Bool("matched_by_ref", job.VendorRef != nil && ref != "" && *job.VendorRef == ref),
	)

	return job, nil
}
