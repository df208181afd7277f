package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
)

// JobService is the submission and query side of the API
type JobService interface {
	Submit(ctx context.Context, payload json.RawMessage) (string, error)
	GetStatus(ctx context.Context, requestID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter domain.JobFilter) (*domain.JobPage, error)
}

// WebhookService correlates vendor callbacks
type WebhookService interface {
	HandleWebhook(ctx context.Context, vendor string, raw map[string]any) (*domain.Job, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Jobs     JobService
	Webhooks WebhookService
	// HealthChecks are probed by GET /health, keyed by name
	HealthChecks map[string]HealthChecker
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// WebhookHandler handles vendor callbacks
type WebhookHandler struct {
	logger   *slog.Logger
	webhooks WebhookService
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	return &WebhookHandler{
		logger:   deps.Logger,
		webhooks: deps.Webhooks,
	}
}
