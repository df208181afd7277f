package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/jmoiron/sqlx"
)

// Schema is the bootstrap DDL for the jobs table
//
//go:embed schema.sql
var Schema string

const jobColumns = `request_id, payload, vendor, status, result, error, vendor_ref, created_at, updated_at, completed_at`

// JobStorage handles all database operations for jobs
type JobStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *sqlx.DB, logger *slog.Logger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// nullableJSON keeps lib/pq from sending []byte as bytea
func nullableJSON(data []byte) interface{} {
	if data == nil {
		return nil
	}
	return string(data)
}

// Create inserts a new job and fills in its timestamps
func (s *JobStorage) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (request_id, payload, vendor, status)
		VALUES ($1, $2::jsonb, $3, $4)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowxContext(ctx, query, job.RequestID, string(job.Payload), job.Vendor, job.Status).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to create job: %w", domain.ErrPersistence, err)
	}

	s.logger.Debug("Job created",
		slog.String("request_id", job.RequestID),
		slog.String("vendor", job.Vendor),
	)

	return nil
}

// GetByID retrieves a job by its request id
func (s *JobStorage) GetByID(ctx context.Context, requestID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE request_id = $1`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("%w: failed to get job: %w", domain.ErrPersistence, err)
	}

	return &job, nil
}

// List returns one page of jobs matching the filter, newest first
func (s *JobStorage) List(ctx context.Context, filter domain.JobFilter) (*domain.JobPage, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Vendor != "" {
		args = append(args, filter.Vendor)
		conditions = append(conditions, fmt.Sprintf("vendor = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM jobs`+where, args...); err != nil {
		return nil, fmt.Errorf("%w: failed to count jobs: %w", domain.ErrPersistence, err)
	}

	query := fmt.Sprintf(`SELECT %s FROM jobs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobColumns, where, len(args)+1, len(args)+2)
	pageArgs := append(args, filter.Limit, filter.Offset())

	jobs := []domain.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query, pageArgs...); err != nil {
		return nil, fmt.Errorf("%w: failed to list jobs: %w", domain.ErrPersistence, err)
	}

	return &domain.JobPage{
		Jobs:  jobs,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// MarkProcessing moves a pending job to processing
func (s *JobStorage) MarkProcessing(ctx context.Context, requestID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE request_id = $2
		  AND status = $3
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, domain.JobStatusProcessing, requestID, domain.JobStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotInState
		}
		return nil, fmt.Errorf("%w: failed to mark job processing: %w", domain.ErrPersistence, err)
	}

	return &job, nil
}

// Complete stores the result of a processing job
func (s *JobStorage) Complete(ctx context.Context, requestID string, result []byte) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    result = $2::jsonb,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE request_id = $3
		  AND status = $4
	`

	return s.execTransition(ctx, "complete", query,
		domain.JobStatusComplete, nullableJSON(result), requestID, domain.JobStatusProcessing)
}

// Fail records an error on a job that has not reached a terminal state
func (s *JobStorage) Fail(ctx context.Context, requestID, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE request_id = $3
		  AND status IN ($4, $5)
	`

	return s.execTransition(ctx, "fail", query,
		domain.JobStatusFailed, errMsg, requestID, domain.JobStatusPending, domain.JobStatusProcessing)
}

// SetVendorRef stores the correlation token acknowledged by a delayed vendor
func (s *JobStorage) SetVendorRef(ctx context.Context, requestID, vendorRef string) error {
	query := `
		UPDATE jobs
		SET vendor_ref = $1, updated_at = NOW()
		WHERE request_id = $2
		  AND status = $3
	`

	return s.execTransition(ctx, "set vendor ref on", query, vendorRef, requestID, domain.JobStatusProcessing)
}

func (s *JobStorage) execTransition(ctx context.Context, action, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to %s job: %w", domain.ErrPersistence, action, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to %s job: %w", domain.ErrPersistence, action, err)
	}
	if rows == 0 {
		return domain.ErrJobNotInState
	}

	return nil
}

// CompleteProcessingForVendor completes one processing job of the vendor.
// A job whose vendor_ref equals ref wins; otherwise the least recently
// updated processing job is taken.
func (s *JobStorage) CompleteProcessingForVendor(ctx context.Context, vendor, ref string, result []byte) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    result = $2::jsonb,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE request_id = (
			SELECT request_id FROM jobs
			WHERE vendor = $3
			  AND status = $4
			ORDER BY COALESCE(vendor_ref = $5, FALSE) DESC, updated_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		  AND status = $4
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStatusComplete, nullableJSON(result), vendor, domain.JobStatusProcessing, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoMatchingJob
		}
		return nil, fmt.Errorf("%w: failed to complete job for vendor: %w", domain.ErrPersistence, err)
	}

	s.logger.Info("Job completed by vendor callback",
		slog.String("request_id", job.RequestID),
		slog.String("vendor", vendor),
	)

	return &job, nil
}
