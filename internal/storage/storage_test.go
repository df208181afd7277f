package storage

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/cuongbtq/vendor-jobs/shared/postgresql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestStorage starts a disposable PostgreSQL container and applies the schema.
func newTestStorage(t *testing.T) *JobStorage {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "jobs",
				"POSTGRES_PASSWORD": "jobs",
				"POSTGRES_DB":       "jobs_db",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := postgresql.NewClient(&postgresql.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "jobs",
		Password: "jobs",
		Database: "jobs_db",
		SSLMode:  "disable",
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	// both services bootstrap the schema on startup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- client.EnsureSchema(ctx, Schema) }()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	require.NoError(t, client.HealthCheck(ctx))

	return NewJobStorage(client.GetDB(), logger)
}

func truncate(t *testing.T, s *JobStorage) {
	t.Helper()
	_, err := s.db.Exec(`TRUNCATE jobs`)
	require.NoError(t, err)
}

func createJob(t *testing.T, s *JobStorage, vendor string) *domain.Job {
	t.Helper()

	job := &domain.Job{
		RequestID: uuid.New().String(),
		Payload:   []byte(`{"customer":"c-1"}`),
		Vendor:    vendor,
		Status:    domain.JobStatusPending,
	}
	require.NoError(t, s.Create(context.Background(), job))
	return job
}

func TestJobStorage(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		truncate(t, s)
		job := createJob(t, s, domain.VendorImmediateReply)
		assert.False(t, job.CreatedAt.IsZero())

		got, err := s.GetByID(ctx, job.RequestID)
		require.NoError(t, err)
		assert.Equal(t, job.RequestID, got.RequestID)
		assert.Equal(t, domain.JobStatusPending, got.Status)
		assert.JSONEq(t, `{"customer":"c-1"}`, string(got.Payload))
		assert.Nil(t, got.Result)
		assert.Nil(t, got.Error)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("get missing job", func(t *testing.T) {
		_, err := s.GetByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("duplicate request id", func(t *testing.T) {
		truncate(t, s)
		job := createJob(t, s, domain.VendorImmediateReply)
		dup := *job
		err := s.Create(ctx, &dup)
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})

	t.Run("immediate lifecycle", func(t *testing.T) {
		truncate(t, s)
		job := createJob(t, s, domain.VendorImmediateReply)

		claimed, err := s.MarkProcessing(ctx, job.RequestID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, claimed.Status)

		_, err = s.MarkProcessing(ctx, job.RequestID)
		assert.ErrorIs(t, err, domain.ErrJobNotInState)

		require.NoError(t, s.Complete(ctx, job.RequestID, []byte(`{"id":"r-1"}`)))

		got, err := s.GetByID(ctx, job.RequestID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusComplete, got.Status)
		assert.JSONEq(t, `{"id":"r-1"}`, string(got.Result))
		require.NotNil(t, got.CompletedAt)

		// terminal states are final
		assert.ErrorIs(t, s.Fail(ctx, job.RequestID, "late"), domain.ErrJobNotInState)
		assert.ErrorIs(t, s.Complete(ctx, job.RequestID, []byte(`{}`)), domain.ErrJobNotInState)
	})

	t.Run("fail pending job", func(t *testing.T) {
		truncate(t, s)
		job := createJob(t, s, domain.VendorDelayedReply)

		require.NoError(t, s.Fail(ctx, job.RequestID, "failed to queue job"))

		got, err := s.GetByID(ctx, job.RequestID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
		require.NotNil(t, got.Error)
		assert.Equal(t, "failed to queue job", *got.Error)
		assert.NotNil(t, got.CompletedAt)
		assert.Nil(t, got.Result)
	})

	t.Run("complete requires processing", func(t *testing.T) {
		truncate(t, s)
		job := createJob(t, s, domain.VendorImmediateReply)
		assert.ErrorIs(t, s.Complete(ctx, job.RequestID, []byte(`{}`)), domain.ErrJobNotInState)
	})

	t.Run("list filters and pages", func(t *testing.T) {
		truncate(t, s)
		for i := 0; i < 3; i++ {
			createJob(t, s, domain.VendorImmediateReply)
		}
		for i := 0; i < 2; i++ {
			createJob(t, s, domain.VendorDelayedReply)
		}

		page, err := s.List(ctx, domain.JobFilter{Limit: 2, Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		assert.Len(t, page.Jobs, 2)
		assert.Equal(t, 3, page.Pages())
		assert.False(t, page.Jobs[0].CreatedAt.Before(page.Jobs[1].CreatedAt))

		page, err = s.List(ctx, domain.JobFilter{Limit: 2, Page: 3})
		require.NoError(t, err)
		assert.Len(t, page.Jobs, 1)

		page, err = s.List(ctx, domain.JobFilter{Vendor: domain.VendorDelayedReply, Limit: 10, Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)

		page, err = s.List(ctx, domain.JobFilter{Status: domain.JobStatusComplete, Limit: 10, Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
		assert.NotNil(t, page.Jobs)
		assert.Empty(t, page.Jobs)

		page, err = s.List(ctx, domain.JobFilter{Limit: 100, Page: math.MaxInt / 100})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		assert.Empty(t, page.Jobs)
	})

	t.Run("webhook completes by vendor ref", func(t *testing.T) {
		truncate(t, s)
		older := createJob(t, s, domain.VendorDelayedReply)
		target := createJob(t, s, domain.VendorDelayedReply)

		_, err := s.MarkProcessing(ctx, older.RequestID)
		require.NoError(t, err)
		_, err = s.MarkProcessing(ctx, target.RequestID)
		require.NoError(t, err)
		require.NoError(t, s.SetVendorRef(ctx, target.RequestID, "vendor-job-7"))

		result, _ := json.Marshal(map[string]any{"id": "vendor-job-7"})
		done, err := s.CompleteProcessingForVendor(ctx, domain.VendorDelayedReply, "vendor-job-7", result)
		require.NoError(t, err)
		assert.Equal(t, target.RequestID, done.RequestID)
		assert.Equal(t, domain.JobStatusComplete, done.Status)

		got, err := s.GetByID(ctx, older.RequestID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, got.Status)
	})

	t.Run("webhook falls back to oldest processing job", func(t *testing.T) {
		truncate(t, s)
		first := createJob(t, s, domain.VendorDelayedReply)
		second := createJob(t, s, domain.VendorDelayedReply)
		other := createJob(t, s, domain.VendorImmediateReply)

		for _, j := range []*domain.Job{first, second, other} {
			_, err := s.MarkProcessing(ctx, j.RequestID)
			require.NoError(t, err)
		}

		done, err := s.CompleteProcessingForVendor(ctx, domain.VendorDelayedReply, "unknown", []byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, first.RequestID, done.RequestID)

		done, err = s.CompleteProcessingForVendor(ctx, domain.VendorDelayedReply, "", []byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, second.RequestID, done.RequestID)

		_, err = s.CompleteProcessingForVendor(ctx, domain.VendorDelayedReply, "", []byte(`{}`))
		assert.ErrorIs(t, err, domain.ErrNoMatchingJob)

		got, err := s.GetByID(ctx, other.RequestID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, got.Status)
	})

	t.Run("webhook ignores pending jobs", func(t *testing.T) {
		truncate(t, s)
		createJob(t, s, domain.VendorDelayedReply)

		_, err := s.CompleteProcessingForVendor(ctx, domain.VendorDelayedReply, "", []byte(`{}`))
		assert.ErrorIs(t, err, domain.ErrNoMatchingJob)
	})
}
