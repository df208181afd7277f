package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory job store honouring the status guards of the SQL store
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	createErr error
	clock     time.Time
}

func newMemStore() *memStore {
	return &memStore{
		jobs:  map[string]*domain.Job{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.jobs[job.RequestID]; ok {
		return domain.ErrPersistence
	}
	now := s.tick()
	job.CreatedAt, job.UpdatedAt = now, now
	stored := *job
	s.jobs[job.RequestID] = &stored
	return nil
}

func (s *memStore) GetByID(_ context.Context, requestID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[requestID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	out := *job
	return &out, nil
}

func (s *memStore) List(_ context.Context, filter domain.JobFilter) (*domain.JobPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.Job
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Vendor != "" && job.Vendor != filter.Vendor {
			continue
		}
		matched = append(matched, *job)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return &domain.JobPage{
		Jobs:  append([]domain.Job{}, matched[start:end]...),
		Total: len(matched),
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *memStore) Fail(_ context.Context, requestID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[requestID]
	if !ok || domain.IsTerminalStatus(job.Status) {
		return domain.ErrJobNotInState
	}
	now := s.tick()
	job.Status = domain.JobStatusFailed
	job.Error = &errMsg
	job.UpdatedAt = now
	job.CompletedAt = &now
	return nil
}

func (s *memStore) setProcessing(requestID, vendorRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[requestID]
	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = s.tick()
	if vendorRef != "" {
		job.VendorRef = &vendorRef
	}
}

func (s *memStore) CompleteProcessingForVendor(_ context.Context, vendor, ref string, result []byte) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pick *domain.Job
	for _, job := range s.jobs {
		if job.Vendor != vendor || job.Status != domain.JobStatusProcessing {
			continue
		}
		if ref != "" && job.VendorRef != nil && *job.VendorRef == ref {
			pick = job
			break
		}
		if pick == nil || job.UpdatedAt.Before(pick.UpdatedAt) {
			pick = job
		}
	}
	if pick == nil {
		return nil, domain.ErrNoMatchingJob
	}

	now := s.tick()
	pick.Status = domain.JobStatusComplete
	pick.Result = result
	pick.UpdatedAt = now
	pick.CompletedAt = &now
	out := *pick
	return &out, nil
}

// memQueue records entries and can be told to fail
type memQueue struct {
	entries []*domain.QueueEntry
	err     error
}

func (q *memQueue) Enqueue(_ context.Context, entry *domain.QueueEntry) error {
	if q.err != nil {
		return q.err
	}
	q.entries = append(q.entries, entry)
	return nil
}

var errBoom = errors.New("boom")
