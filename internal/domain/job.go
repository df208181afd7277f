package domain

import (
	"encoding/json"
	"time"
)

// Job is the lifecycle record of a single vendor request.
// Payload and Result hold raw JSON documents; Result is nil until the job completes.
type Job struct {
	RequestID   string     `db:"request_id"`
	Payload     []byte     `db:"payload"`
	Vendor      string     `db:"vendor"`
	Status      string     `db:"status"`
	Result      []byte     `db:"result"`
	Error       *string    `db:"error"`
	VendorRef   *string    `db:"vendor_ref"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// QueueEntry is the dispatch reference pushed to the queue for a pending job
type QueueEntry struct {
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
	Vendor    string          `json:"vendor"`
}

// JobFilter narrows a job listing. Empty fields match everything.
type JobFilter struct {
	Status string
	Vendor string
	Limit  int
	Page   int
}

// Offset returns the number of rows skipped for the filter's page.
func (f JobFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// JobPage is one page of a filtered job listing
type JobPage struct {
	Jobs  []Job
	Total int
	Page  int
	Limit int
}

// Pages returns the number of pages needed to show Total jobs.
func (p JobPage) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
