package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
)

type CreateJobRequest struct {
	Payload json.RawMessage `json:"payload"`
}

type CreateJobResponse struct {
	RequestID string `json:"request_id"`
}

type ListJobsRequest struct {
	Status string `form:"status"`
	Vendor string `form:"vendor"`
	Limit  int    `form:"limit" binding:"omitempty,min=1"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO   `json:"jobs"`
	Pagination Pagination `json:"pagination"`
}

// JobStatusResponse carries result only for complete jobs and error only for failed ones
type JobStatusResponse struct {
	Status      string          `json:"status"`
	RequestID   string          `json:"request_id"`
	Vendor      string          `json:"vendor"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CompletedAt *string         `json:"completed_at,omitempty"`
}

type JobDTO struct {
	RequestID   string          `json:"request_id"`
	Vendor      string          `json:"vendor"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Result      json.RawMessage `json:"result"`
	Error       *string         `json:"error"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	CompletedAt *string         `json:"completed_at"`
}

type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func rawJSON(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

// NewJobStatusResponse maps a job to its status view
func NewJobStatusResponse(job *domain.Job) JobStatusResponse {
	resp := JobStatusResponse{
		Status:    job.Status,
		RequestID: job.RequestID,
		Vendor:    job.Vendor,
		CreatedAt: *formatTime(&job.CreatedAt),
		UpdatedAt: *formatTime(&job.UpdatedAt),
	}

	switch job.Status {
	case domain.JobStatusComplete:
		resp.Result = rawJSON(job.Result)
		resp.CompletedAt = formatTime(job.CompletedAt)
	case domain.JobStatusFailed:
		resp.Error = job.Error
		resp.CompletedAt = formatTime(job.CompletedAt)
	}

	return resp
}

// NewJobDTO maps a job to its listing view
func NewJobDTO(job *domain.Job) JobDTO {
	return JobDTO{
		RequestID:   job.RequestID,
		Vendor:      job.Vendor,
		Status:      job.Status,
		Payload:     rawJSON(job.Payload),
		Result:      rawJSON(job.Result),
		Error:       job.Error,
		CreatedAt:   *formatTime(&job.CreatedAt),
		UpdatedAt:   *formatTime(&job.UpdatedAt),
		CompletedAt: formatTime(job.CompletedAt),
	}
}

// NewListJobsResponse maps a page of jobs
func NewListJobsResponse(page *domain.JobPage) ListJobsResponse {
	jobs := make([]JobDTO, len(page.Jobs))
	for i := range page.Jobs {
		jobs[i] = NewJobDTO(&page.Jobs[i])
	}

	return ListJobsResponse{
		Jobs: jobs,
		Pagination: Pagination{
			Page:  page.Page,
			Limit: page.Limit,
			Total: page.Total,
			Pages: page.Pages(),
		},
	}
}
