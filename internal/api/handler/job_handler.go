package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/vendor-jobs/internal/api/dto"
	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/gin-gonic/gin"
)

// CreateJob handles POST /api/jobs
// Records a new job and queues it for dispatch
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	requestID, err := h.jobs.Submit(c.Request.Context(), req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPayloadRequired):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Payload is required",
			})
		case errors.Is(err, domain.ErrQueue):
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to queue job",
			})
		default:
			h.logger.Error("Failed to create job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create job",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.CreateJobResponse{RequestID: requestID})
}

// GetJobStatus handles GET /api/jobs/:request_id/status
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	requestID := c.Param("request_id")

	job, err := h.jobs.GetStatus(c.Request.Context(), requestID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequestID):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request ID format",
			})
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
		default:
			h.logger.Error("Failed to get job",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to get job status",
			})
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewJobStatusResponse(job))
}

// ListJobs handles GET /api/jobs
// Lists jobs with optional status/vendor filters and page/limit pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	page, err := h.jobs.ListJobs(c.Request.Context(), domain.JobFilter{
		Status: req.Status,
		Vendor: req.Vendor,
		Limit:  req.Limit,
		Page:   req.Page,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid status",
			})
		case errors.Is(err, domain.ErrInvalidVendor):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid vendor",
			})
		default:
			h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list jobs",
			})
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewListJobsResponse(page))
}
