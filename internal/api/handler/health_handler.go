package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

// HealthChecker is a dependency probed by the health endpoint
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports service health
type HealthHandler struct {
	logger  *slog.Logger
	service string
	checks  map[string]HealthChecker
}

// NewHealthHandler creates a health handler for service. Every named check
// must pass for the service to report healthy.
func NewHealthHandler(service string, checks map[string]HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		service: service,
		checks:  checks,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := gin.H{}
	for _, name := range names {
		if err := h.checks[name].HealthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("Health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": h.service,
			"checks":  failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.service,
	})
}
