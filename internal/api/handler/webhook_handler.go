package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/vendor-jobs/internal/api/dto"
	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/gin-gonic/gin"
)

// HandleVendorWebhook handles POST /api/vendor-webhook/:vendor
// Completes the processing job the vendor callback belongs to
func (h *WebhookHandler) HandleVendorWebhook(c *gin.Context) {
	vendor := c.Param("vendor")
	if !domain.IsValidVendor(vendor) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid vendor",
		})
		return
	}

	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		h.logger.Warn("Invalid webhook payload", slog.String("vendor", vendor))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid webhook payload",
		})
		return
	}

	if _, err := h.webhooks.HandleWebhook(c.Request.Context(), vendor, raw); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidVendor):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid vendor",
			})
		case errors.Is(err, domain.ErrNoMatchingJob):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No processing job found for this vendor",
			})
		default:
			h.logger.Error("Failed to process webhook",
				slog.String("vendor", vendor),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to process webhook",
			})
		}
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Status:  "success",
		Message: "Webhook processed successfully",
	})
}
