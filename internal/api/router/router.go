package router

import (
	"github.com/cuongbtq/vendor-jobs/internal/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName is reported by the health endpoint
const ServiceName = "vendor-job-api"

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	healthHandler := handler.NewHealthHandler(ServiceName, deps.HealthChecks, deps.Logger)
	r.GET("/health", healthHandler.Health)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jobHandler := handler.NewJobHandler(deps)
	webhookHandler := handler.NewWebhookHandler(deps)

	api := r.Group("/api")
	{
		jobs := api.Group("/jobs")
		{
			// POST /api/jobs - Submit a job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/jobs/:request_id/status - Get job status
			jobs.GET("/:request_id/status", jobHandler.GetJobStatus)
		}

		// POST /api/vendor-webhook/:vendor - Delayed vendor callback
		api.POST("/vendor-webhook/:vendor", webhookHandler.HandleVendorWebhook)
	}

	return r
}
