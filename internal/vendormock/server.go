// Package vendormock is a local stand-in for the immediate and delayed vendors.
package vendormock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Config holds the mock's behavior settings
type Config struct {
	WebhookURL string // callback target for the delayed vendor

	RateLimit  int
	RateWindow time.Duration

	MinLatency time.Duration
	MaxLatency time.Duration

	MinCallbackDelay time.Duration
	MaxCallbackDelay time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Server serves both vendor endpoints
type Server struct {
	config  Config
	limiter *windowCounter
	client  *http.Client
	logger  *slog.Logger

	callbacks sync.WaitGroup
}

// NewServer creates a vendor mock
func NewServer(config Config) *Server {
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}
	if config.RateWindow <= 0 {
		config.RateWindow = time.Minute
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:  config,
		limiter: newWindowCounter(config.RateLimit, config.RateWindow),
		client:  client,
		logger:  logger,
	}
}

// Router builds the gin engine exposing the vendor endpoints
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)
	r.POST("/"+domain.VendorImmediateReply, s.rateLimited(domain.VendorImmediateReply), s.immediateReply)
	r.POST("/"+domain.VendorDelayedReply, s.rateLimited(domain.VendorDelayedReply), s.delayedReply)

	return r
}

// Wait blocks until every scheduled callback has been sent or abandoned
func (s *Server) Wait() {
	s.callbacks.Wait()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "vendor-mock",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) rateLimited(vendor string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.allow(vendor, time.Now()) {
			s.logger.Warn("Rate limit exceeded", slog.String("vendor", vendor))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"retryAfter": int(s.config.RateWindow / time.Second),
			})
			return
		}
		c.Next()
	}
}

func (s *Server) immediateReply(c *gin.Context) {
	var body any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	select {
	case <-time.After(jitter(s.config.MinLatency, s.config.MaxLatency)):
	case <-c.Request.Context().Done():
		return
	}

	c.JSON(http.StatusOK, rawResponse(uuid.NewString(), body, domain.VendorImmediateReply, false))
}

type delayedRequest struct {
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *Server) delayedReply(c *gin.Context) {
	var req delayedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	jobID := uuid.NewString()
	c.JSON(http.StatusOK, gin.H{
		"job_id":               jobID,
		"status":               "accepted",
		"estimated_completion": time.Now().Add(5 * time.Second).UTC().Format(time.RFC3339),
	})

	s.scheduleCallback(rawResponse(jobID, req, domain.VendorDelayedReply, true))
}

func (s *Server) scheduleCallback(response map[string]any) {
	if s.config.WebhookURL == "" {
		s.logger.Warn("No webhook URL configured, dropping callback", slog.Any("id", response["id"]))
		return
	}

	delay := jitter(s.config.MinCallbackDelay, s.config.MaxCallbackDelay)
	s.callbacks.Add(1)
	go func() {
		defer s.callbacks.Done()
		time.Sleep(delay)

		if err := s.sendCallback(context.Background(), response); err != nil {
			s.logger.Error("Failed to send webhook",
				slog.Any("id", response["id"]),
				slog.Any("error", err),
			)
		}
	}()
}

func (s *Server) sendCallback(ctx context.Context, response map[string]any) error {
	body, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post callback: %w", err)
	}
	defer resp.Body.Close()

	s.logger.Info("Webhook delivered",
		slog.Any("id", response["id"]),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

// rawResponse builds the unnormalized vendor document
func rawResponse(id string, data any, source string, withAdditional bool) map[string]any {
	rawData := map[string]any{
		"user_email":   "user@example.com",
		"phone_number": "+1234567890",
		"address":      "  123 Main St, City, State 12345  ",
		"preferences":  []string{"pref1", "pref2", "pref3"},
	}
	if withAdditional {
		rawData["additional_data"] = map[string]any{
			"credit_score":  750,
			"last_purchase": "2023-12-01",
		}
	}

	return map[string]any{
		"id":        id,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"source":    source,
		"raw_data":  rawData,
	}
}

func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}
