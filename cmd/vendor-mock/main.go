package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/vendormock"
	"github.com/cuongbtq/vendor-jobs/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultWebhook := os.Getenv("VENDOR_MOCK_WEBHOOK_URL")
	if defaultWebhook == "" {
		defaultWebhook = "http://localhost:8080/api/vendor-webhook/delayed-reply"
	}
	defaultAddr := os.Getenv("VENDOR_MOCK_ADDR")
	if defaultAddr == "" {
		defaultAddr = ":3001"
	}

	addr := flag.String("addr", defaultAddr, "Listen address")
	webhookURL := flag.String("webhook-url", defaultWebhook, "Callback URL for the delayed vendor")
	rateLimit := flag.Int("rate-limit", 5, "Requests per vendor per window")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	appLogger, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	if err != nil {
		return err
	}
	defer appLogger.Close()

	gin.SetMode(gin.ReleaseMode)
	mock := vendormock.NewServer(vendormock.Config{
		WebhookURL:       *webhookURL,
		RateLimit:        *rateLimit,
		RateWindow:       time.Minute,
		MinLatency:       time.Second,
		MaxLatency:       3 * time.Second,
		MinCallbackDelay: 3 * time.Second,
		MaxCallbackDelay: 7 * time.Second,
		Logger:           appLogger.Component("vendor-mock"),
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mock.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("Vendor mock is running",
		slog.String("address", *addr),
		slog.String("webhook_url", *webhookURL),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	mock.Wait()

	appLogger.Info("Vendor mock stopped")
	return nil
}
