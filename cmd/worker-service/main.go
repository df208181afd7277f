package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/api/handler"
	"github.com/cuongbtq/vendor-jobs/internal/config"
	"github.com/cuongbtq/vendor-jobs/internal/queue"
	"github.com/cuongbtq/vendor-jobs/internal/ratelimit"
	"github.com/cuongbtq/vendor-jobs/internal/storage"
	"github.com/cuongbtq/vendor-jobs/internal/tracing"
	"github.com/cuongbtq/vendor-jobs/internal/vendors"
	"github.com/cuongbtq/vendor-jobs/internal/worker"
	"github.com/cuongbtq/vendor-jobs/shared/logger"
	"github.com/cuongbtq/vendor-jobs/shared/postgresql"
	"github.com/cuongbtq/vendor-jobs/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	if cfg.Tracing.Enabled {
		shutdownTracer, err := tracing.InitTracer(cfg.Tracing.ServiceName, os.Stdout, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer shutdownTracer(context.Background())
	}

	dbClient, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, appLogger.Component("postgresql"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if err := dbClient.EnsureSchema(context.Background(), storage.Schema); err != nil {
		return err
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, appLogger.Component("redis"))
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redisClient.Close()

	jobQueue, err := queue.New(cfg, redisClient.GetClient(), appLogger.Component("queue"))
	if err != nil {
		return err
	}
	defer jobQueue.Close()

	limiter := ratelimit.NewLimiter(redisClient.GetClient(), ratelimit.Config{
		KeyPrefix:    cfg.RateLimit.KeyPrefix,
		MaxRequests:  cfg.RateLimit.MaxRequests,
		Window:       cfg.RateLimit.Window,
		PollInterval: cfg.RateLimit.PollInterval,
		MaxWait:      cfg.RateLimit.MaxWait,
	}, appLogger.Component("ratelimit"))

	httpClient := &http.Client{Timeout: cfg.Worker.VendorTimeout}
	adapters := vendors.NewRegistry(
		vendors.NewImmediateAdapter(cfg.Vendors.ImmediateURL, httpClient, appLogger.Component("vendor")),
		vendors.NewDelayedAdapter(cfg.Vendors.DelayedURL, httpClient, appLogger.Component("vendor")),
	)

	dispatcher := worker.NewDispatcher(&worker.Config{
		Logger:        appLogger.Component("dispatcher"),
		Store:         storage.NewJobStorage(dbClient.GetDB(), appLogger.Component("storage")),
		Queue:         jobQueue,
		Limiter:       limiter,
		Adapters:      adapters,
		PollInterval:  cfg.Worker.PollInterval,
		VendorTimeout: cfg.Worker.VendorTimeout,
	})

	// Health and metrics endpoint
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	healthHandler := handler.NewHealthHandler("vendor-job-worker", map[string]handler.HealthChecker{
		"postgresql": dbClient,
		"redis":      redisClient,
	}, appLogger.Logger)
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- dispatcher.Start(ctx)
	}()

	appLogger.Info("Worker service is running",
		slog.String("queue_backend", cfg.Queue.Backend),
		slog.Int("rate_limit", cfg.RateLimit.MaxRequests),
		slog.Duration("rate_window", cfg.RateLimit.Window),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Received shutdown signal")
	case err := <-workerDone:
		if err != nil {
			return fmt.Errorf("dispatcher stopped: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		dispatcher.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timed out, forcing exit")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Metrics server shutdown failed", slog.Any("error", err))
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}
