// Package worker runs the single dispatch loop that drains the job queue,
// waits for a vendor rate limit slot, calls the vendor and records the outcome.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/cuongbtq/vendor-jobs/internal/vendors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// JobStore is the persistence used by the dispatcher
type JobStore interface {
	MarkProcessing(ctx context.Context, requestID string) (*domain.Job, error)
	Complete(ctx context.Context, requestID string, result []byte) error
	Fail(ctx context.Context, requestID, errMsg string) error
	SetVendorRef(ctx context.Context, requestID, vendorRef string) error
}

// Dequeuer pops entries without blocking; (nil, nil) means empty
type Dequeuer interface {
	Dequeue(ctx context.Context) (*domain.QueueEntry, error)
}

// RateLimiter blocks until a vendor call is allowed
type RateLimiter interface {
	AwaitAcquire(ctx context.Context, vendor string) error
}

// AdapterRegistry resolves the adapter for a vendor
type AdapterRegistry interface {
	Get(vendor string) (vendors.Adapter, error)
}

// Config holds dispatcher configuration
type Config struct {
	Logger        *slog.Logger
	Store         JobStore
	Queue         Dequeuer
	Limiter       RateLimiter
	Adapters      AdapterRegistry
	PollInterval  time.Duration
	VendorTimeout time.Duration
}

// Dispatcher is the single sequential consumer of the job queue
type Dispatcher struct {
	logger        *slog.Logger
	store         JobStore
	queue         Dequeuer
	limiter       RateLimiter
	adapters      AdapterRegistry
	pollInterval  time.Duration
	vendorTimeout time.Duration
	tracer        trace.Tracer

	mu       sync.Mutex
	stopped  bool
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewDispatcher creates a new dispatcher instance
func NewDispatcher(cfg *Config) *Dispatcher {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	vendorTimeout := cfg.VendorTimeout
	if vendorTimeout <= 0 {
		vendorTimeout = 30 * time.Second
	}

	return &Dispatcher{
		logger:        cfg.Logger,
		store:         cfg.Store,
		queue:         cfg.Queue,
		limiter:       cfg.Limiter,
		adapters:      cfg.Adapters,
		pollInterval:  pollInterval,
		vendorTimeout: vendorTimeout,
		tracer:        otel.Tracer("vendor-jobs-dispatcher"),
		stopChan:      make(chan struct{}),
	}
}

// Start runs the dispatch loop until ctx is canceled or Stop is called.
// An entry that is already being processed is finished before Start returns.
// Start returns immediately when Stop has already been called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.wg.Add(1)
	d.mu.Unlock()
	defer d.wg.Done()

	d.logger.Info("Starting dispatcher",
		slog.Duration("poll_interval", d.pollInterval),
		slog.Duration("vendor_timeout", d.vendorTimeout),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopping - context canceled")
			return nil
		case <-d.stopChan:
			d.logger.Info("Dispatcher stopping - stop requested")
			return nil
		default:
		}

		if d.poll(ctx) {
			continue
		}

		timer := time.NewTimer(d.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.logger.Info("Dispatcher stopping - context canceled")
			return nil
		case <-d.stopChan:
			timer.Stop()
			d.logger.Info("Dispatcher stopping - stop requested")
			return nil
		case <-timer.C:
		}
	}
}

// Stop gracefully stops the dispatcher and waits for the loop to exit
func (d *Dispatcher) Stop() {
	d.logger.Info("Stopping dispatcher...")
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopChan)
	}
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")
}

// poll handles at most one entry and reports whether one was found
func (d *Dispatcher) poll(ctx context.Context) bool {
	entry, err := d.queue.Dequeue(ctx)
	if err != nil {
		d.logger.Error("Failed to dequeue entry",
			slog.String("error", err.Error()),
		)
		return false
	}
	if entry == nil {
		return false
	}

	// the in-flight entry outlives shutdown of the loop
	d.processEntry(context.WithoutCancel(ctx), entry)
	return true
}
