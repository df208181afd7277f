// Package vendors calls the external vendors and normalizes their responses.
package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/cuongbtq/vendor-jobs/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 1 << 20

// Acknowledgment is the delayed vendor's reply to an accepted request
type Acknowledgment struct {
	JobID               string `json:"job_id"`
	Status              string `json:"status"`
	EstimatedCompletion string `json:"estimated_completion"`
}

// Result is the outcome of a vendor call. Exactly one field is set:
// Final for the immediate vendor, Ack for the delayed vendor.
type Result struct {
	Final map[string]any
	Ack   *Acknowledgment
}

// Adapter issues the outbound call for one vendor variant
type Adapter interface {
	Vendor() string
	Call(ctx context.Context, requestID string, payload json.RawMessage) (*Result, error)
}

// httpCaller posts JSON documents to a vendor endpoint
type httpCaller struct {
	vendor string
	url    string
	client *http.Client
	tracer trace.Tracer
	logger *slog.Logger
}

func newHTTPCaller(vendor, url string, client *http.Client, logger *slog.Logger) httpCaller {
	if client == nil {
		client = &http.Client{}
	}
	return httpCaller{
		vendor: vendor,
		url:    url,
		client: client,
		tracer: otel.Tracer("vendor-jobs-vendor"),
		logger: logger,
	}
}

func (c httpCaller) post(ctx context.Context, requestID string, body any, out any) error {
	ctx, span := c.tracer.Start(ctx, "vendor.Call", trace.WithAttributes(
		attribute.String("vendor", c.vendor),
		attribute.String("request_id", requestID),
	))
	defer span.End()

	start := time.Now()
	err := c.do(ctx, body, out)
	metrics.VendorCallDuration.WithLabelValues(c.vendor).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c httpCaller) do(ctx context.Context, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal vendor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create vendor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("vendor request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read vendor response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Vendor returned non-success status",
			slog.String("vendor", c.vendor),
			slog.Int("status_code", resp.StatusCode),
		)
		return fmt.Errorf("vendor returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode vendor response: %w", err)
	}
	return nil
}

// ImmediateAdapter calls the vendor that answers inline
type ImmediateAdapter struct {
	caller httpCaller
}

// NewImmediateAdapter creates an adapter for the immediate-reply vendor
func NewImmediateAdapter(url string, client *http.Client, logger *slog.Logger) *ImmediateAdapter {
	return &ImmediateAdapter{
		caller: newHTTPCaller(domain.VendorImmediateReply, url, client, logger),
	}
}

// Vendor returns the vendor identifier
func (a *ImmediateAdapter) Vendor() string {
	return domain.VendorImmediateReply
}

// Call posts the payload and returns the raw vendor response
func (a *ImmediateAdapter) Call(ctx context.Context, requestID string, payload json.RawMessage) (*Result, error) {
	var raw map[string]any
	if err := a.caller.post(ctx, requestID, payload, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("vendor returned an empty response")
	}

	return &Result{Final: raw}, nil
}

// DelayedAdapter calls the vendor that acknowledges now and calls back later
type DelayedAdapter struct {
	caller httpCaller
}

type delayedRequest struct {
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
}

// NewDelayedAdapter creates an adapter for the delayed-reply vendor
func NewDelayedAdapter(url string, client *http.Client, logger *slog.Logger) *DelayedAdapter {
	return &DelayedAdapter{
		caller: newHTTPCaller(domain.VendorDelayedReply, url, client, logger),
	}
}

// Vendor returns the vendor identifier
func (a *DelayedAdapter) Vendor() string {
	return domain.VendorDelayedReply
}

// Call submits the request and returns the vendor's acknowledgment
func (a *DelayedAdapter) Call(ctx context.Context, requestID string, payload json.RawMessage) (*Result, error) {
	var ack Acknowledgment
	body := delayedRequest{RequestID: requestID, Payload: payload}
	if err := a.caller.post(ctx, requestID, body, &ack); err != nil {
		return nil, err
	}

	return &Result{Ack: &ack}, nil
}

// Registry resolves adapters by vendor identifier
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry indexes the given adapters by their vendor
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Vendor()] = a
	}
	return r
}

// Get returns the adapter for vendor
func (r *Registry) Get(vendor string) (Adapter, error) {
	a, ok := r.adapters[vendor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidVendor, vendor)
	}
	return a, nil
}
