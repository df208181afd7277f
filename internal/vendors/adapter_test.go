package vendors

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImmediateAdapter_Call(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"v-1","data":{"user_id":1},"source":"immediate-reply","raw_data":{"address":" A "}}`))
	}))
	defer server.Close()

	adapter := NewImmediateAdapter(server.URL, server.Client(), testLogger())
	assert.Equal(t, domain.VendorImmediateReply, adapter.Vendor())

	result, err := adapter.Call(context.Background(), "req-1", json.RawMessage(`{"user_id":1}`))
	require.NoError(t, err)
	require.NotNil(t, result.Final)
	assert.Nil(t, result.Ack)
	assert.Equal(t, "v-1", result.Final["id"])
	assert.Equal(t, map[string]any{"user_id": float64(1)}, received)
}

func TestDelayedAdapter_Call(t *testing.T) {
	var received delayedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"job_id":"ack-7","status":"accepted","estimated_completion":"2024-01-01T00:00:05Z"}`))
	}))
	defer server.Close()

	adapter := NewDelayedAdapter(server.URL, server.Client(), testLogger())
	assert.Equal(t, domain.VendorDelayedReply, adapter.Vendor())

	result, err := adapter.Call(context.Background(), "req-2", json.RawMessage(`{"k":"v"}`))
	require.NoError(t, err)
	require.NotNil(t, result.Ack)
	assert.Nil(t, result.Final)
	assert.Equal(t, "ack-7", result.Ack.JobID)
	assert.Equal(t, "accepted", result.Ack.Status)

	assert.Equal(t, "req-2", received.RequestID)
	assert.JSONEq(t, `{"k":"v"}`, string(received.Payload))
}

func TestAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		errText string
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Rate limit exceeded","retryAfter":60}`))
			},
			errText: "vendor returned status 429",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			errText: "vendor returned status 500",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			errText: "failed to decode vendor response",
		},
		{
			name: "null body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`null`))
			},
			errText: "vendor returned an empty response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			adapter := NewImmediateAdapter(server.URL, server.Client(), testLogger())
			result, err := adapter.Call(context.Background(), "req", json.RawMessage(`{}`))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
			assert.Nil(t, result)
		})
	}
}

func TestAdapter_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	adapter := NewDelayedAdapter(server.URL, server.Client(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := adapter.Call(ctx, "req", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "vendor request failed"))
}

func TestRegistry(t *testing.T) {
	immediate := NewImmediateAdapter("http://immediate", nil, testLogger())
	delayed := NewDelayedAdapter("http://delayed", nil, testLogger())
	registry := NewRegistry(immediate, delayed)

	a, err := registry.Get(domain.VendorImmediateReply)
	require.NoError(t, err)
	assert.Same(t, immediate, a)

	a, err = registry.Get(domain.VendorDelayedReply)
	require.NoError(t, err)
	assert.Same(t, delayed, a)

	_, err = registry.Get("legacy-vendor")
	assert.ErrorIs(t, err, domain.ErrInvalidVendor)
}
