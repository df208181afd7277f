package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
	"github.com/cuongbtq/vendor-jobs/internal/vendors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu         sync.Mutex
	status     map[string]string
	results    map[string][]byte
	errors     map[string]string
	vendorRefs map[string]string
}

func newFakeStore(pending ...string) *fakeStore {
	s := &fakeStore{
		status:     map[string]string{},
		results:    map[string][]byte{},
		errors:     map[string]string{},
		vendorRefs: map[string]string{},
	}
	for _, id := range pending {
		s.status[id] = domain.JobStatusPending
	}
	return s
}

func (s *fakeStore) MarkProcessing(_ context.Context, requestID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status[requestID] != domain.JobStatusPending {
		return nil, domain.ErrJobNotInState
	}
	s.status[requestID] = domain.JobStatusProcessing
	return &domain.Job{RequestID: requestID, Status: domain.JobStatusProcessing, Payload: []byte(`{"stored":true}`)}, nil
}

func (s *fakeStore) Complete(_ context.Context, requestID string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status[requestID] != domain.JobStatusProcessing {
		return domain.ErrJobNotInState
	}
	s.status[requestID] = domain.JobStatusComplete
	s.results[requestID] = result
	return nil
}

func (s *fakeStore) Fail(_ context.Context, requestID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if domain.IsTerminalStatus(s.status[requestID]) {
		return domain.ErrJobNotInState
	}
	s.status[requestID] = domain.JobStatusFailed
	s.errors[requestID] = errMsg
	return nil
}

func (s *fakeStore) SetVendorRef(_ context.Context, requestID, vendorRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vendorRefs[requestID] = vendorRef
	return nil
}

func (s *fakeStore) get(requestID string) (status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[requestID], s.errors[requestID]
}

// brokenCompleteStore refuses to record results
type brokenCompleteStore struct {
	*fakeStore
}

func (s brokenCompleteStore) Complete(_ context.Context, _ string, _ []byte) error {
	return fmt.Errorf("%w: failed to complete job: invalid input syntax for type json", domain.ErrPersistence)
}

// racingStore completes the job elsewhere just before the dispatcher records its result
type racingStore struct {
	*fakeStore
}

func (s racingStore) Complete(ctx context.Context, requestID string, result []byte) error {
	s.mu.Lock()
	s.status[requestID] = domain.JobStatusComplete
	s.mu.Unlock()
	return s.fakeStore.Complete(ctx, requestID, result)
}

type fakeQueue struct {
	mu      sync.Mutex
	entries []*domain.QueueEntry
	errs    []error
}

func (q *fakeQueue) Dequeue(_ context.Context) (*domain.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.errs) > 0 {
		err := q.errs[0]
		q.errs = q.errs[1:]
		return nil, err
	}
	if len(q.entries) == 0 {
		return nil, nil
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, nil
}

type fakeLimiter struct {
	err error
}

func (l fakeLimiter) AwaitAcquire(_ context.Context, _ string) error {
	return l.err
}

type fakeAdapter struct {
	vendor   string
	result   *vendors.Result
	err      error
	mu       sync.Mutex
	payloads []json.RawMessage
}

func (a *fakeAdapter) Vendor() string { return a.vendor }

func (a *fakeAdapter) Call(_ context.Context, _ string, payload json.RawMessage) (*vendors.Result, error) {
	a.mu.Lock()
	a.payloads = append(a.payloads, payload)
	a.mu.Unlock()
	return a.result, a.err
}

func (a *fakeAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.payloads)
}

func immediateAdapter() *fakeAdapter {
	return &fakeAdapter{
		vendor: domain.VendorImmediateReply,
		result: &vendors.Result{Final: map[string]any{
			"id":     "v-1",
			"source": domain.VendorImmediateReply,
			"raw_data": map[string]any{
				"user_email": "user@example.com",
				"address":    "  1 Main St ",
			},
		}},
	}
}

func delayedAdapter() *fakeAdapter {
	return &fakeAdapter{
		vendor: domain.VendorDelayedReply,
		result: &vendors.Result{Ack: &vendors.Acknowledgment{JobID: "ack-1", Status: "accepted"}},
	}
}

func newTestDispatcher(store JobStore, queue Dequeuer, limiter RateLimiter, adapters ...vendors.Adapter) *Dispatcher {
	return NewDispatcher(&Config{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:         store,
		Queue:         queue,
		Limiter:       limiter,
		Adapters:      vendors.NewRegistry(adapters...),
		PollInterval:  5 * time.Millisecond,
		VendorTimeout: time.Second,
	})
}

func entryFor(id, vendorID string) *domain.QueueEntry {
	return &domain.QueueEntry{RequestID: id, Vendor: vendorID, Payload: json.RawMessage(`{"n":1}`)}
}

func TestProcessEntry_ImmediateCompletes(t *testing.T) {
	store := newFakeStore("job-1")
	adapter := immediateAdapter()
	d := newTestDispatcher(store, &fakeQueue{}, fakeLimiter{}, adapter)

	d.processEntry(context.Background(), entryFor("job-1", domain.VendorImmediateReply))

	status, _ := store.get("job-1")
	assert.Equal(t, domain.JobStatusComplete, status)

	var result map[string]any
	require.NoError(t, json.Unmarshal(store.results["job-1"], &result))
	assert.Equal(t, "v-1", result["id"])
	assert.Equal(t, "1 Main St", result["cleaned_data"].(map[string]any)["address"])
	assert.NotContains(t, string(store.results["job-1"]), "user@example.com")
	assert.JSONEq(t, `{"n":1}`, string(adapter.payloads[0]))
}

func TestProcessEntry_DelayedKeepsProcessing(t *testing.T) {
	store := newFakeStore("job-2")
	d := newTestDispatcher(store, &fakeQueue{}, fakeLimiter{}, delayedAdapter())

	d.processEntry(context.Background(), entryFor("job-2", domain.VendorDelayedReply))

	status, _ := store.get("job-2")
	assert.Equal(t, domain.JobStatusProcessing, status)
	assert.Equal(t, "ack-1", store.vendorRefs["job-2"])
	assert.Empty(t, store.results)
}

func TestProcessEntry_RateLimitTimeout(t *testing.T) {
	store := newFakeStore("job-3")
	adapter := immediateAdapter()
	d := newTestDispatcher(store, &fakeQueue{}, fakeLimiter{err: domain.ErrRateLimitTimeout}, adapter)

	d.processEntry(context.Background(), entryFor("job-3", domain.VendorImmediateReply))

	status, errMsg := store.get("job-3")
	assert.Equal(t, domain.JobStatusFailed, status)
	assert.Equal(t, "rate limit wait timeout", errMsg)
	assert.Zero(t, adapter.calls())
}

func TestProcessEntry_VendorError(t *testing.T) {
	store := newFakeStore("job-4")
	adapter := &fakeAdapter{vendor: domain.VendorDelayedReply, err: errors.New("vendor returned status 429")}
	d := newTestDispatcher(store, &fakeQueue{}, fakeLimiter{}, adapter)

	d.processEntry(context.Background(), entryFor("job-4", domain.VendorDelayedReply))

	status, errMsg := store.get("job-4")
	assert.Equal(t, domain.JobStatusFailed, status)
	assert.Equal(t, "vendor returned status 429", errMsg)
}

func TestProcessEntry_CompleteFailureFailsJob(t *testing.T) {
	store := newFakeStore("job-8")
	d := newTestDispatcher(brokenCompleteStore{store}, &fakeQueue{}, fakeLimiter{}, immediateAdapter())

	d.processEntry(context.Background(), entryFor("job-8", domain.VendorImmediateReply))

	status, errMsg := store.get("job-8")
	assert.Equal(t, domain.JobStatusFailed, status)
	assert.Contains(t, errMsg, "failed to record result")
	assert.Contains(t, errMsg, "invalid input syntax for type json")
}

func TestProcessEntry_CompleteAfterJobLeftProcessing(t *testing.T) {
	store := newFakeStore("job-9")
	d := newTestDispatcher(racingStore{store}, &fakeQueue{}, fakeLimiter{}, immediateAdapter())

	d.processEntry(context.Background(), entryFor("job-9", domain.VendorImmediateReply))

	status, errMsg := store.get("job-9")
	assert.Equal(t, domain.JobStatusComplete, status)
	assert.Empty(t, errMsg)
	assert.Empty(t, store.results)
}

func TestProcessEntry_NotPendingIsDropped(t *testing.T) {
	store := newFakeStore()
	store.status["job-5"] = domain.JobStatusFailed
	adapter := immediateAdapter()
	d := newTestDispatcher(store, &fakeQueue{}, fakeLimiter{}, adapter)

	d.processEntry(context.Background(), entryFor("job-5", domain.VendorImmediateReply))
	d.processEntry(context.Background(), entryFor("missing", domain.VendorImmediateReply))

	status, _ := store.get("job-5")
	assert.Equal(t, domain.JobStatusFailed, status)
	assert.Zero(t, adapter.calls())
}

func TestProcessEntry_UnknownVendor(t *testing.T) {
	store := newFakeStore("job-6")
	d := newTestDispatcher(store, &fakeQueue{}, fakeLimiter{}, immediateAdapter())

	d.processEntry(context.Background(), entryFor("job-6", "sync-vendor"))

	status, errMsg := store.get("job-6")
	assert.Equal(t, domain.JobStatusFailed, status)
	assert.Contains(t, errMsg, "invalid vendor")
}

func TestProcessEntry_FallsBackToStoredPayload(t *testing.T) {
	store := newFakeStore("job-7")
	adapter := immediateAdapter()
	d := newTestDispatcher(store, &fakeQueue{}, fakeLimiter{}, adapter)

	d.processEntry(context.Background(), &domain.QueueEntry{RequestID: "job-7", Vendor: domain.VendorImmediateReply})

	require.Equal(t, 1, adapter.calls())
	assert.JSONEq(t, `{"stored":true}`, string(adapter.payloads[0]))
}

func TestDispatcher_DrainsQueueInOrder(t *testing.T) {
	store := newFakeStore("a", "b", "c")
	queue := &fakeQueue{
		errs: []error{errors.New("redis down")},
		entries: []*domain.QueueEntry{
			entryFor("a", domain.VendorImmediateReply),
			entryFor("b", "bogus"),
			entryFor("c", domain.VendorDelayedReply),
		},
	}
	d := newTestDispatcher(store, queue, fakeLimiter{}, immediateAdapter(), delayedAdapter())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	assert.Eventually(t, func() bool {
		status, _ := store.get("c")
		return status == domain.JobStatusProcessing
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	statusA, _ := store.get("a")
	statusB, _ := store.get("b")
	assert.Equal(t, domain.JobStatusComplete, statusA)
	assert.Equal(t, domain.JobStatusFailed, statusB)
}

func TestDispatcher_Stop(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), &fakeQueue{}, fakeLimiter{})

	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	d.Stop()
	d.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcher_StopBeforeStart(t *testing.T) {
	store := newFakeStore("job-10")
	queue := &fakeQueue{entries: []*domain.QueueEntry{entryFor("job-10", domain.VendorImmediateReply)}}
	d := newTestDispatcher(store, queue, fakeLimiter{}, immediateAdapter())

	d.Stop()
	require.NoError(t, d.Start(context.Background()))

	status, _ := store.get("job-10")
	assert.Equal(t, domain.JobStatusPending, status)
	assert.Len(t, queue.entries, 1)
}
