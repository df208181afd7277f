package vendormock

import (
	"sync"
	"time"
)

// windowCounter is an in-process fixed window counter keyed by vendor
type windowCounter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	counts map[string]*window
}

type window struct {
	start time.Time
	count int
}

func newWindowCounter(limit int, size time.Duration) *windowCounter {
	return &windowCounter{
		limit:  limit,
		window: size,
		counts: make(map[string]*window),
	}
}

func (w *windowCounter) allow(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cur, ok := w.counts[key]
	if !ok || now.Sub(cur.start) >= w.window {
		cur = &window{start: now}
		w.counts[key] = cur
	}

	cur.count++
	return cur.count <= w.limit
}
