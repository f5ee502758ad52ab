package zap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theory-cloud/sitetheory/pkg/observability"
)

// health tracks the failures of a logger and everything derived from it.
type health struct {
	errors atomic.Int64
	last   atomic.Value
}

func (h *health) record(err error) {
	if err == nil {
		return
	}
	h.errors.Add(1)
	h.last.Store(err.Error())
}

func (h *health) lastError() string {
	s, _ := h.last.Load().(string)
	return s
}

// notifyQueue hands error entries to an ErrorNotifier on a single background
// goroutine. A full buffer drops the entry instead of blocking the log call.
type notifyQueue struct {
	notifier   observability.ErrorNotifier
	attempts   int
	retryDelay time.Duration
	health     *health

	mu      sync.Mutex
	ch      chan observability.LogEntry
	pending sync.WaitGroup
	dropped atomic.Int64
}

func newNotifyQueue(notifier observability.ErrorNotifier, cfg observability.LoggerConfig, h *health) *notifyQueue {
	q := &notifyQueue{
		notifier:   notifier,
		attempts:   cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		health:     h,
		ch:         make(chan observability.LogEntry, cfg.BufferSize),
	}
	go q.run(q.ch)
	return q
}

func (q *notifyQueue) push(entry observability.LogEntry) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch == nil {
		q.dropped.Add(1)
		return
	}
	q.pending.Add(1)
	select {
	case q.ch <- entry:
	default:
		q.pending.Done()
		q.dropped.Add(1)
	}
}

func (q *notifyQueue) run(ch <-chan observability.LogEntry) {
	for entry := range ch {
		if err := q.deliver(entry); err != nil && q.health != nil {
			q.health.record(err)
		}
		q.pending.Done()
	}
}

// deliver calls the notifier up to attempts times, sleeping retryDelay
// between failures.
func (q *notifyQueue) deliver(entry observability.LogEntry) error {
	attempts := q.attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = q.notifier.Notify(context.Background(), entry); err == nil {
			return nil
		}
		if attempt < attempts {
			time.Sleep(q.retryDelay)
		}
	}
	return err
}

// wait blocks until every queued entry is delivered or ctx ends.
func (q *notifyQueue) wait(ctx context.Context) {
	if q == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}

// close stops accepting entries and drains what is already queued.
func (q *notifyQueue) close() {
	if q == nil {
		return
	}
	q.mu.Lock()
	if q.ch != nil {
		close(q.ch)
		q.ch = nil
	}
	q.mu.Unlock()
	q.pending.Wait()
}

func (q *notifyQueue) droppedCount() int64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}
