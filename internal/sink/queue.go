package sink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/roach88/weave/internal/ir"
)

// recordQueue is a thread-safe FIFO of event records.
//
// The queue is unbounded so a burst of dispatches never blocks on a slow
// downstream sink. Emit may be called from any goroutine while a single
// Run loop drains.
//
// The signal channel enables context-aware waiting in the Run loop.
type recordQueue struct {
	mu      sync.Mutex
	records []ir.EventRecord
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newRecordQueue() *recordQueue {
	return &recordQueue{
		records: make([]ir.EventRecord, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// enqueue adds rec to the back of the queue. Returns false if the queue
// is closed.
func (q *recordQueue) enqueue(rec ir.EventRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.records = append(q.records, rec)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// tryDequeue removes the front record without blocking.
func (q *recordQueue) tryDequeue() (ir.EventRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.records) == 0 {
		return ir.EventRecord{}, false
	}

	rec := q.records[0]

	// Clear the slot so the payload can be collected.
	q.records[0] = ir.EventRecord{}

	if len(q.records) == 1 {
		q.records = q.records[:0]
	} else {
		q.records = q.records[1:]
	}

	return rec, true
}

// drained reports whether the queue is closed and empty.
func (q *recordQueue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.records) == 0
}

// wait returns a channel that signals when records may be available.
// It is closed by close, waking every waiter.
func (q *recordQueue) wait() <-chan struct{} {
	return q.signal
}

func (q *recordQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

func (q *recordQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Async decouples a downstream sink from the dispatching goroutine.
//
// Emit only enqueues; Run forwards queued records to the downstream sink
// in arrival order. Close stops intake, and Run returns once the queue
// has drained.
//
//	async := sink.NewAsync(storeSink)
//	go async.Run(ctx)
//	defer async.Close()
type Async struct {
	next    Sink
	queue   *recordQueue
	dropped atomic.Int64
}

// NewAsync wraps next.
func NewAsync(next Sink) *Async {
	return &Async{
		next:  next,
		queue: newRecordQueue(),
	}
}

// Emit enqueues rec. Records emitted after Close are dropped and counted.
func (a *Async) Emit(_ context.Context, rec ir.EventRecord) {
	if !a.queue.enqueue(rec) {
		a.dropped.Add(1)
	}
}

// Run drains the queue into the downstream sink until ctx is cancelled
// or the sink is closed and empty. Records are forwarded with ctx.
func (a *Async) Run(ctx context.Context) error {
	for {
		if rec, ok := a.queue.tryDequeue(); ok {
			a.next.Emit(ctx, rec)
			continue
		}

		if a.queue.drained() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.queue.wait():
		}
	}
}

// Close stops accepting records. Safe to call more than once.
func (a *Async) Close() {
	a.queue.close()
}

// Pending returns the number of queued records.
func (a *Async) Pending() int {
	return a.queue.len()
}

// Dropped returns the number of records emitted after Close.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}
