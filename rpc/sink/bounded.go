package sink

import (
	"context"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/taskfire/taskfire-go/rpc/common"
	"sync/atomic"
	"time"
)

// pollInterval is how long Next sleeps between attempts on an empty queue
const pollInterval = time.Millisecond

// BoundedQueue is a fixed capacity work sink. When it is full new envelopes are
// dropped and counted instead of blocking the dispatcher.
type BoundedQueue struct {
	queue    *xsync.MPMCQueueOf[common.Envelope]
	capacity int
	length   atomic.Int64
	dropped  atomic.Uint64
}

// NewBoundedQueue creates a bounded work queue with the given capacity (must be > 0)
func NewBoundedQueue(capacity int) *BoundedQueue {
	return &BoundedQueue{
		queue:    xsync.NewMPMCQueueOf[common.Envelope](capacity),
		capacity: capacity,
	}
}

// Ingest implements IWorkSink
func (q *BoundedQueue) Ingest(env common.Envelope) {
	if !q.queue.TryEnqueue(env) {
		n := q.dropped.Add(1)
		Logger.Warningf("Work queue full (capacity %d), dropped %d envelopes so far", q.capacity, n)
		return
	}
	q.length.Add(1)
}

// TryNext returns the oldest queued envelope without waiting
func (q *BoundedQueue) TryNext() (common.Envelope, bool) {
	env, ok := q.queue.TryDequeue()
	if ok {
		q.length.Add(-1)
	}
	return env, ok
}

// Next waits until an envelope is available or the context ends
func (q *BoundedQueue) Next(ctx context.Context) (common.Envelope, error) {
	for {
		if env, ok := q.TryNext(); ok {
			return env, nil
		}

		select {
		case <-ctx.Done():
			return common.Envelope{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Len returns the approximate number of queued envelopes
func (q *BoundedQueue) Len() int {
	return int(q.length.Load())
}

// Dropped returns the number of envelopes dropped because the queue was full
func (q *BoundedQueue) Dropped() uint64 {
	return q.dropped.Load()
}
