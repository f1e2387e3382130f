package sink

import (
	"github.com/taskfire/taskfire-go/rpc/common"
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the queue
type node struct {
	env  *common.Envelope
	next atomic.Pointer[node]
}

// Queue is an unbounded lock-free work sink. Any number of producers may call
// Ingest concurrently, a single consumer reads the envelopes from Recv().
//
// Envelopes pushed by one producer are received in the order they were pushed.
// Ingest never blocks, so a slow consumer only grows the queue.
type Queue struct {
	head     atomic.Pointer[node]
	tail     atomic.Pointer[node]
	out      chan common.Envelope
	consumer sync.WaitGroup
	closed   atomic.Bool
	length   atomic.Int64

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// NewQueue creates a new unbounded work queue
func NewQueue() *Queue {
	sentinel := &node{}

	q := &Queue{
		out: make(chan common.Envelope),
	}
	q.cond = sync.NewCond(&q.mu)

	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Ingest implements IWorkSink. Envelopes arriving after Close are dropped.
func (q *Queue) Ingest(env common.Envelope) {
	if !q.push(&env) {
		Logger.Warningf("Work queue is closed, dropping envelope: %s", env.String())
	}
}

// push appends an envelope, returns false if the queue is closed
func (q *Queue) push(env *common.Envelope) bool {
	if q.closed.Load() {
		return false
	}

	newNode := &node{env: env}
	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// CAS may fail if another producer already moved the tail
				q.tail.CompareAndSwap(tailNode, newNode)
				q.length.Add(1)

				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume moves envelopes from the linked list to the output channel
func (q *Queue) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			env := next.env
			q.head.Store(next)
			q.length.Add(-1)

			q.out <- *env
			next.env = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel the consumer reads envelopes from.
// The channel is closed after Close once every queued envelope was delivered.
func (q *Queue) Recv() <-chan common.Envelope {
	return q.out
}

// Close stops accepting envelopes. Envelopes already queued are still delivered.
func (q *Queue) Close() {
	q.closed.Store(true)

	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed returns true if the queue is closed
func (q *Queue) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the approximate number of queued envelopes
func (q *Queue) Len() int {
	return int(q.length.Load())
}
