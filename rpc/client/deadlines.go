package client

import (
	"container/heap"
	"strconv"
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Deadline heap (min-heap by deadline with key based access)
// --------------------------------------------------------------------------

// deadline is one scheduled expiry, keyed by request id
type deadline struct {
	id    uint64 // request id
	at    int64  // unix nanoseconds
	index int    // index in the heap, maintained by the heap package
}

func (d *deadline) String() string {
	return "{ID: " + strconv.FormatUint(d.id, 10) + ", At: " + strconv.FormatInt(d.at, 10) + "}"
}

// deadlineHeap implements heap.Interface plus O(1) lookup by request id.
// It is not thread-safe, deadlineQueue synchronizes access.
type deadlineHeap struct {
	items []*deadline
	byID  map[uint64]*deadline
}

func newDeadlineHeap() *deadlineHeap {
	return &deadlineHeap{
		items: make([]*deadline, 0),
		byID:  make(map[uint64]*deadline),
	}
}

func (h *deadlineHeap) Len() int { return len(h.items) }

// Less orders by deadline, the earliest deadline is the root
func (h *deadlineHeap) Less(i, j int) bool {
	return h.items[i].at < h.items[j].at
}

func (h *deadlineHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *deadlineHeap) Push(x interface{}) {
	d := x.(*deadline)
	d.index = len(h.items)
	h.items = append(h.items, d)
	h.byID[d.id] = d
}

func (h *deadlineHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	d := old[n-1]
	old[n-1] = nil // Avoid memory leak
	d.index = -1
	h.items = old[:n-1]
	delete(h.byID, d.id)
	return d
}

// set adds a deadline or moves an existing one
func (h *deadlineHeap) set(id uint64, at int64) {
	if d, exists := h.byID[id]; exists {
		d.at = at
		heap.Fix(h, d.index)
		return
	}
	heap.Push(h, &deadline{id: id, at: at})
}

// remove deletes the deadline of the id, returns false if none was scheduled
func (h *deadlineHeap) remove(id uint64) bool {
	d, exists := h.byID[id]
	if !exists {
		return false
	}
	heap.Remove(h, d.index)
	return true
}

// peek returns the earliest deadline without removing it
func (h *deadlineHeap) peek() (*deadline, bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}

func (h *deadlineHeap) contains(id uint64) bool {
	_, exists := h.byID[id]
	return exists
}

// --------------------------------------------------------------------------
// Deadline queue (heap + reaper goroutine)
// --------------------------------------------------------------------------

// deadlineQueue calls onExpire for every request whose deadline passed.
// A single reaper goroutine sleeps until the earliest deadline.
type deadlineQueue struct {
	mu       sync.Mutex
	heap     *deadlineHeap
	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	onExpire func(id uint64)
}

func newDeadlineQueue(onExpire func(id uint64)) *deadlineQueue {
	q := &deadlineQueue{
		heap:     newDeadlineHeap(),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		onExpire: onExpire,
	}
	heap.Init(q.heap)
	go q.run()
	return q
}

// schedule sets the deadline of a request
func (q *deadlineQueue) schedule(id uint64, at time.Time) {
	q.mu.Lock()
	q.heap.set(id, at.UnixNano())
	first, _ := q.heap.peek()
	isFirst := first.id == id
	q.mu.Unlock()

	// Only a new earliest deadline changes how long the reaper has to sleep
	if isFirst {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
}

// cancel removes the deadline of a request that settled
func (q *deadlineQueue) cancel(id uint64) {
	q.mu.Lock()
	q.heap.remove(id)
	q.mu.Unlock()
}

// len returns the number of scheduled deadlines
func (q *deadlineQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// close stops the reaper, pending deadlines never fire
func (q *deadlineQueue) close() {
	q.stopOnce.Do(func() { close(q.stop) })
}

func (q *deadlineQueue) run() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		now := time.Now().UnixNano()

		q.mu.Lock()
		var expired []uint64
		for {
			d, ok := q.heap.peek()
			if !ok || d.at > now {
				break
			}
			heap.Pop(q.heap)
			expired = append(expired, d.id)
		}
		next, hasNext := q.heap.peek()
		var nextAt int64
		if hasNext {
			nextAt = next.at
		}
		q.mu.Unlock()

		for _, id := range expired {
			q.onExpire(id)
		}

		var timerC <-chan time.Time
		if hasNext {
			timer.Reset(time.Duration(nextAt - now))
			timerC = timer.C
		}

		select {
		case <-q.stop:
			return
		case <-q.wake:
			timer.Stop()
		case <-timerC:
		}
	}
}
