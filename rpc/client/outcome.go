package client

import (
	"context"
	"github.com/taskfire/taskfire-go/rpc/common"
	"sync"
)

// Callback receives the result of a request. Exactly one of env and err is non-nil.
type Callback func(env *common.Envelope, err error)

// Outcome is the handle returned for every request. It settles exactly once,
// either with the RESPONSE envelope or with an error.
type Outcome struct {
	id   uint64
	once sync.Once
	done chan struct{}

	mu        sync.Mutex
	settled   bool
	env       *common.Envelope
	err       error
	callbacks []Callback
}

func newOutcome(id uint64) *Outcome {
	return &Outcome{
		id:   id,
		done: make(chan struct{}),
	}
}

// RequestID returns the id the request was tagged with
func (o *Outcome) RequestID() uint64 {
	return o.id
}

// Done returns a channel that is closed once the outcome settled
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the outcome settled or ctx ends.
// Ending ctx does not cancel the request, use the context passed to Request for that.
func (o *Outcome) Wait(ctx context.Context) (*common.Envelope, error) {
	select {
	case <-o.done:
		return o.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the settled result, or ErrNotSettled while the request is in flight
func (o *Outcome) Result() (*common.Envelope, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.settled {
		return nil, common.ErrNotSettled
	}
	return o.env, o.err
}

// Settled reports whether the outcome has a result
func (o *Outcome) Settled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settled
}

// Then registers a callback invoked with the result. If the outcome already settled
// the callback runs immediately, otherwise on the goroutine that settles it.
// Callbacks must not block: replies are dispatched from the transport goroutine.
func (o *Outcome) Then(cb Callback) {
	if cb == nil {
		return
	}

	o.mu.Lock()
	if o.settled {
		env, err := o.env, o.err
		o.mu.Unlock()
		cb(env, err)
		return
	}
	o.callbacks = append(o.callbacks, cb)
	o.mu.Unlock()
}

// resolve settles the outcome with a reply, returns false if it already settled
func (o *Outcome) resolve(env common.Envelope) bool {
	return o.settle(&env, nil)
}

// reject settles the outcome with an error, returns false if it already settled
func (o *Outcome) reject(err error) bool {
	return o.settle(nil, err)
}

func (o *Outcome) settle(env *common.Envelope, err error) bool {
	first := false
	o.once.Do(func() {
		first = true

		o.mu.Lock()
		o.settled = true
		o.env = env
		o.err = err
		callbacks := o.callbacks
		o.callbacks = nil
		close(o.done)
		o.mu.Unlock()

		for _, cb := range callbacks {
			cb(env, err)
		}
	})
	return first
}
