package client

import (
	"context"
	"errors"
	"fmt"
	"github.com/taskfire/taskfire-go/rpc/common"
	"time"
)

// maxAbandoned bounds the set of locally settled ids before old ones are pruned
const maxAbandoned = 4096

// abandonedTTL is how long a late reply to a cancelled or expired request is expected
const abandonedTTL = time.Minute

// send tags the request with the next id, registers it and writes it to the
// transport, or defers it until the transport reports open
func (c *Client) send(ctx context.Context, req common.Request) (*Outcome, error) {
	if req == nil {
		return nil, &common.SerializationError{Err: fmt.Errorf("request is nil")}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("send throttled: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRequestCancelled, err)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	state := c.life.current()
	switch state {
	case StateFailed:
		return nil, &common.ConnectionError{Cause: c.life.err()}
	case StateClosing, StateClosed:
		return nil, common.ErrConnectionClosed
	}

	if c.config.MaxPending > 0 && c.pending.len() >= c.config.MaxPending {
		c.stats.requestsRejected.Inc()
		return nil, common.ErrTooManyPending
	}

	c.counter++
	id := c.counter

	tagged := req.WithRequestID(id)
	if c.config.ProjectID != "" {
		if _, ok := tagged[common.FieldProjectID]; !ok {
			tagged[common.FieldProjectID] = c.config.ProjectID
		}
	}

	data, err := c.serializer.SerializeRequest(tagged)
	if err != nil {
		c.trace("send failed", id, err)
		return nil, &common.SerializationError{Err: err}
	}

	entry := &pendingRequest{
		id:       id,
		request:  tagged,
		issuedAt: time.Now(),
		outcome:  newOutcome(id),
	}
	entry.stop = context.AfterFunc(ctx, func() {
		c.abandon(id, fmt.Errorf("%w: %w", common.ErrRequestCancelled, context.Cause(ctx)))
	})

	c.pending.add(entry)

	// The cancellation may have fired before the entry was registered
	if ctx.Err() != nil {
		if p, ok := c.pending.take(id); ok {
			c.release(p)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrRequestCancelled, context.Cause(ctx))
	}

	if c.deadlines != nil {
		c.deadlines.schedule(id, entry.issuedAt.Add(time.Duration(c.config.TimeoutSecond)*time.Second))
	}

	if state == StatePending {
		c.deferred = append(c.deferred, deferredSend{entry: entry, data: data})
		c.trace("defer", data)
		return entry.outcome, nil
	}

	if err := c.transport.Send(ctx, data); err != nil {
		if p, ok := c.pending.take(id); ok {
			c.release(p)
		}
		c.stats.transportErrors.Inc()
		return nil, &common.TransportError{Op: "send", Err: err}
	}

	c.stats.requestsSent.Inc()
	c.trace("send", data)
	return entry.outcome, nil
}

// rejection is a removed entry together with the error it settles with
type rejection struct {
	entry *pendingRequest
	err   error
}

// flushLocked writes the deferred requests in issuance order, sendMu must be held.
// Requests whose outcome already settled (cancelled or expired) are skipped.
// Entries whose write failed are returned, the caller rejects them after
// releasing sendMu.
func (c *Client) flushLocked() []rejection {
	deferred := c.deferred
	c.deferred = nil

	var failed []rejection
	for _, d := range deferred {
		if d.entry.outcome.Settled() {
			continue
		}
		if err := c.transport.Send(context.Background(), d.data); err != nil {
			if p, ok := c.pending.take(d.entry.id); ok {
				c.stats.transportErrors.Inc()
				failed = append(failed, rejection{entry: p, err: &common.TransportError{Op: "send", Err: err}})
				c.trace("flush failed", d.entry.id, err)
			}
			continue
		}
		c.stats.requestsSent.Inc()
		c.trace("send", d.data)
	}
	return failed
}

// takeDeferredLocked removes the unsent requests from the table, sendMu must be held
func (c *Client) takeDeferredLocked() []*pendingRequest {
	deferred := c.deferred
	c.deferred = nil

	var taken []*pendingRequest
	for _, d := range deferred {
		if p, ok := c.pending.take(d.entry.id); ok {
			taken = append(taken, p)
		}
	}
	return taken
}

// abandon settles a request locally (cancellation or expiry). A reply that
// arrives later for the id is dropped instead of reported as protocol error.
func (c *Client) abandon(id uint64, cause error) {
	// Mark first so a reply racing with us is never reported as unknown
	c.abandoned.Store(id, time.Now())

	p, ok := c.pending.take(id)
	if !ok {
		c.abandoned.Delete(id)
		return
	}

	c.pruneAbandoned()
	c.trace("abandon", id, cause)
	c.rejectEntry(p, cause)
}

// pruneAbandoned drops old abandoned ids once the set grows large
func (c *Client) pruneAbandoned() {
	if c.abandoned.Size() < maxAbandoned {
		return
	}
	cutoff := time.Now().Add(-abandonedTTL)
	c.abandoned.Range(func(id uint64, at time.Time) bool {
		if at.Before(cutoff) {
			c.abandoned.Delete(id)
		}
		return true
	})
}

// release detaches the cancellation and the deadline of a removed entry
func (c *Client) release(p *pendingRequest) {
	if p.stop != nil {
		p.stop()
	}
	if c.deadlines != nil {
		c.deadlines.cancel(p.id)
	}
}

// rejectEntry settles a removed entry with an error
func (c *Client) rejectEntry(p *pendingRequest, err error) {
	c.release(p)

	switch {
	case isCancelled(err):
		c.stats.requestsCancelled.Inc()
	case isExpired(err):
		c.stats.requestsExpired.Inc()
	default:
		c.stats.responsesFailed.Inc()
	}
	p.outcome.reject(err)
}

func isCancelled(err error) bool {
	return errors.Is(err, common.ErrRequestCancelled)
}

func isExpired(err error) bool {
	return errors.Is(err, common.ErrRequestTimeout)
}
