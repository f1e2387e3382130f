package client

import (
	"fmt"
	"github.com/taskfire/taskfire-go/rpc/common"
)

// clientEvents receives the transport events of a client (implements transport.IEventHandler)
type clientEvents struct {
	c *Client
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IEventHandler)
// --------------------------------------------------------------------------

func (e *clientEvents) OnOpen() {
	c := e.c

	c.sendMu.Lock()
	t := c.life.transition(StateOpen, nil)
	var failed []rejection
	if t.Changed {
		failed = c.flushLocked()
	}
	c.sendMu.Unlock()

	c.trace("open", t.From.String(), t.Changed)
	for _, r := range failed {
		c.rejectEntry(r.entry, r.err)
	}
}

func (e *clientEvents) OnMessage(data []byte) {
	e.c.dispatch(data)
}

func (e *clientEvents) OnError(err error) {
	c := e.c
	c.stats.transportErrors.Inc()

	// Only a connection that never opened fails, later errors are reported only
	c.sendMu.Lock()
	t := c.life.transition(StateFailed, err)
	var rejected []*pendingRequest
	if t.Changed {
		rejected = c.takeAllLocked()
	}
	c.sendMu.Unlock()

	if t.Changed {
		Logger.Errorf("[%s] Connection to %s failed: %v", c.id, c.config.URL, err)
		cause := &common.ConnectionError{Cause: err}
		for _, p := range rejected {
			c.rejectEntry(p, cause)
		}
		c.stopBackground()
	}

	c.emit(err)
}

func (e *clientEvents) OnClose(code int, reason string) {
	c := e.c

	c.closeMu.Lock()
	c.closeCode, c.closeReason = code, reason
	c.closeMu.Unlock()

	c.sendMu.Lock()
	var t transition
	var cause error = common.ErrConnectionClosed
	if c.life.current() == StatePending {
		// Closed without ever opening and without an error event
		failure := fmt.Errorf("connection closed before it was opened (%d %s)", code, reason)
		t = c.life.transition(StateFailed, failure)
		cause = &common.ConnectionError{Cause: failure}
	} else {
		t = c.life.transition(StateClosed, nil)
	}
	rejected := c.takeAllLocked()
	c.sendMu.Unlock()

	c.trace("close", code, reason, t.To.String())
	Logger.Infof("[%s] Connection to %s closed (%d %s)", c.id, c.config.URL, code, reason)

	// No reply can arrive any more
	for _, p := range rejected {
		c.rejectEntry(p, cause)
	}
	c.abandoned.Clear()
	c.stopBackground()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// takeAllLocked removes every deferred and pending request, sendMu must be held
func (c *Client) takeAllLocked() []*pendingRequest {
	c.deferred = nil
	return c.pending.drain()
}
