package client

import (
	"github.com/taskfire/taskfire-go/rpc/common"
)

// dispatch parses one inbound message and routes it. Replies settle their
// pending request, WORK goes to the sink, everything else is a protocol error.
// It runs on the transport's event goroutine.
func (c *Client) dispatch(data []byte) {
	c.trace("receive", data)

	in, err := c.serializer.DeserializeEnvelope(data)
	if err != nil {
		c.emit(&common.ProtocolError{Kind: common.ProtocolMalformed, Err: err})
		return
	}

	switch msg := in.(type) {
	case common.Response:
		c.resolve(msg.Envelope)
	case common.Work:
		// WORK never touches the pending table, even if it carries a request id
		c.stats.workReceived.Inc()
		c.stats.workRate.Mark(1)
		c.sink.Ingest(msg.Envelope)
	case common.Unknown:
		env := msg.Envelope
		c.emit(&common.ProtocolError{Kind: common.ProtocolUnexpectedKind, Envelope: &env})
	}
}

// resolve settles the pending request a reply belongs to.
// The entry is removed before the outcome settles.
func (c *Client) resolve(env common.Envelope) {
	p, ok := c.pending.take(env.RequestID)
	if !ok {
		if _, late := c.abandoned.LoadAndDelete(env.RequestID); late {
			c.stats.lateReplies.Inc()
			Logger.Debugf("[%s] Dropping late reply to abandoned request %d", c.id, env.RequestID)
			return
		}
		c.emit(&common.ProtocolError{
			Kind:      common.ProtocolUnknownRequestID,
			RequestID: env.RequestID,
			Envelope:  &env,
		})
		return
	}

	c.release(p)
	c.stats.latency.UpdateSince(p.issuedAt)

	if common.IsErrorStatus(env.Status) {
		c.stats.responsesFailed.Inc()
		p.outcome.reject(&common.StatusError{Envelope: env})
		return
	}

	c.stats.responsesOK.Inc()
	p.outcome.resolve(env)
}
