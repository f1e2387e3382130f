package sink

import (
	"github.com/lni/dragonboat/v4/logger"
	"github.com/taskfire/taskfire-go/rpc/common"
)

var Logger = logger.GetLogger("sink")

// IWorkSink receives the WORK envelopes pushed by the task-queue service.
// Ingest is called from the dispatching goroutine and must not block for long.
type IWorkSink interface {
	Ingest(env common.Envelope)
}

// Func adapts an ordinary function to the IWorkSink interface
type Func func(env common.Envelope)

func (f Func) Ingest(env common.Envelope) {
	f(env)
}

// Discard drops every envelope
var Discard IWorkSink = Func(func(env common.Envelope) {
	Logger.Debugf("Discarding work envelope: %s", env.String())
})
