package client

import (
	"context"
	"github.com/taskfire/taskfire-go/rpc/common"
	"sync"
)

// State is the lifecycle state of a client connection
type State int32

const (
	// StatePending means the transport has not reported open yet, sends are deferred
	StatePending State = iota
	// StateOpen means requests are written to the transport directly
	StateOpen
	// StateClosing means Close was called and the close handshake is running
	StateClosing
	// StateClosed means the transport confirmed the connection is gone
	StateClosed
	// StateFailed means the transport failed before the connection was opened
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave the state
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// legalTransitions lists the allowed target states per state
var legalTransitions = map[State][]State{
	StatePending: {StateOpen, StateClosing, StateFailed},
	StateOpen:    {StateClosing, StateClosed},
	StateClosing: {StateClosed},
}

// transition is the result of a state change attempt
type transition struct {
	From    State
	To      State
	Changed bool
}

// lifecycle is the explicit state machine guarding the connection.
// ready is closed when the state leaves StatePending, done when it becomes terminal.
type lifecycle struct {
	mu    sync.Mutex
	state State
	cause error
	ready chan struct{}
	done  chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		state: StatePending,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// current returns the current state
func (l *lifecycle) current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// err returns the cause recorded with the transition to StateFailed
func (l *lifecycle) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cause
}

// transition moves to the given state if the move is legal, illegal moves are no-ops
func (l *lifecycle) transition(to State, cause error) transition {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := transition{From: l.state, To: l.state}
	allowed := false
	for _, s := range legalTransitions[l.state] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return t
	}

	if l.state == StatePending {
		close(l.ready)
	}
	l.state = to
	if to == StateFailed {
		l.cause = cause
	}
	if to.Terminal() {
		close(l.done)
	}

	t.To = to
	t.Changed = true
	return t
}

// await blocks until the state left StatePending. It returns nil once the
// connection is open, the failure cause if it failed and ErrConnectionClosed
// if it is closing or closed.
func (l *lifecycle) await(ctx context.Context) error {
	select {
	case <-l.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	switch l.current() {
	case StateOpen:
		return nil
	case StateFailed:
		return &common.ConnectionError{Cause: l.err()}
	default:
		return common.ErrConnectionClosed
	}
}
