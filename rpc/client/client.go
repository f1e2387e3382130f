package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/serializer"
	"github.com/taskfire/taskfire-go/rpc/sink"
	"github.com/taskfire/taskfire-go/rpc/transport"
	"golang.org/x/time/rate"
	"io"
	"strings"
	"sync"
	"time"
)

var (
	Logger = logger.GetLogger("rpc")
)

// ErrorHandler receives connection level errors: protocol errors and transport
// errors that cannot be attributed to a single request
type ErrorHandler func(err error)

// Option configures optional parts of a client
type Option func(*Client)

// WithSink sets the consumer of WORK envelopes (default: sink.Discard)
func WithSink(s sink.IWorkSink) Option {
	return func(c *Client) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithErrorHandler sets the consumer of connection level errors (default: log them)
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Client) {
		if h != nil {
			c.onError = h
		}
	}
}

// deferredSend is a request issued before the transport reported open
type deferredSend struct {
	entry *pendingRequest
	data  []byte
}

// Client multiplexes requests over a single connection to the task-queue
// service and correlates the replies. WORK pushes go to the configured sink.
type Client struct {
	id         string
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	sink       sink.IWorkSink
	onError    ErrorHandler
	limiter    *rate.Limiter
	stats      *clientStats

	life *lifecycle

	// sendMu serializes id assignment, table insertion, the deferred queue and
	// transport writes, so ids appear on the wire in issuance order
	sendMu   sync.Mutex
	counter  uint64
	deferred []deferredSend

	pending   *pendingTable
	abandoned *xsync.MapOf[uint64, time.Time] // ids settled locally, their replies are dropped
	deadlines *deadlineQueue                  // nil when expiry is disabled

	closeMu     sync.Mutex
	closeCode   int
	closeReason string
	stopOnce    sync.Once
}

// NewClient creates a client and starts connecting the transport in the background.
// Requests issued before the connection opened are sent once it does.
func NewClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	opts ...Option,
) (*Client, error) {

	if config.Token == "" {
		return nil, common.ErrMissingToken
	}
	if config.URL == "" {
		config.URL = common.DefaultURL
	}
	if transport == nil || serializer == nil {
		return nil, fmt.Errorf("transport and serializer are required")
	}

	c := &Client{
		id:         uuid.NewString(),
		config:     config,
		transport:  transport,
		serializer: serializer,
		sink:       sink.Discard,
		life:       newLifecycle(),
		pending:    newPendingTable(),
		abandoned:  xsync.NewMapOf[uint64, time.Time](),
	}
	c.onError = c.logError

	for _, opt := range opts {
		opt(c)
	}

	if config.SendRate > 0 {
		burst := config.SendBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.SendRate), burst)
	}
	if config.TimeoutSecond > 0 {
		c.deadlines = newDeadlineQueue(func(id uint64) {
			c.abandon(id, common.ErrRequestTimeout)
		})
	}
	c.stats = newClientStats(c.id, c.pending.len)

	c.trace("connect", config.URL, transport.GetName())
	if err := transport.Connect(config, &clientEvents{c: c}); err != nil {
		c.stopBackground()
		return nil, fmt.Errorf("failed to connect %s transport: %w", transport.GetName(), err)
	}

	return c, nil
}

// --------------------------------------------------------------------------
// Public API
// --------------------------------------------------------------------------

// Request issues a request and returns its outcome handle. Cancelling ctx before
// the reply arrives settles the outcome with ErrRequestCancelled. The optional
// callback subscribes to the same outcome; it also receives errors returned
// synchronously.
func (c *Client) Request(ctx context.Context, req common.Request, cb Callback) (*Outcome, error) {
	out, err := c.send(ctx, req)
	if err != nil {
		if cb != nil {
			cb(nil, err)
		}
		return nil, err
	}
	out.Then(cb)
	return out, nil
}

// Do issues a request and waits for its reply
func (c *Client) Do(ctx context.Context, req common.Request) (*common.Envelope, error) {
	out, err := c.Request(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return out.Wait(ctx)
}

// WaitOpen blocks until the transport reported open. It returns the failure
// cause if the connection could not be opened.
func (c *Client) WaitOpen(ctx context.Context) error {
	return c.life.await(ctx)
}

// Close runs the close handshake and waits until the transport confirmed the
// connection is gone. Requests that were never sent are rejected with
// ErrConnectionClosed, requests already on the wire may still receive replies
// until the transport closes. The optional callback receives the same result.
func (c *Client) Close(ctx context.Context, cb func(err error)) error {
	err := c.close(ctx)
	if cb != nil {
		cb(err)
	}
	return err
}

// Done returns a channel that is closed once the connection reached a terminal state
func (c *Client) Done() <-chan struct{} {
	return c.life.done
}

// ID returns the connection id used in logs and metric labels
func (c *Client) ID() string {
	return c.id
}

// State returns the lifecycle state of the connection
func (c *Client) State() State {
	return c.life.current()
}

// Pending returns the number of requests awaiting a reply
func (c *Client) Pending() int {
	return c.pending.len()
}

// CloseStatus returns the close code and reason reported by the transport
func (c *Client) CloseStatus() (int, string) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeCode, c.closeReason
}

// WritePrometheus writes the connection metrics in Prometheus text format
func (c *Client) WritePrometheus(w io.Writer) {
	c.stats.writePrometheus(w)
}

// Latency returns round trip and work rate statistics
func (c *Client) Latency() LatencySnapshot {
	return c.stats.snapshot()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (c *Client) close(ctx context.Context) error {
	c.sendMu.Lock()
	t := c.life.transition(StateClosing, nil)
	var unsent []*pendingRequest
	if t.Changed {
		unsent = c.takeDeferredLocked()
	}
	c.sendMu.Unlock()

	if t.Changed {
		c.trace("close", t.From.String(), len(unsent))
		for _, p := range unsent {
			c.rejectEntry(p, common.ErrConnectionClosed)
		}
		if err := c.transport.Close(common.CloseNormal, "client closed"); err != nil {
			c.emit(&common.TransportError{Op: "close", Err: err})
		}
	}

	select {
	case <-c.life.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit hands a connection level error to the error handler
func (c *Client) emit(err error) {
	var protoErr *common.ProtocolError
	if errors.As(err, &protoErr) {
		c.stats.protocolErrors.Inc()
	}
	c.trace("error", err)
	c.onError(err)
}

// logError is the default error handler
func (c *Client) logError(err error) {
	var protoErr *common.ProtocolError
	if errors.As(err, &protoErr) {
		Logger.Warningf("[%s] %v", c.id, err)
		return
	}
	Logger.Errorf("[%s] %v", c.id, err)
}

// trace logs an event with its parameters when debug mode is enabled
func (c *Client) trace(event string, params ...any) {
	if !c.config.Debug {
		return
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = stringify(p)
	}
	Logger.Infof("[%s] %s %s", c.id, event, strings.Join(parts, " "))
}

// stringify renders a trace parameter as JSON, falling back to %v for values
// JSON cannot represent
func stringify(v any) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	case error:
		return x.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// stopBackground stops the reaper and the meters once the connection is terminal
func (c *Client) stopBackground() {
	c.stopOnce.Do(func() {
		if c.deadlines != nil {
			c.deadlines.close()
		}
		if c.stats != nil {
			c.stats.stop()
		}
	})
}
