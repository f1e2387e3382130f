package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/transport"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// closeHandshakeTimeout bounds how long we wait for the peer to echo a close frame
var closeHandshakeTimeout = 5 * time.Second

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// ParseEndpoint extracts the dial address from the configured url
	ParseEndpoint(rawURL string) (string, error)

	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientTransportConfig) error
}

// -----------------------------------------------------------
// Client Transport
// -----------------------------------------------------------

// clientTransport implements a framed stream transport independent of
// the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	events    transport.IEventHandler
	endpoint  string

	connMu     sync.Mutex // Protects conn and serializes writes
	conn       net.Conn
	cancelDial context.CancelFunc

	started atomic.Bool
	closing atomic.Bool
}

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) GetName() string {
	return t.connector.GetName()
}

func (t *clientTransport) Connect(config common.ClientConfig, events transport.IEventHandler) error {
	if events == nil {
		return fmt.Errorf("no event handler provided")
	}
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%s transport already connected", t.GetName())
	}

	endpoint, err := t.connector.ParseEndpoint(config.URL)
	if err != nil {
		return err
	}

	t.config = config
	t.events = events
	t.endpoint = endpoint

	ctx, cancel := context.WithCancel(context.Background())
	t.connMu.Lock()
	t.cancelDial = cancel
	t.connMu.Unlock()

	go t.run(ctx)
	return nil
}

func (t *clientTransport) Send(ctx context.Context, data []byte) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return fmt.Errorf("%s transport is not connected", t.GetName())
	}
	if t.closing.Load() {
		return common.ErrConnectionClosed
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
		defer t.conn.SetWriteDeadline(time.Time{})
	}

	return writeFrame(t.conn, frameData, data)
}

func (t *clientTransport) Close(code int, reason string) error {
	if !t.closing.CompareAndSwap(false, true) {
		return nil
	}

	t.connMu.Lock()
	defer t.connMu.Unlock()

	// Still dialing: abort the dial, run() reports OnClose
	if t.conn == nil {
		if t.cancelDial != nil {
			t.cancelDial()
		}
		return nil
	}

	conn := t.conn
	err := writeFrame(conn, frameClose, encodeClose(code, reason))

	// Force the connection down if the peer never echoes the close frame
	time.AfterFunc(closeHandshakeTimeout, func() { _ = conn.Close() })

	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to send close frame: %v", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// run dials the endpoint and reads frames until the connection ends.
// All events are reported from this goroutine.
func (t *clientTransport) run(ctx context.Context) {
	dialCtx := ctx
	if t.config.Transport.DialTimeoutSecond > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, time.Duration(t.config.Transport.DialTimeoutSecond)*time.Second)
		defer cancel()
	}

	conn, err := t.dial(dialCtx)
	if err != nil {
		if t.closing.Load() {
			t.events.OnClose(common.CloseNormal, "closed before the connection was opened")
			return
		}
		t.events.OnError(&common.TransportError{Op: "dial", Err: err})
		t.events.OnClose(common.CloseAbnormal, err.Error())
		return
	}

	t.connMu.Lock()
	closing := t.closing.Load()
	if !closing {
		t.conn = conn
	}
	t.connMu.Unlock()

	if closing {
		_ = conn.Close()
		t.events.OnClose(common.CloseNormal, "closed before the connection was opened")
		return
	}

	Logger.Infof("Connected to %s using %s transport", t.endpoint, t.GetName())
	t.events.OnOpen()
	t.readLoop(conn)
}

// dial connects, applies the socket options and authenticates
func (t *clientTransport) dial(ctx context.Context) (net.Conn, error) {
	conn, err := t.connector.Connect(ctx, t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", t.endpoint, err)
	}

	if err := t.connector.UpgradeConnection(conn, t.config.Transport); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", t.endpoint, err)
	}

	if err := writeFrame(conn, frameAuth, []byte(t.config.Token)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to authenticate with %s: %w", t.endpoint, err)
	}

	return conn, nil
}

// readLoop reads frames and forwards them to the event handler
func (t *clientTransport) readLoop(conn net.Conn) {
	defer conn.Close()

	for {
		frameType, data, err := readFrame(conn, nil)
		if err != nil {
			switch {
			case t.closing.Load():
				t.events.OnClose(common.CloseAbnormal, "close handshake did not complete")
			case errors.Is(err, io.EOF):
				t.events.OnClose(common.CloseAbnormal, "connection closed by peer without close frame")
			default:
				t.events.OnError(&common.TransportError{Op: "read", Err: err})
				t.events.OnClose(common.CloseAbnormal, err.Error())
			}
			return
		}

		switch frameType {
		case frameData:
			t.events.OnMessage(data)

		case frameClose:
			code, reason := decodeClose(data)

			// Peer initiated the close: echo the frame to complete the handshake
			if t.closing.CompareAndSwap(false, true) {
				t.connMu.Lock()
				if err := writeFrame(conn, frameClose, encodeClose(code, reason)); err != nil {
					Logger.Warningf("Failed to echo close frame to %s: %v", t.endpoint, err)
				}
				t.connMu.Unlock()
			}

			Logger.Infof("Connection to %s closed (%d %s)", t.endpoint, code, reason)
			t.events.OnClose(code, reason)
			return

		default:
			Logger.Warningf("Ignoring frame of unknown type %d from %s", frameType, t.endpoint)
		}
	}
}
