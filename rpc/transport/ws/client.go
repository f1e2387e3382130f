package ws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/transport"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// closeHandshakeTimeout bounds how long we wait for the peer to echo a close frame
var closeHandshakeTimeout = 5 * time.Second

// clientTransport implements transport.IRPCClientTransport on top of a websocket
type clientTransport struct {
	config common.ClientConfig
	events transport.IEventHandler

	connMu     sync.Mutex // Protects conn and serializes writes
	conn       *websocket.Conn
	cancelDial context.CancelFunc

	started atomic.Bool
	closing atomic.Bool
}

// NewWSClientTransport creates a new websocket client transport (ws:// and wss:// urls)
func NewWSClientTransport() transport.IRPCClientTransport {
	return &clientTransport{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) GetName() string {
	return "ws"
}

func (t *clientTransport) Connect(config common.ClientConfig, events transport.IEventHandler) error {
	if events == nil {
		return fmt.Errorf("no event handler provided")
	}

	u, err := url.Parse(config.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %v", config.URL, err)
	}
	if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("invalid websocket url %q, expected ws://host[:port] or wss://host[:port]", config.URL)
	}

	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%s transport already connected", t.GetName())
	}

	t.config = config
	t.events = events

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

	return t.conn.WriteMessage(websocket.TextMessage, data)
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
	err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(closeHandshakeTimeout))

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

// run dials the endpoint and reads messages until the connection ends.
// All events are reported from this goroutine.
func (t *clientTransport) run(ctx context.Context) {
	conn, err := t.dial(ctx)
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

	Logger.Infof("Connected to %s using %s transport", t.config.URL, t.GetName())
	t.events.OnOpen()
	t.readLoop(conn)
}

// dial performs the websocket handshake, the token is sent as basic auth user
func (t *clientTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:           http.ProxyFromEnvironment,
		ReadBufferSize:  t.config.Transport.ReadBufferSize,
		WriteBufferSize: t.config.Transport.WriteBufferSize,
		NetDialContext:  (&net.Dialer{KeepAlive: time.Duration(t.config.Transport.TCPKeepAliveSec) * time.Second}).DialContext,
	}
	if t.config.Transport.DialTimeoutSecond > 0 {
		dialer.HandshakeTimeout = time.Duration(t.config.Transport.DialTimeoutSecond) * time.Second
	}

	header := http.Header{}
	header.Set("Authorization", BasicAuth(t.config.Token))

	conn, resp, err := dialer.DialContext(ctx, t.config.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake with %s failed (%s): %w", t.config.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", t.config.URL, err)
	}
	return conn, nil
}

// readLoop reads messages and forwards them to the event handler
func (t *clientTransport) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err == nil {
			t.events.OnMessage(data)
			continue
		}

		var closeErr *websocket.CloseError
		switch {
		case errors.As(err, &closeErr):
			// The default close handler already echoed the frame
			t.closing.Store(true)
			Logger.Infof("Connection to %s closed (%d %s)", t.config.URL, closeErr.Code, closeErr.Text)
			t.events.OnClose(closeErr.Code, closeErr.Text)
		case t.closing.Load():
			t.events.OnClose(common.CloseAbnormal, "close handshake did not complete")
		default:
			t.events.OnError(&common.TransportError{Op: "read", Err: err})
			t.events.OnClose(common.CloseAbnormal, err.Error())
		}
		return
	}
}

// BasicAuth returns the Authorization header value carrying the token as user with an empty password
func BasicAuth(token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(token+":"))
}
