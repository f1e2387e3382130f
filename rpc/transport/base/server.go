package base

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/transport"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverSession is one accepted client connection
type serverSession struct {
	id      string
	token   string
	conn    net.Conn
	writeMu sync.Mutex
	closing atomic.Bool
	timeout time.Duration
}

func (s *serverSession) ID() string    { return s.id }
func (s *serverSession) Token() string { return s.token }

func (s *serverSession) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closing.Load() {
		return common.ErrConnectionClosed
	}

	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %v", err)
		}
	}
	return writeFrame(s.conn, frameData, data)
}

func (s *serverSession) Close(code int, reason string) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	s.writeMu.Lock()
	err := writeFrame(s.conn, frameClose, encodeClose(code, reason))
	s.writeMu.Unlock()

	conn := s.conn
	time.AfterFunc(closeHandshakeTimeout, func() { _ = conn.Close() })
	return err
}

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.IServerHandler
	config     common.ServerConfig
	listener   net.Listener
	bufferPool *sync.Pool
	sessions   *xsync.MapOf[string, *serverSession]
	closed     atomic.Bool
	mu         sync.Mutex // orders wg.Add against Close
	wg         sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with the given read buffer size
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		sessions:  xsync.NewMapOf[string, *serverSession](),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.IServerHandler) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	t.listener = listener

	Logger.Infof("Listening for %s connections on %s", t.connector.GetName(), listener.Addr())
	return nil
}

func (t *serverTransport) Serve() error {
	if t.listener == nil {
		return fmt.Errorf("%s server transport is not listening", t.connector.GetName())
	}
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			continue
		}

		t.mu.Lock()
		if t.closed.Load() {
			t.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		t.wg.Add(1)
		t.mu.Unlock()

		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Addr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

func (t *serverTransport) Close() error {
	t.mu.Lock()
	if !t.closed.CompareAndSwap(false, true) {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}

	t.sessions.Range(func(_ string, s *serverSession) bool {
		_ = s.Close(common.CloseGoingAway, "server shutting down")
		return true
	})

	t.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection reads frames of one session until it is closed
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		Logger.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	// The first frame must authenticate the client
	frameType, data, err := readFrame(conn, nil)
	if err != nil || frameType != frameAuth {
		Logger.Warningf("Rejecting connection from %s: missing auth frame", conn.RemoteAddr())
		return
	}

	session := &serverSession{
		id:      uuid.NewString(),
		token:   string(data),
		conn:    conn,
		timeout: time.Duration(t.config.TimeoutSecond) * time.Second,
	}
	t.sessions.Store(session.id, session)
	defer t.sessions.Delete(session.id)

	// Close may have ranged over the sessions before this one was stored
	if t.closed.Load() {
		_ = session.Close(common.CloseGoingAway, "server shutting down")
	}

	t.handler.OnConnect(session)
	defer t.handler.OnDisconnect(session)

	buf := t.bufferPool.Get().([]byte)
	defer t.bufferPool.Put(buf)

	for {
		frameType, data, err := readFrame(conn, buf)

		if err != nil {
			if errors.Is(err, io.EOF) {
				Logger.Infof("Session %s closed by client", session.id)
			} else if !session.closing.Load() {
				Logger.Errorf("Error reading from session %s: %v", session.id, err)
			}
			return
		}

		switch frameType {
		case frameData:
			// data is backed by the pooled buffer and only valid during the call
			t.handler.OnMessage(session, data)

		case frameClose:
			code, reason := decodeClose(data)
			if session.closing.CompareAndSwap(false, true) {
				// Client initiated the close: echo to complete the handshake
				session.writeMu.Lock()
				if err := writeFrame(conn, frameClose, encodeClose(code, reason)); err != nil {
					Logger.Warningf("Failed to echo close frame to session %s: %v", session.id, err)
				}
				session.writeMu.Unlock()
			}
			Logger.Debugf("Session %s closed (%d %s)", session.id, code, reason)
			return

		default:
			Logger.Warningf("Ignoring frame of unknown type %d from session %s", frameType, session.id)
		}
	}
}
