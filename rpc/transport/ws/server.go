package ws

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/transport"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverSession is one upgraded websocket connection
type serverSession struct {
	id      string
	token   string
	conn    *websocket.Conn
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
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *serverSession) Close(code int, reason string) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	err := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(closeHandshakeTimeout))

	conn := s.conn
	time.AfterFunc(closeHandshakeTimeout, func() { _ = conn.Close() })
	return err
}

// serverTransport serves websocket sessions over a plain http server
type serverTransport struct {
	handler    transport.IServerHandler
	config     common.ServerConfig
	listener   net.Listener
	httpServer *http.Server
	upgrader   websocket.Upgrader
	sessions   *xsync.MapOf[string, *serverSession]
	closed     atomic.Bool
	mu         sync.Mutex // orders wg.Add against Close
	wg         sync.WaitGroup
}

// NewWSServerTransport creates a new websocket server transport
func NewWSServerTransport() transport.IRPCServerTransport {
	return &serverTransport{
		sessions: xsync.NewMapOf[string, *serverSession](),
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
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.Transport.ReadBufferSize,
		WriteBufferSize: config.Transport.WriteBufferSize,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	listener, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	t.listener = listener

	t.httpServer = &http.Server{
		Handler:           http.HandlerFunc(t.handleUpgrade),
		ReadHeaderTimeout: 10 * time.Second,
	}

	Logger.Infof("Listening for ws connections on %s", listener.Addr())
	return nil
}

func (t *serverTransport) Serve() error {
	if t.listener == nil {
		return fmt.Errorf("ws server transport is not listening")
	}
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	err := t.httpServer.Serve(t.listener)
	if errors.Is(err, http.ErrServerClosed) || t.closed.Load() {
		return nil
	}
	return err
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
	if t.httpServer != nil {
		// Hijacked websocket connections are not tracked by the http server
		err = t.httpServer.Close()
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

// handleUpgrade authenticates the request, upgrades it and reads the session
func (t *serverTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	token, _, ok := r.BasicAuth()
	if !ok || token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()
	defer t.wg.Done()

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Warningf("Failed to upgrade connection from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	session := &serverSession{
		id:      uuid.NewString(),
		token:   token,
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

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				session.closing.Store(true)
				Logger.Debugf("Session %s closed (%d %s)", session.id, closeErr.Code, closeErr.Text)
			} else if !session.closing.Load() {
				Logger.Errorf("Error reading from session %s: %v", session.id, err)
			}
			return
		}
		t.handler.OnMessage(session, data)
	}
}
