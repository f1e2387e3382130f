package server

import (
	"encoding/json"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/serializer"
	"github.com/taskfire/taskfire-go/rpc/transport"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("server")

const defaultWorkersPerSession = 16

// serverSession tracks one connected client
type serverSession struct {
	transport.IServerSession
	workers chan struct{} // semaphore bounding concurrent requests
}

// RPCServer is a development task-queue server. It answers every request with a
// RESPONSE envelope carrying the request id and can push WORK envelopes to all
// connected clients.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	handler    RequestHandler
	sessions   *xsync.MapOf[string, *serverSession]

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	workers  sync.WaitGroup
	workSeq  atomic.Uint64
}

// NewRPCServer creates a new development server. A nil handler answers with EchoHandler.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		ws.NewWSServerTransport(),
//		serializer.NewJSONSerializer(),
//		server.EchoHandler,
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	handler RequestHandler,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if handler == nil {
		handler = EchoHandler
	}
	if config.WorkersPerSession <= 0 {
		config.WorkersPerSession = defaultWorkersPerSession
	}

	Logger.Infof("Created task queue server")
	Logger.Debugf(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		handler:    handler,
		sessions:   xsync.NewMapOf[string, *serverSession](),
		stop:       make(chan struct{}),
	}
}

// Start binds the endpoint and starts the periodic WORK pushes, it does not block
func (s *RPCServer) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("server already started")
	}

	s.transport.RegisterHandler(s)
	if err := s.transport.Listen(s.config); err != nil {
		return err
	}

	if s.config.WorkIntervalMs > 0 {
		go s.pushHeartbeats(time.Duration(s.config.WorkIntervalMs) * time.Millisecond)
	}
	return nil
}

// Serve starts the server if needed and accepts connections until Close is called
func (s *RPCServer) Serve() error {
	if !s.started.Load() {
		if err := s.Start(); err != nil {
			return err
		}
	}
	return s.transport.Serve()
}

// Addr returns the bound address
func (s *RPCServer) Addr() string {
	return s.transport.Addr()
}

// Sessions returns the number of connected clients
func (s *RPCServer) Sessions() int {
	return s.sessions.Size()
}

// Push sends a WORK envelope with the payload to every connected client and
// returns the number of clients it was delivered to
func (s *RPCServer) Push(payload any) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode work payload: %w", err)
	}

	data, err := s.serializer.SerializeEnvelope(common.NewWorkEnvelope(raw))
	if err != nil {
		return 0, err
	}

	delivered := 0
	s.sessions.Range(func(id string, sess *serverSession) bool {
		if err := sess.Send(data); err != nil {
			Logger.Warningf("Failed to push work to session %s: %v", id, err)
			return true
		}
		delivered++
		return true
	})
	return delivered, nil
}

// Close stops the server, closes all sessions and waits for running handlers
func (s *RPCServer) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)
		err = s.transport.Close()
		s.workers.Wait()
	})
	return err
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerHandler)
// --------------------------------------------------------------------------

func (s *RPCServer) OnConnect(session transport.IServerSession) {
	if s.config.Token != "" && session.Token() != s.config.Token {
		Logger.Warningf("Rejecting session %s: invalid token", session.ID())
		_ = session.Close(common.ClosePolicy, "invalid token")
		return
	}

	s.sessions.Store(session.ID(), &serverSession{
		IServerSession: session,
		workers:        make(chan struct{}, s.config.WorkersPerSession),
	})
	Logger.Infof("Session %s connected", session.ID())
}

func (s *RPCServer) OnMessage(session transport.IServerSession, data []byte) {
	sess, ok := s.sessions.Load(session.ID())
	if !ok {
		return // rejected session
	}

	req, err := s.serializer.DeserializeRequest(data)
	if err != nil {
		Logger.Warningf("Dropping malformed request from session %s: %v", session.ID(), err)
		return
	}

	id, ok := req.RequestID()
	if !ok {
		Logger.Warningf("Dropping request without requestId from session %s", session.ID())
		return
	}

	// Blocks the session's read loop while all workers are busy
	sess.workers <- struct{}{}
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer func() { <-sess.workers }()
		s.handle(sess, id, req)
	}()
}

func (s *RPCServer) OnDisconnect(session transport.IServerSession) {
	if _, ok := s.sessions.LoadAndDelete(session.ID()); ok {
		Logger.Infof("Session %s disconnected", session.ID())
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// handle runs the request handler and writes the reply
func (s *RPCServer) handle(sess *serverSession, id uint64, req common.Request) {
	status, payload := s.handler(req)

	raw, err := json.Marshal(payload)
	if err != nil {
		status = 500
		raw, _ = json.Marshal(fmt.Sprintf("failed to encode reply: %v", err))
	}

	data, err := s.serializer.SerializeEnvelope(common.NewResponseEnvelope(id, status, raw))
	if err != nil {
		Logger.Errorf("Failed to serialize reply to request %d: %v", id, err)
		return
	}

	if err := sess.Send(data); err != nil {
		Logger.Warningf("Failed to reply to request %d of session %s: %v", id, sess.ID(), err)
	}
}

// pushHeartbeats sends a heartbeat WORK envelope to every session until the server stops
func (s *RPCServer) pushHeartbeats(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			seq := s.workSeq.Add(1)
			n, err := s.Push(map[string]any{
				"type": "heartbeat",
				"seq":  seq,
				"at":   now.UTC().Format(time.RFC3339Nano),
			})
			if err != nil {
				Logger.Errorf("Failed to push heartbeat: %v", err)
				continue
			}
			Logger.Debugf("Pushed heartbeat %d to %d sessions", seq, n)
		}
	}
}
