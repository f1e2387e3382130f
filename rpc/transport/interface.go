package transport

import (
	"context"
	"github.com/taskfire/taskfire-go/rpc/common"
)

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IEventHandler receives the lifecycle notifications of a client transport.
// A transport delivers all events of one connection from a single goroutine and in
// order: OnOpen, any number of OnMessage calls, then OnClose exactly once.
// OnError may be called before OnClose.
type IEventHandler interface {
	// OnOpen is called once the connection is ready to send
	OnOpen()
	// OnMessage is called for every message read from the connection
	OnMessage(data []byte)
	// OnError is called when the transport fails
	OnError(err error)
	// OnClose is called once the connection is terminated, with the close code of the handshake
	OnClose(code int, reason string)
}

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect validates the configuration and starts establishing the connection in the
	// background. Readiness and failures are reported to the event handler.
	Connect(config common.ClientConfig, events IEventHandler) error
	// Send writes one message to the connection
	Send(ctx context.Context, data []byte) error
	// Close initiates the close handshake. Completion is reported via OnClose.
	Close(code int, reason string) error
	// GetName returns the name of the transport type (e.g. "ws", "tcp")
	GetName() string
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerSession is one client connection accepted by a server transport
type IServerSession interface {
	// ID returns a unique identifier of the session
	ID() string
	// Token returns the api token the client authenticated with
	Token() string
	// Send writes one message to the client
	Send(data []byte) error
	// Close runs the close handshake with the client
	Close(code int, reason string) error
}

// IServerHandler is called by a server transport for session events.
// Calls for one session are made from a single goroutine.
type IServerHandler interface {
	OnConnect(session IServerSession)
	OnMessage(session IServerSession, data []byte)
	OnDisconnect(session IServerSession)
}

// IRPCServerTransport is the interface for the RPC server transport
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for session events
	RegisterHandler(handler IServerHandler)
	// Listen binds the endpoint without accepting connections yet
	Listen(config common.ServerConfig) error
	// Serve accepts connections until Close is called
	Serve() error
	// Addr returns the bound address (useful with port 0)
	Addr() string
	// Close stops accepting connections and closes all sessions
	Close() error
}
