// Package transport defines the interfaces and abstractions for the connection
// between the client and the task-queue service. It provides a common contract that
// all transport implementations must fulfill, so the correlation core never depends
// on a socket type.
//
// The package focuses on:
//   - An event-driven client contract (opened, message received, errored, closed)
//   - A close handshake with a lifecycle code for normal closure
//   - Server-side session abstractions used by the development server
//
// Key Components:
//
//   - IRPCClientTransport: client side. Connect dials in the background so callers
//     can issue requests before the connection is ready.
//
//   - IEventHandler: receives the events of one connection from a single goroutine.
//
//   - IRPCServerTransport / IServerSession / IServerHandler: server side.
//
// Implementations live in the sub packages base (framed streams), tcp, unix and ws.
package transport
