// Package base provides the framed stream transport shared by the tcp and unix
// transports. It implements the client and server sides independent of the
// specific network protocol and is extended with protocol-specific connectors.
//
// Frame format:
//
//	+--------+----------------+------------------+
//	| type   | length         | payload          |
//	| 1 byte | 4 bytes (BE)   | length bytes     |
//	+--------+----------------+------------------+
//
// Frame types are data (one serialized envelope or request), close (2 byte close
// code followed by a utf-8 reason) and auth (the client token). The auth frame is
// the first frame a client writes; the server drops connections that do not start
// with one. Frames larger than 64 MB are rejected.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (endpoint parsing, dialing, listening, socket options).
//
//   - clientTransport: Implements transport.IRPCClientTransport over a single
//     connection. All events are reported from one reader goroutine in order:
//     OnOpen, OnMessage for every data frame, then OnClose exactly once.
//
//   - serverTransport: Accepts connections, authenticates them and forwards data
//     frames of every session to the registered transport.IServerHandler.
//
// Close handshake:
//
//	The side that closes sends a close frame and waits for the peer to echo it.
//	If no echo arrives within five seconds the connection is dropped. A connection
//	that ends without a close frame is reported with code 1006.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes are serialized per connection with
//	a mutex, the server reuses read buffers through a sync.Pool and creates a
//	dedicated goroutine for each connection.
package base
