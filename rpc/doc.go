// Package rpc provides the client for the taskfire task-queue service and the
// pieces it is built from. One connection carries any number of concurrent
// requests; replies are matched to their request by id, and work pushed by
// the service is handed to a sink.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the envelope protocol, configuration structures, errors and logging.
//
//   - transport: Connection abstractions with pluggable implementations
//     (WebSocket, TCP, Unix sockets).
//
//   - serializer: Encoding of requests and decoding of inbound envelopes into
//     the Response, Work and Unknown variants.
//
//   - client: The multiplexing client. Assigns request ids, defers sends until the
//     connection is open, correlates replies and settles outcomes.
//
//   - sink: Consumers for WORK envelopes (callback, unbounded queue, bounded queue).
//
//   - server: A development server speaking the same protocol, used by the
//     integration tests and the serve command.
package rpc
