// Package common provides the data structures and utilities shared by the
// client, the transports and the development server.
//
// The package focuses on:
//   - The envelope protocol spoken with the task-queue service
//   - Configuration structures for client and server components
//   - Error types shared across packages
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Envelope: The wire unit. RESPONSE envelopes carry a request id, a status
//     code and a payload; WORK envelopes carry only a payload.
//
//   - Inbound: Tagged variant (Response, Work, Unknown) produced from an envelope
//     by a single parse step so that dispatch is an exhaustive type switch.
//
//   - Request: A logical request as supplied by the caller. The client tags a copy
//     with a requestId before it is sent.
//
//   - ClientConfig / ServerConfig: Plain configuration structs with String()
//     renderings for logs and the CLI.
//
//   - ProtocolError, StatusError, SerializationError, TransportError,
//     ConnectionError: the error taxonomy of the client.
//
//   - Logger: dragonboat logger.ILogger implementation producing
//     "LEVEL | name | message" lines.
package common
