// Package server implements a development task-queue server that speaks the
// same envelope protocol as the hosted service. It is used by the serve command
// and by the integration tests of the client.
//
// Behavior:
//
//   - Every request carrying a requestId is answered with a RESPONSE envelope
//     with the same id. Status and payload come from the RequestHandler;
//     EchoHandler echoes the request and reads the status from its status field.
//
//   - Requests of one session are handled by a bounded worker pool
//     (ServerConfig.WorkersPerSession), so replies may arrive out of order.
//
//   - Push sends a WORK envelope to every connected session. With
//     ServerConfig.WorkIntervalMs set, a heartbeat is pushed periodically.
//
//   - If ServerConfig.Token is set, sessions with another token are closed
//     with code 1008.
//
// The server is independent of the transport; any transport.IRPCServerTransport
// (ws, tcp, unix) can be used.
package server
