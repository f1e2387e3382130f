// Package ws implements the websocket transport, the transport the hosted
// task-queue service speaks (ws:// and wss:// urls).
//
// The client authenticates during the handshake with an Authorization header
// carrying the token as basic auth user and an empty password. Every envelope is
// one text message. Closing sends a close control frame with the close code and
// reason; the peer echoes it and both sides drop the connection. Without an echo
// the connection is dropped after five seconds and reported with code 1006.
//
// The server side (used by the development server) upgrades plain http requests,
// rejects requests without a token with 401 and tracks sessions with uuid ids.
package ws
