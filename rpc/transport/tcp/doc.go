// Package tcp implements TCP socket-based connectors for the framed base transport.
//
// This package builds on the base package's transport functionality. See the base
// package documentation for the frame format and the close handshake.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector.
//     Urls have the form tcp://host:port.
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Socket options (no-delay, buffer sizes, keep-alive, linger) are applied on both
// sides from common.SocketConf and common.TCPConf. The default server buffer size is
// 512 KB.
package tcp
