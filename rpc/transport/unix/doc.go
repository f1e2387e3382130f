// Package unix implements Unix domain socket connectors for the framed base
// transport, for clients and a development server running on the same machine.
//
// Urls have the form unix:///path/to/socket. An existing socket file is removed
// before the server starts listening.
package unix
