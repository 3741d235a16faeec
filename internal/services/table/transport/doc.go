// Package transport owns the realtime connection to a table authority.
//
// A Session dials a WebSocket, performs the bearer-token handshake, and
// exposes the connection as an inbound stream of decoded results plus a
// bounded outbound queue. Connection lifetime is scoped to the stream: when
// the stream's context ends, the connection is closed.
package transport
