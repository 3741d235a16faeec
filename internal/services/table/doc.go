// Package table implements the realtime synchronization engine for a shared
// tabletop map.
//
// It keeps the WebSocket session, the wire codec and the state folds
// separate so the authoritative server remains the source of truth while the
// local viewer still gets immediate feedback when dragging a token:
//   - domain/action defines the vocabulary exchanged with the authority,
//   - wire translates it to and from JSON frames,
//   - transport owns the connection and exposes it as ordered streams,
//   - domain/state folds authoritative results and local intents,
//   - domain/movement computes how far a token may travel this turn,
//   - app serializes both inputs into one update loop.
package table
