// Package wire encodes and decodes table actions as JSON frames.
//
// Every frame is an envelope {"action": "<Type>", "payload": {...}}. The two
// directions have distinct shapes: the client encodes Outbound actions and
// decodes Inbound ones, and a table authority does the reverse. Both halves
// live here so tests and fakes speak the same schema.
package wire
