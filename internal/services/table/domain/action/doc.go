// Package action defines the domain actions exchanged between the client and
// the table authority.
//
// Actions come in two sealed sets sharing one identifier enum: Inbound
// actions are folded into client state, Outbound actions are commands sent to
// the authority. A few identifiers exist in both sets with different payloads.
package action
