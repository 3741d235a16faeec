// Package state folds authoritative table actions and local intents into the
// client's view of the shared map.
//
// Both folds are pure: they take the previous GameState by value and return
// the next one without touching the input, so every version can be kept or
// dropped by the caller. Sending commands and scheduling timers belongs to
// the calling layer.
package state
