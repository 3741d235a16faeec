// Package app runs the table client: it folds the authoritative stream and
// local intents into one GameState, performs the side effects the folds
// call for, and reconnects when the table connection drops.
package app
