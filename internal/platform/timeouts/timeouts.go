// Package timeouts defines shared timeout constants used across the client.
package timeouts

import "time"

// Dial caps the wait time when opening the realtime connection.
const Dial = 10 * time.Second

// Handshake caps the time allowed to write the initial Connect frame.
const Handshake = 5 * time.Second

// ReadHeader limits how long the inspection server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the process waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
