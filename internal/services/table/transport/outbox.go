package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// OverflowPolicy decides what Push does when the outbox is full.
type OverflowPolicy string

const (
	// PolicyBlock makes Push wait for space or for its context to end.
	PolicyBlock OverflowPolicy = "block"
	// PolicyDropOldest discards the oldest queued frame to make room.
	PolicyDropOldest OverflowPolicy = "drop-oldest"
	// PolicyDropNewest discards the frame being pushed.
	PolicyDropNewest OverflowPolicy = "drop-newest"
)

// DefaultOutboxSize is used when a non-positive size is configured.
const DefaultOutboxSize = 16

var (
	// ErrClosed is returned when pushing into a closed outbox.
	ErrClosed = errors.New("transport: outbox closed")
	// ErrDropped is returned when PolicyDropNewest discards the pushed frame.
	ErrDropped = errors.New("transport: outbox full, frame dropped")
)

// ParseOverflowPolicy validates a configured policy name. Empty selects
// PolicyBlock.
func ParseOverflowPolicy(raw string) (OverflowPolicy, error) {
	switch OverflowPolicy(raw) {
	case "", PolicyBlock:
		return PolicyBlock, nil
	case PolicyDropOldest, PolicyDropNewest:
		return OverflowPolicy(raw), nil
	}
	return "", fmt.Errorf("transport: unknown overflow policy %q", raw)
}

// Outbox is a bounded FIFO of encoded frames waiting for the writer.
type Outbox struct {
	policy  OverflowPolicy
	frames  chan []byte
	done    chan struct{}
	once    sync.Once
	pushMu  sync.Mutex
	dropped atomic.Uint64
}

// NewOutbox creates an outbox holding at most size frames.
func NewOutbox(size int, policy OverflowPolicy) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	if policy == "" {
		policy = PolicyBlock
	}
	return &Outbox{
		policy: policy,
		frames: make(chan []byte, size),
		done:   make(chan struct{}),
	}
}

// Push queues frame according to the overflow policy. Every drop is
// counted. Only the pushed frame's own drop is reported, as ErrDropped; a
// queued frame evicted by PolicyDropOldest belongs to an earlier caller.
func (o *Outbox) Push(ctx context.Context, frame []byte) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}

	switch o.policy {
	case PolicyDropNewest:
		select {
		case o.frames <- frame:
		default:
			o.dropped.Add(1)
			return ErrDropped
		}
		return nil
	case PolicyDropOldest:
		o.pushMu.Lock()
		defer o.pushMu.Unlock()
		for {
			select {
			case o.frames <- frame:
				return nil
			default:
			}
			select {
			case <-o.frames:
				o.dropped.Add(1)
			default:
			}
		}
	}

	select {
	case o.frames <- frame:
		return nil
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next waits for the oldest frame. It reports false once the outbox is
// closed or ctx ends; frames still queued at that point are discarded.
func (o *Outbox) Next(ctx context.Context) ([]byte, bool) {
	select {
	case <-o.done:
		return nil, false
	default:
	}
	select {
	case frame := <-o.frames:
		return frame, true
	case <-o.done:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Close releases waiting producers and consumers.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

// Len returns the number of queued frames.
func (o *Outbox) Len() int {
	return len(o.frames)
}

// Dropped returns how many frames the overflow policy discarded.
func (o *Outbox) Dropped() uint64 {
	return o.dropped.Load()
}
